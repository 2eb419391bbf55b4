package health

import (
	"context"
	"fmt"
	"sync"
)

// SourceCheck reports unhealthy once the keyboard source has stopped. done
// is called on every check since the channel is replaced on each start.
func SourceCheck(done func() <-chan struct{}) Check {
	return func(ctx context.Context) CheckResult {
		select {
		case <-done():
			return CheckResult{Status: StatusUnhealthy, Message: "keyboard source stopped"}
		default:
			return CheckResult{Status: StatusHealthy, Message: "receiving keys"}
		}
	}
}

// DictionaryCheck reports unhealthy while the loaded table is empty.
func DictionaryCheck(codes func() int64) Check {
	return func(ctx context.Context) CheckResult {
		n := codes()
		details := map[string]any{"codes": n}
		if n <= 0 {
			return CheckResult{Status: StatusUnhealthy, Message: "dictionary is empty", Details: details}
		}
		return CheckResult{Status: StatusHealthy, Details: details}
	}
}

// DeliveryCheck compares the failure and commit counters since the previous
// check. The window degrades when at least half of its deliveries failed.
func DeliveryCheck(commits, failures func() uint64) Check {
	var (
		mu                        sync.Mutex
		lastCommits, lastFailures uint64
	)
	return func(ctx context.Context) CheckResult {
		mu.Lock()
		c, f := commits(), failures()
		dc, df := c-lastCommits, f-lastFailures
		lastCommits, lastFailures = c, f
		mu.Unlock()

		details := map[string]any{"commits": c, "failures": f}
		if df > 0 && df*2 >= dc+df {
			return CheckResult{
				Status:  StatusDegraded,
				Message: fmt.Sprintf("%d of %d recent deliveries failed", df, dc+df),
				Details: details,
			}
		}
		return CheckResult{Status: StatusHealthy, Details: details}
	}
}
