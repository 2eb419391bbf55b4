package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// =============================================================================
// Checker
// =============================================================================

func TestOverallStatus(t *testing.T) {
	c := NewChecker()
	if got := c.OverallStatus(); got != StatusHealthy {
		t.Fatalf("empty checker = %s, want healthy", got)
	}

	critical := StatusHealthy
	optional := StatusHealthy
	c.RegisterFunc("critical", true, func(context.Context) CheckResult { return CheckResult{Status: critical} })
	c.RegisterFunc("optional", false, func(context.Context) CheckResult { return CheckResult{Status: optional} })

	if got := c.OverallStatus(); got != StatusUnknown {
		t.Errorf("before first check = %s, want unknown", got)
	}

	c.Check(context.Background())
	if got := c.OverallStatus(); got != StatusHealthy {
		t.Errorf("all healthy = %s", got)
	}

	optional = StatusUnhealthy
	c.Check(context.Background())
	if got := c.OverallStatus(); got != StatusDegraded {
		t.Errorf("optional failing = %s, want degraded", got)
	}

	critical = StatusUnhealthy
	c.Check(context.Background())
	if got := c.OverallStatus(); got != StatusUnhealthy {
		t.Errorf("critical failing = %s, want unhealthy", got)
	}
}

func TestCheckTimeoutAndPanic(t *testing.T) {
	c := NewChecker()
	c.Register(&Component{
		Name:    "slow",
		Timeout: 10 * time.Millisecond,
		Check: func(ctx context.Context) CheckResult {
			<-ctx.Done()
			time.Sleep(50 * time.Millisecond)
			return CheckResult{Status: StatusHealthy}
		},
	})
	c.RegisterFunc("broken", false, func(context.Context) CheckResult { panic("boom") })

	results := c.Check(context.Background())
	if r := results["slow"]; r.Status != StatusUnhealthy || r.Message != "check timed out" {
		t.Errorf("slow = %+v", r)
	}
	if r := results["broken"]; r.Status != StatusUnhealthy || r.Error != "boom" {
		t.Errorf("broken = %+v", r)
	}
	if names := c.Names(); len(names) != 2 || names[0] != "broken" {
		t.Errorf("Names() = %v", names)
	}
}

// =============================================================================
// Handlers
// =============================================================================

func TestHandlerReadiness(t *testing.T) {
	c := NewChecker()
	c.RegisterFunc("dictionary", true, DictionaryCheck(func() int64 { return 10 }))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("not ready: status %d, want 503", rec.Code)
	}

	c.SetReady(true)
	rec = httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz?full=true", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("ready: status %d, want 200", rec.Code)
	}

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != StatusHealthy || !resp.Ready {
		t.Errorf("response = %+v", resp)
	}
	if _, ok := resp.Components["dictionary"]; !ok {
		t.Error("full response lacks components")
	}
}

func TestLivenessHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker().LivenessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status %d", rec.Code)
	}
}

// =============================================================================
// Checks
// =============================================================================

func TestSourceCheck(t *testing.T) {
	ch := make(chan struct{})
	check := SourceCheck(func() <-chan struct{} { return ch })
	if r := check(context.Background()); r.Status != StatusHealthy {
		t.Errorf("running source = %s", r.Status)
	}
	close(ch)
	if r := check(context.Background()); r.Status != StatusUnhealthy {
		t.Errorf("stopped source = %s", r.Status)
	}
}

func TestDictionaryCheck(t *testing.T) {
	if r := DictionaryCheck(func() int64 { return 0 })(context.Background()); r.Status != StatusUnhealthy {
		t.Errorf("empty dictionary = %s", r.Status)
	}
}

func TestDeliveryCheckWindow(t *testing.T) {
	var commits, failures uint64
	check := DeliveryCheck(
		func() uint64 { return commits },
		func() uint64 { return failures },
	)

	commits, failures = 8, 2
	if r := check(context.Background()); r.Status != StatusHealthy {
		t.Errorf("2 of 10 failed = %s", r.Status)
	}

	commits, failures = 9, 5
	if r := check(context.Background()); r.Status != StatusDegraded {
		t.Errorf("3 of 4 failed = %s", r.Status)
	}

	// Only the window since the previous check counts.
	commits = 12
	if r := check(context.Background()); r.Status != StatusHealthy {
		t.Errorf("no new failures = %s", r.Status)
	}
}
