//go:build !windows

package tray

import "context"

func run(ctx context.Context, cfg Config) error {
	return ErrNotSupported
}
