package main

import (
	"fmt"
	"os"

	"gioui.org/app"

	"ucliu/internal/logging"
)

// runOnMain runs fn on a goroutine and gives the main goroutine to gio,
// which needs it to drive the overlay window. The process exits when fn
// returns.
func runOnMain(fn func() error, logger *logging.Logger) error {
	go func() {
		code := 0
		if err := fn(); err != nil {
			logger.Error("run failed", "error", err)
			fmt.Fprintln(os.Stderr, "ucliu:", err)
			code = 1
		}
		logger.Close()
		os.Exit(code)
	}()
	app.Main()
	return nil
}
