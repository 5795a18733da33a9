// Package main provides the nextrelease CLI entry point.
// nextrelease computes the next semantic version of a project from its conventional commits.
package main

import (
	"errors"
	"fmt"
	"os"

	"nextrelease/internal/logger"
)

func main() {
	if err := NewApp().CreateRootCommand().Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.msg)
		} else {
			logger.Error("Command failed", "error", err)
		}
		os.Exit(1)
	}
}

// exitError ends the run with a plain message instead of an error log line.
type exitError struct {
	msg string
}

func (e *exitError) Error() string {
	return e.msg
}

func newExitError(format string, args ...interface{}) error {
	return &exitError{msg: fmt.Sprintf(format, args...)}
}
