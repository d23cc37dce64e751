// Command agent-memory is the process entry point: it parses a global
// --config flag, builds the cobra root command, and maps a returned
// error to one of spec.md §6.3's three exit codes. Grounded on the
// teacher's cmd/migrate/main.go (load config, build a manager, hand off
// to a CLI's Execute).
package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	cli := NewCLI()
	root := cli.GetRootCommand()

	if err := root.Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.err)
			os.Exit(exitErr.code)
		}
		// Every RunE wraps its own errors in an exitError, so what reaches
		// here is cobra's argument handling (unknown flag, missing
		// required flag, bad arity): an argument error.
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

// exitError carries an explicit exit code through cobra's RunE, since
// the default mapping (any error -> 1) can't tell argument/environment
// errors (exit 2) from a run-time verification failure (exit 1).
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func usageError(err error) error { return &exitError{code: 2, err: err} }
func failureError(err error) error { return &exitError{code: 1, err: err} }
