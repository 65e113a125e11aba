package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"attendance-import-backend/internal/apperr"

	"github.com/spf13/cobra"
)

const (
	exitOK       = 0
	exitFailure  = 1
	exitUsage    = 2
	exitNotFound = 3
	exitConflict = 4
)

type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string { return e.err.Error() }
func (e *cliError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &cliError{code: code, err: err}
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ce *cliError
	if errors.As(err, &ce) {
		return ce.code
	}
	switch apperr.KindOf(err) {
	case apperr.KindInput, apperr.KindValidation:
		return exitUsage
	case apperr.KindNotFound:
		return exitNotFound
	case apperr.KindConflict:
		return exitConflict
	default:
		return exitFailure
	}
}

func newRootCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "importctl",
		Short:         "Operator tool for attendance import batches",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newMigrateCmd(env))
	cmd.AddCommand(newStatusCmd(env))
	cmd.AddCommand(newSummarizeCmd(env))
	cmd.AddCommand(newDiscardCmd(env))
	cmd.AddCommand(newOverridesCmd(env))
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := newRootCmd(defaultEnv()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(exitCode(err))
	}
}
