package main

import (
	"github.com/go-faster/errors"

	"github.com/iota-uz/admissions/modules/admissions/services"
	"github.com/iota-uz/admissions/pkg/prompt"
)

type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string {
	return e.err.Error()
}

func (e *cliError) Unwrap() error {
	return e.err
}

const (
	exitOK          = 0
	exitValidation  = 2
	exitUsage       = 3
	exitStorage     = 4
	exitMissingData = 5
)

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &cliError{code: code, err: err}
}

// exitCode prefers an explicit code and falls back to the error taxonomy.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ce *cliError
	if errors.As(err, &ce) {
		return ce.code
	}
	switch {
	case errors.Is(err, services.ErrDataIntegrity),
		errors.Is(err, services.ErrInfeasible),
		errors.Is(err, services.ErrDrawFailed):
		return exitValidation
	case errors.Is(err, services.ErrMissingData):
		return exitMissingData
	case errors.Is(err, prompt.ErrNoInput):
		return exitUsage
	default:
		return 1
	}
}
