package decision

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingEnv means the decision environment lacks a variable a task needs.
	ErrMissingEnv = errors.New("missing decision environment variable")
)

func missingEnv(name string) error {
	return fmt.Errorf("%w: %s", ErrMissingEnv, name)
}
