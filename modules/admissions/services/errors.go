package services

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
)

var (
	// ErrDataIntegrity marks an invariant violation. It is never corrected automatically.
	ErrDataIntegrity = errors.New("data integrity violation")
	// ErrMissingData marks an expected input that is absent.
	ErrMissingData = errors.New("missing data")
	// ErrDrawFailed is a retryable failure of one randomized draw.
	ErrDrawFailed = errors.New("assignment draw failed")
	// ErrAmbiguousInput is resolved by asking the operator and never leaves this package.
	ErrAmbiguousInput = errors.New("ambiguous input")

	ErrInfeasible         = errors.New("assignment infeasible")
	ErrUnknownInstitution = errors.New("unknown institution")
	ErrNoSchools          = errors.New("no resolvable schools")
)

// IntegrityError lists the identifiers that violate an invariant.
type IntegrityError struct {
	Subject string
	Items   []string
	Err     error
}

func (e *IntegrityError) Error() string {
	var b strings.Builder
	b.WriteString(e.Subject)
	if len(e.Items) > 0 {
		fmt.Fprintf(&b, ": %s", strings.Join(e.Items, "; "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *IntegrityError) Is(target error) bool { return target == ErrDataIntegrity }
func (e *IntegrityError) Unwrap() error        { return e.Err }

// MissingDataError lists the identifiers whose data could not be found.
type MissingDataError struct {
	Kind string
	IDs  []string
}

func (e *MissingDataError) Error() string {
	return fmt.Sprintf("missing %s: %s", e.Kind, strings.Join(e.IDs, ", "))
}

func (e *MissingDataError) Unwrap() error { return ErrMissingData }
