package registry

import (
	"errors"
	"fmt"
)

// ErrUnknownAdapter is returned for ids the registry does not hold.
var ErrUnknownAdapter = errors.New("unknown adapter")

// LegalConstraintError rejects enabling a scraping adapter whose legal
// review has not been confirmed. The adapter state is left unchanged.
type LegalConstraintError struct {
	AdapterID string
}

func (e *LegalConstraintError) Error() string {
	return fmt.Sprintf("legalConstraint: scraping adapter %s cannot be enabled without legal confirmation", e.AdapterID)
}
