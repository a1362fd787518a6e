package panel

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrValidation is the sentinel wrapped by every validation failure in the
// pipeline: missing columns or keys, malformed tables and invalid configs.
var ErrValidation = errors.New("validation error")

// ErrMissingKey is returned when a table carries neither a (date, ticker)
// index nor date/ticker columns.
var ErrMissingKey = fmt.Errorf("%w: table must have a (date, ticker) index or date and ticker columns", ErrValidation)

// ValidationError describes a table that cannot be used for an operation.
type ValidationError struct {
	Missing []string // Missing columns or key levels, sorted
	Reason  string
}

func (e *ValidationError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("validation error: missing required columns: [%s]", strings.Join(e.Missing, ", "))
	}
	return "validation error: " + e.Reason
}

// Unwrap lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// RequireColumns fails with a *ValidationError listing every column in cols
// that the panel does not carry. The key levels "date" and "ticker" are
// always present.
func RequireColumns(p *Panel, cols ...string) error {
	var missing []string
	for _, c := range cols {
		if !p.Has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return &ValidationError{Missing: missing}
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// ValidateConfig checks struct tags on a configuration value. Failures are
// wrapped in ErrValidation so callers can treat bad parameters the same way
// as bad input tables.
func ValidateConfig(name string, cfg interface{}) error {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: invalid %s config: %v", ErrValidation, name, err)
	}
	return nil
}
