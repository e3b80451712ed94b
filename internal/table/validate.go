package table

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the config's structure. All problems are reported together.
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}

	var errs []string

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validate table config: %w", err)
		}
		for _, fe := range verrs {
			errs = append(errs, describeFieldError(fe))
		}
	}

	seen := make(map[string]bool, len(c.Columns))
	for _, col := range c.Columns {
		if col.Field == "" {
			continue
		}
		if seen[col.Field] {
			errs = append(errs, fmt.Sprintf("duplicate column field %q", col.Field))
		}
		seen[col.Field] = true
	}

	names := make(map[string]bool, len(c.Actions))
	for _, a := range c.Actions {
		if names[a.Name] {
			errs = append(errs, fmt.Sprintf("duplicate action %q", a.Name))
		}
		names[a.Name] = true
	}

	if c.RowsPerPage > 0 && len(c.RowsPerPageOptions) > 0 && !slices.Contains(c.RowsPerPageOptions, c.RowsPerPage) {
		errs = append(errs, fmt.Sprintf("rowsPerPage %d not in rowsPerPageOptions %v", c.RowsPerPage, c.RowsPerPageOptions))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid table config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func describeFieldError(fe validator.FieldError) string {
	if fe.Param() != "" {
		return fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag())
}
