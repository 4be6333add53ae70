package custom_errors

import (
	"github.com/cockroachdb/errors"
)

// ValidationError collects every problem found while checking an input so
// they can be reported together.
type ValidationError struct {
	Errors []error `json:"errors"`
}

func (c *ValidationError) Add(err error) {
	c.Errors = append(c.Errors, err)
}

// Addf records a formatted validation failure.
func (c *ValidationError) Addf(format string, args ...any) {
	c.Errors = append(c.Errors, errors.Newf(format, args...))
}

func (c *ValidationError) HasError() bool {
	return len(c.Errors) > 0
}

func (c *ValidationError) Error() string {
	if len(c.Errors) == 0 {
		return ""
	}
	return errors.Join(c.Errors...).Error()
}

func (c *ValidationError) Unwrap() []error {
	return c.Errors
}

// Messages returns the message of each collected error.
func (c *ValidationError) Messages() []string {
	out := make([]string, 0, len(c.Errors))
	for _, err := range c.Errors {
		out = append(out, err.Error())
	}
	return out
}
