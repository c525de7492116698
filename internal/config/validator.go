package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators registers the nero-specific validation
// rules. Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("abs_path", validateAbsPath); err != nil {
		return fmt.Errorf("register abs_path validator: %w", err)
	}
	return nil
}

// validateAbsPath requires an absolute filesystem path. Relative data
// roots would silently scatter state across working directories.
func validateAbsPath(fl validator.FieldLevel) bool {
	return filepath.IsAbs(fl.Field().String())
}

// Validate checks the struct tags and cross-field rules.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := RegisterCustomValidators(v); err != nil {
		return err
	}
	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	// A backpressure timeout longer than the flush cadence means a full
	// channel can stall callers past a whole flush cycle.
	if c.Audit.SendTimeoutMS > c.Audit.FlushMillis {
		return fmt.Errorf("audit: send_timeout_ms (%d) must not exceed flush_ms (%d)",
			c.Audit.SendTimeoutMS, c.Audit.FlushMillis)
	}
	return nil
}

// formatValidationErrors converts validator.ValidationErrors into
// actionable messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	case "abs_path":
		return fmt.Sprintf("%s must be an absolute path", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, e.Tag())
	}
}
