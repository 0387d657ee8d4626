package config

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/parcelgate/parcelgate/internal/domain/auth"
)

// RegisterCustomValidators registers parcelgate-specific validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("audit_output", validateAuditOutput); err != nil {
		return fmt.Errorf("failed to register audit_output validator: %w", err)
	}
	return nil
}

// validateAuditOutput accepts "memory" or "file://<absolute-dir>".
func validateAuditOutput(fl validator.FieldLevel) bool {
	output := fl.Field().String()

	if output == "memory" {
		return true
	}

	if strings.HasPrefix(output, "file://") {
		dir := strings.TrimPrefix(output, "file://")
		return dir != "" && filepath.IsAbs(dir)
	}

	return false
}

// Validate checks the Config via struct tags plus cross-field rules.
// Errors carry actionable messages.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if c.Store.Backend == "sqlite" && c.Store.Path == "" {
		return errors.New("store.path is required for the sqlite backend")
	}

	for _, field := range []struct{ name, value string }{
		{"audit.flush_interval", c.Audit.FlushInterval},
		{"audit.send_timeout", c.Audit.SendTimeout},
	} {
		if field.value == "" || field.value == "0" {
			continue
		}
		if _, err := time.ParseDuration(field.value); err != nil {
			return fmt.Errorf("%s is not a valid duration: %q", field.name, field.value)
		}
	}

	for i, hash := range c.Auth.APIKeys {
		if auth.DetectHashType(hash) == "unknown" {
			return fmt.Errorf("auth.api_keys[%d]: not a sha256: or argon2id hash (generate with 'parcelgate hash-key')", i)
		}
	}

	if err := c.validateBindAddress(); err != nil {
		return err
	}

	return nil
}

// validateBindAddress refuses a non-loopback bind without API keys.
// An unauthenticated decision API must not be reachable from the network.
func (c *Config) validateBindAddress() error {
	if len(c.Auth.APIKeys) > 0 || c.DevMode {
		return nil
	}

	host, _, err := net.SplitHostPort(c.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("server.http_addr is not a valid host:port: %q", c.Server.HTTPAddr)
	}

	if host == "localhost" {
		return nil
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return nil
	}

	return fmt.Errorf("server.http_addr %q is not loopback: configure auth.api_keys or set dev_mode", c.Server.HTTPAddr)
}

// formatValidationErrors converts validator.ValidationErrors to
// user-friendly messages.
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

// formatSingleValidationError creates a user-friendly message for one
// validation error.
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
	case "audit_output":
		return fmt.Sprintf("%s must be 'memory' or 'file://<absolute-dir>'", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, e.Tag())
	}
}
