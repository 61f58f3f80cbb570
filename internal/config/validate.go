package config

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/adamancini/updraft/internal/types"
	"github.com/adamancini/updraft/internal/update"
)

// headerNamePattern matches RFC 7230 header field names
var headerNamePattern = regexp.MustCompile("^[!#$%&'*+.^_`|~0-9A-Za-z-]+$")

// ValidationError represents an Updraftfile validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the Updraftfile for required fields and valid values.
// Every problem is reported, not just the first.
func Validate(c *Updraftfile) error {
	var result *multierror.Error

	if c.Version != CurrentVersion {
		result = multierror.Append(result, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (must be %d)", c.Version, CurrentVersion),
		})
	}

	if c.App.Version == "" {
		result = multierror.Append(result, ValidationError{
			Field:   "app.version",
			Message: "version is required",
		})
	}

	for _, err := range validateSchemes(c.AllowedSchemes) {
		result = multierror.Append(result, err)
	}

	if err := validateAppcastURL(c); err != nil {
		result = multierror.Append(result, err)
	}

	if c.PublicKey != "" {
		if _, err := update.ParsePublicKey(c.PublicKey); err != nil {
			result = multierror.Append(result, ValidationError{
				Field:   "public_key",
				Message: err.Error(),
			})
		}
	}

	for _, err := range validateHeaders(c.HTTPHeaders) {
		result = multierror.Append(result, err)
	}

	if err := validateIntervals(c); err != nil {
		result = multierror.Append(result, err)
	}

	if err := c.Store.Backend.Validate(); err != nil {
		result = multierror.Append(result, ValidationError{
			Field:   "store.backend",
			Message: err.Error(),
		})
	}

	if result == nil {
		return nil
	}
	result.ErrorFormat = formatValidationErrors
	return result
}

func formatValidationErrors(errs []error) string {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("validation errors:\n  - %s", strings.Join(msgs, "\n  - "))
}

func validateSchemes(schemes []string) []error {
	var errs []error
	for i, s := range schemes {
		if _, err := types.ParseURLScheme(s); err != nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("allowed_schemes[%d]", i),
				Message: err.Error(),
			})
		}
	}
	return errs
}

func validateAppcastURL(c *Updraftfile) error {
	if c.AppcastURL == "" {
		return ValidationError{
			Field:   "appcast_url",
			Message: "appcast_url is required",
		}
	}

	u, err := url.Parse(c.AppcastURL)
	if err != nil || (u.Host == "" && u.Scheme != string(types.SchemeFile)) {
		return ValidationError{
			Field:   "appcast_url",
			Message: fmt.Sprintf("invalid URL '%s'", c.AppcastURL),
		}
	}

	policy := update.URLPolicy{AllowedSchemes: c.AllowedSchemes}
	if err := policy.Check(c.AppcastURL, update.RoleAppcastFeed); err != nil {
		return ValidationError{
			Field:   "appcast_url",
			Message: fmt.Sprintf("scheme '%s' is not in allowed_schemes", u.Scheme),
		}
	}
	return nil
}

func validateHeaders(headers map[string]string) []error {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		if !headerNamePattern.MatchString(name) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("http_headers.%s", name),
				Message: "invalid header name",
			})
			continue
		}
		if strings.ContainsAny(headers[name], "\r\n") {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("http_headers.%s", name),
				Message: "header value must be a single line",
			})
		}
	}
	return errs
}

func validateIntervals(c *Updraftfile) error {
	check, err := c.CheckIntervalDuration()
	if err != nil {
		return ValidationError{Field: "check_interval", Message: err.Error()}
	}
	if check != 0 && check < update.MinCheckInterval {
		return ValidationError{
			Field:   "check_interval",
			Message: fmt.Sprintf("must be at least %s", update.MinCheckInterval),
		}
	}

	poll, err := c.PollIntervalDuration()
	if err != nil {
		return ValidationError{Field: "poll_interval", Message: err.Error()}
	}
	if poll < 0 {
		return ValidationError{Field: "poll_interval", Message: "must not be negative"}
	}
	return nil
}
