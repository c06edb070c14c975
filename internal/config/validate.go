package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

// Interval bounds, in hours.
const (
	MinIntervalHours = 1
	MaxIntervalHours = 168
)

// SourceTypes lists the adapter types a source entry may name.
var SourceTypes = []string{
	"greenhouse",
	"lever",
	"ashby",
	"workable",
	"remoteok",
	"remotive",
	"adzuna",
	"weworkremotely",
	"hackernews",
	"careerpage",
	"googlesearch",
}

// ValidationError describes one invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every problem found in one pass.
type ValidationErrors []*ValidationError

func (ve ValidationErrors) Error() string {
	msgs := make([]string, len(ve))
	for i, e := range ve {
		msgs[i] = e.Error()
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks struct-level constraints and the cross-field rules the
// tags cannot express. All problems are reported together.
func (c *Config) Validate() error {
	var errs ValidationErrors

	if err := structValidator.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				errs = append(errs, &ValidationError{
					Field:   trimNamespace(fe.Namespace()),
					Message: describeTag(fe),
				})
			}
		} else {
			errs = append(errs, &ValidationError{Field: "(root)", Message: err.Error()})
		}
	}

	errs = append(errs, c.validateSchedule()...)
	errs = append(errs, c.validatePipeline()...)
	errs = append(errs, c.validateSources()...)

	if c.Alerts.Redis != nil && c.RedisURL == "" {
		errs = append(errs, &ValidationError{Field: "alerts.redis", Message: "requires redis_url"})
	}

	if c.Weights != nil && c.Weights.Sum() <= 0 {
		errs = append(errs, &ValidationError{Field: "weights", Message: "at least one weight must be positive"})
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func (c *Config) validateSchedule() ValidationErrors {
	var errs ValidationErrors
	s := c.Schedule

	if s.Cron != "" {
		if _, err := cron.ParseStandard(s.Cron); err != nil {
			errs = append(errs, &ValidationError{
				Field:   "schedule.cron",
				Message: fmt.Sprintf("invalid cron expression %q: %v", s.Cron, err),
			})
		}
		if s.IntervalHours != 0 {
			errs = append(errs, &ValidationError{
				Field:   "schedule",
				Message: "set either interval_hours or cron, not both",
			})
		}
		return errs
	}

	if s.IntervalHours < MinIntervalHours || s.IntervalHours > MaxIntervalHours {
		errs = append(errs, &ValidationError{
			Field: "schedule.interval_hours",
			Message: fmt.Sprintf("must be between %d and %d hours (got %d)",
				MinIntervalHours, MaxIntervalHours, s.IntervalHours),
		})
	}
	return errs
}

func (c *Config) validatePipeline() ValidationErrors {
	var errs ValidationErrors
	if c.Pipeline.AdapterTimeout.Duration < 0 {
		errs = append(errs, &ValidationError{Field: "pipeline.adapter_timeout", Message: "must not be negative"})
	}
	if st := c.Pipeline.SourceTimeout.Duration; st != 0 && st < c.Pipeline.AdapterTimeout.Duration {
		errs = append(errs, &ValidationError{
			Field:   "pipeline.source_timeout",
			Message: fmt.Sprintf("must be at least adapter_timeout (%s), got %s", c.Pipeline.AdapterTimeout, c.Pipeline.SourceTimeout),
		})
	}
	if c.Pipeline.ShutdownTimeout.Duration < 0 {
		errs = append(errs, &ValidationError{Field: "pipeline.shutdown_timeout", Message: "must not be negative"})
	}
	if c.Throttle.MaxDelay.Duration < c.Throttle.BaseDelay.Duration {
		errs = append(errs, &ValidationError{
			Field:   "throttle.max_delay",
			Message: fmt.Sprintf("must be at least base_delay (%s)", c.Throttle.BaseDelay),
		})
	}
	return errs
}

func (c *Config) validateSources() ValidationErrors {
	var errs ValidationErrors
	seen := make(map[string]bool, len(c.Sources))
	for i, s := range c.Sources {
		field := fmt.Sprintf("sources[%d]", i)
		if seen[s.Name] {
			errs = append(errs, &ValidationError{Field: field + ".name", Message: fmt.Sprintf("duplicate source name %q", s.Name)})
		}
		seen[s.Name] = true
		if s.Type != "" && !knownSourceType(s.Type) {
			errs = append(errs, &ValidationError{
				Field:   field + ".type",
				Message: fmt.Sprintf("unknown source type %q (known: %s)", s.Type, strings.Join(SourceTypes, ", ")),
			})
		}
	}
	return errs
}

func knownSourceType(t string) bool {
	for _, known := range SourceTypes {
		if known == t {
			return true
		}
	}
	return false
}

func trimNamespace(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return fmt.Sprintf("%q is not a valid email address", fe.Value())
	case "url":
		return fmt.Sprintf("%q is not a valid URL", fe.Value())
	case "oneof":
		return fmt.Sprintf("must be one of [%s] (got %v)", fe.Param(), fe.Value())
	case "gte":
		return fmt.Sprintf("must be at least %s (got %v)", fe.Param(), fe.Value())
	case "lte":
		return fmt.Sprintf("must be at most %s (got %v)", fe.Param(), fe.Value())
	case "min":
		return fmt.Sprintf("must have at least %s entries", fe.Param())
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}
