package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError is one rejected configuration field.
type ValidationError struct {
	Field   string
	Tag     string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s failed %q validation", e.Field, e.Tag)
}

// ValidationErrors collects every rejected field of one config.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	messages := make([]string, 0, len(e))
	for _, err := range e {
		messages = append(messages, err.Error())
	}
	return "config validation failed: " + strings.Join(messages, "; ")
}

var validate = validator.New()

// Validate applies struct tags plus the cross-field rules tags cannot
// express: weights must sum to 1 and the Act threshold must sit above
// Deliberate.
func Validate(cfg *Config) error {
	if cfg == nil {
		return ValidationErrors{{Field: "config", Tag: "required", Message: "config is nil"}}
	}

	var out ValidationErrors

	if err := validate.Struct(cfg); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			for _, e := range errs {
				out = append(out, ValidationError{
					Field: e.Namespace(),
					Tag:   e.Tag(),
					Value: e.Value(),
				})
			}
		} else {
			out = append(out, ValidationError{Message: err.Error()})
		}
	}

	if !weightsSumTo1(cfg.Scoring.Weights) {
		sum := cfg.Scoring.Weights.Reversibility + cfg.Scoring.Weights.Precedent + cfg.Scoring.Weights.BlastRadius
		out = append(out, ValidationError{
			Field:   "scoring.weights",
			Tag:     "sum",
			Value:   sum,
			Message: fmt.Sprintf("scoring weights must sum to 1, got %.3f", sum),
		})
	}

	if cfg.Scoring.Thresholds.Act <= cfg.Scoring.Thresholds.Deliberate {
		out = append(out, ValidationError{
			Field:   "scoring.thresholds",
			Tag:     "ordering",
			Message: "the act threshold must be above the deliberate threshold",
		})
	}

	if len(out) > 0 {
		return out
	}
	return nil
}
