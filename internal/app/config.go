package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	PipelinePath string            `validate:"required"`
	Vars         map[string]string // overrides for pipeline variables

	Frames      int    `validate:"gte=1"`
	Generations int    `validate:"gte=1"`
	CullPolicy  string `validate:"oneof=cull keep"`
	Pooling     bool
	// PlanOnly compiles the first generation and prints the plan without
	// executing it.
	PlanOnly bool

	PlanFormat    string `validate:"oneof=text yaml json"`
	GraphvizPath  string
	IncludeCulled bool
	Metrics       bool

	LogFormat string `validate:"oneof=text json"`
	LogLevel  string `validate:"oneof=debug info warn error"`
}

// DefaultConfig returns the configuration the CLI starts from.
func DefaultConfig() Config {
	return Config{
		Frames:      1,
		Generations: 1,
		CullPolicy:  "cull",
		Pooling:     true,
		PlanFormat:  "text",
		LogFormat:   "text",
		LogLevel:    "info",
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// NewConfig validates cfg and returns a copy of it.
func NewConfig(cfg Config) (*Config, error) {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, err
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, describe(fe))
		}
		return nil, errors.New(strings.Join(msgs, "; "))
	}
	return &cfg, nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is a required configuration field and cannot be empty", fe.Field())
	case "gte":
		return fmt.Sprintf("%s must be at least %s, got %v", fe.Field(), fe.Param(), fe.Value())
	case "oneof":
		return fmt.Sprintf("invalid %s %q: must be one of %s", fe.Field(), fe.Value(), fe.Param())
	default:
		return fmt.Sprintf("%s failed the %q check", fe.Field(), fe.Tag())
	}
}
