package runtime

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

// Package-level validator instance, shared by every step's config decode.
var validate *validator.Validate

func init() {
	validate = validator.New()
	registerCustomValidators()
}

// DecodeStepConfig is the single entry point every step factory uses to turn
// a recipe's raw JSON-object config into its typed Config struct: apply
// struct-tag defaults, decode the raw map onto the struct, then validate.
func DecodeStepConfig(raw map[string]any, out any) error {
	if err := defaults.Set(out); err != nil {
		return fmt.Errorf("apply defaults: %w", err)
	}

	if err := mapToStruct(raw, out); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}

	if err := validateConfig(out); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	return nil
}

func registerCustomValidators() {
	// url_format validates that a field parses as an absolute URL.
	validate.RegisterValidation("url_format", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		u, err := url.Parse(s)
		return err == nil && u.Scheme != "" && u.Host != ""
	})
}

func validateConfig(config any) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := validate.Struct(config); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			var msgs []string
			for _, fieldErr := range validationErrors {
				msgs = append(msgs, fmt.Sprintf(
					"field '%s' failed validation: %s (rule: %s)",
					fieldErr.Field(), fieldErr.Error(), fieldErr.Tag(),
				))
			}
			return fmt.Errorf("%s", strings.Join(msgs, "; "))
		}
		return err
	}

	return nil
}

// RegisterCustomValidator lets a step package extend the shared validator
// with a domain-specific rule (e.g. a provider/model grammar check).
func RegisterCustomValidator(tag string, fn validator.Func) error {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		return fmt.Errorf("register validator %q: %w", tag, err)
	}
	return nil
}
