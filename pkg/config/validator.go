package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate runs struct-tag validation over the fully merged Config and
// adds the cross-field checks the `validate` tags can't express. A
// startup-time failure here is Fatal per spec.md §7 ("malformed
// configuration... at startup").
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			field := verrs[0]
			return &ValidationError{
				Field: field.Namespace(),
				Err:   fmt.Errorf("%w: failed on %q", ErrValidationFailed, field.Tag()),
			}
		}
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	if !cfg.Identity.StaticMode && cfg.Identity.JWKSURL == "" {
		return &ValidationError{Field: "identity.jwks_url", Err: errors.New("required unless identity.static_mode is true")}
	}
	if cfg.Push.Enabled {
		if cfg.Push.TeamID == "" || cfg.Push.KeyID == "" || cfg.Push.BundleID == "" {
			return &ValidationError{Field: "push", Err: errors.New("team_id, key_id, and bundle_id are required when push.enabled is true")}
		}
	}

	return nil
}
