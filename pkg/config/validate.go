package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks cfg against its struct tags and cross-field rules.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, e := range verrs {
				msgs = append(msgs, fieldMessage(e))
			}
			return fmt.Errorf("%s", strings.Join(msgs, "; "))
		}
		return err
	}

	if cfg.Store.Type == "redis" && cfg.Store.Redis.Addr == "" {
		return fmt.Errorf("store.redis.addr is required when store.type is redis")
	}
	if cfg.Store.Type == "badger" && cfg.Store.Badger.Path == "" && !cfg.Store.Badger.InMemory {
		return fmt.Errorf("store.badger.path is required unless store.badger.in_memory is set")
	}
	if cfg.Source.RateLimit.Shared && cfg.Store.Type != "redis" {
		return fmt.Errorf("source.rate_limit.shared requires store.type redis")
	}
	return nil
}

// fieldMessage renders a validation error with the config key path.
func fieldMessage(e validator.FieldError) string {
	field := e.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s] (got %v)", field, e.Param(), e.Value())
	case "gt", "gte", "lte":
		return fmt.Sprintf("%s must be %s %s (got %v)", field, e.Tag(), e.Param(), e.Value())
	default:
		return fmt.Sprintf("%s is invalid: %s", field, e.Tag())
	}
}
