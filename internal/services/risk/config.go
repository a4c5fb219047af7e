package risk

import (
	"fmt"

	"Agora/internal/domain/models"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// DefaultConfig returns the stock risk configuration.
func DefaultConfig() models.RiskConfig {
	var cfg models.RiskConfig
	if err := defaults.Set(&cfg); err != nil {
		panic(fmt.Sprintf("risk: default config tags: %v", err))
	}
	return cfg
}

// ValidateConfig checks that percentages are in (0,1], budgets are positive
// and the sizing and stop methods are known.
func ValidateConfig(cfg models.RiskConfig) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalidConfig, err)
	}
	if !cfg.SizingMethod.Valid() {
		return fmt.Errorf("%w: unknown sizing method %d", models.ErrInvalidConfig, cfg.SizingMethod)
	}
	if !cfg.StopMethod.Valid() {
		return fmt.Errorf("%w: unknown stop method %d", models.ErrInvalidConfig, cfg.StopMethod)
	}
	return nil
}
