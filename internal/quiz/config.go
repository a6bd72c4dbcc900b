package quiz

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// MixedBucketTarget is the per-bucket quota in mixed mode.
const MixedBucketTarget = 10

var validate = validator.New()

// Validate checks the config shape and wraps failures in ErrConfigurationInvalid.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigurationInvalid, err)
	}
	return nil
}

// Targets resolves the per-bucket quotas for a generation run.
func (c Config) Targets() DifficultyCount {
	if c.Mode == ModeCustom && c.CustomDistribution != nil {
		return *c.CustomDistribution
	}
	return DifficultyCount{
		Easy:   MixedBucketTarget,
		Medium: MixedBucketTarget,
		Hard:   MixedBucketTarget,
	}
}
