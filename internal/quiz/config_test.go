package quiz

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "mixed", cfg: Config{Mode: ModeMixed}},
		{name: "custom", cfg: Config{Mode: ModeCustom, CustomDistribution: &DifficultyCount{Easy: 2}}},
		{name: "custom without distribution", cfg: Config{Mode: ModeCustom}, wantErr: true},
		{name: "unknown mode", cfg: Config{Mode: "adaptive"}, wantErr: true},
		{name: "empty mode", cfg: Config{}, wantErr: true},
		{name: "negative count", cfg: Config{Mode: ModeCustom, CustomDistribution: &DifficultyCount{Hard: -1}}, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr {
				assert.True(t, errors.Is(err, ErrConfigurationInvalid), "got %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestConfigTargets(t *testing.T) {
	mixed := Config{Mode: ModeMixed}.Targets()
	assert.Equal(t, DifficultyCount{Easy: 10, Medium: 10, Hard: 10}, mixed)

	custom := Config{Mode: ModeCustom, CustomDistribution: &DifficultyCount{Easy: 2, Hard: 1}}.Targets()
	assert.Equal(t, 2, custom.For(DifficultyEasy))
	assert.Equal(t, 0, custom.For(DifficultyMedium))
	assert.Equal(t, 1, custom.For(DifficultyHard))
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusActive.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusAutoSubmitted.Terminal())
}
