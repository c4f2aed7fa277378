package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	assert.Equal(t, ProviderGemini, c.Provider)
	assert.Equal(t, "gemini-2.5-flash-lite", c.GetModel(TierLite))
	assert.Equal(t, "gemini-2.5-flash", c.GetModel(TierStandard))
	assert.InDelta(t, 0.2, c.Temperature, 1e-6)
}

func TestGetModel_Fallback(t *testing.T) {
	c := &Config{Models: map[ModelTier]string{TierLite: "fallback-model"}}
	assert.Equal(t, "fallback-model", c.GetModel("unknown"))
	assert.Equal(t, "fallback-model", c.GetModel(TierStandard))

	assert.Empty(t, (&Config{Models: map[ModelTier]string{}}).GetModel(TierStandard))
}

func TestWithModel(t *testing.T) {
	c := DefaultConfig()
	custom := c.WithModel(TierStandard, "custom-model")

	assert.Equal(t, "gemini-2.5-flash", c.GetModel(TierStandard))
	assert.Equal(t, "custom-model", custom.GetModel(TierStandard))
	assert.Equal(t, "gemini-2.5-flash-lite", custom.GetModel(TierLite))
	assert.Equal(t, c.Temperature, custom.Temperature)
}
