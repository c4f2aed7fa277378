// Package llm wraps the Gemini API behind a small text-generation client used for drafting.
package llm

// ModelTier picks a model by how much reasoning a prompt needs.
type ModelTier string

const (
	// TierLite suits short factual answers.
	TierLite ModelTier = "lite"
	// TierStandard suits cover letters and free-text answers.
	TierStandard ModelTier = "standard"
)

// Provider names an LLM backend.
type Provider string

// ProviderGemini is the only backend wired today.
const ProviderGemini Provider = "gemini"

// Config maps tiers to model names and sets sampling.
type Config struct {
	Provider    Provider
	Models      map[ModelTier]string
	Temperature float32
}

// DefaultConfig returns the Gemini configuration.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
		},
		Temperature: 0.2,
	}
}

// GetModel returns the model for tier, falling back to standard and then lite.
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	if model, ok := c.Models[TierLite]; ok {
		return model
	}
	return ""
}

// WithModel returns a copy of c with tier mapped to model.
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	out := &Config{Provider: c.Provider, Models: make(map[ModelTier]string, len(c.Models)+1), Temperature: c.Temperature}
	for k, v := range c.Models {
		out.Models[k] = v
	}
	out.Models[tier] = model
	return out
}
