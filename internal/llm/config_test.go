package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig(ProviderOpenAI)
	assert.Equal(t, ProviderOpenAI, config.Provider)
	assert.Equal(t, "gpt-4o-mini", config.GetModel(TierStandard))
	assert.Equal(t, DefaultTemperature, config.Temperature)

	gemini := DefaultConfig(ProviderGemini)
	assert.Equal(t, ProviderGemini, gemini.Provider)
	assert.Equal(t, "gemini-2.5-flash-lite", gemini.GetModel(TierLite))
	assert.Equal(t, "gemini-2.5-flash", gemini.GetModel(TierStandard))
	assert.Equal(t, "gemini-2.5-pro", gemini.GetModel(TierAdvanced))

	assert.Equal(t, ProviderOpenAI, DefaultConfig("unknown").Provider)
}

func TestGetModel_Fallback(t *testing.T) {
	config := &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite: "fallback-model",
		},
	}

	// Unknown tier should fallback to TierStandard, then TierLite
	assert.Equal(t, "fallback-model", config.GetModel("unknown"))
}

func TestGetModel_EmptyConfig(t *testing.T) {
	config := &Config{Models: map[ModelTier]string{}}
	assert.Empty(t, config.GetModel(TierStandard))
}

func TestWithModel(t *testing.T) {
	original := DefaultOpenAIConfig()
	modified := original.WithModel(TierAdvanced, "custom-model")

	assert.Equal(t, "custom-model", modified.GetModel(TierAdvanced))
	assert.Equal(t, "gpt-4o", original.GetModel(TierAdvanced))
	assert.Equal(t, original.Temperature, modified.Temperature)
}

func TestFromSettings(t *testing.T) {
	cfg := FromSettings("Gemini", "", map[string]string{"LITE": "gemini-tiny", "standard": " "})

	assert.Equal(t, ProviderGemini, cfg.Provider)
	assert.Equal(t, "gemini-tiny", cfg.GetModel(TierLite))
	assert.Equal(t, "gemini-2.5-flash", cfg.GetModel(TierStandard))

	custom := FromSettings("openai", "http://localhost:11434/v1", nil)
	assert.Equal(t, "http://localhost:11434/v1", custom.BaseURL)
}
