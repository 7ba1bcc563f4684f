package generator

import (
	"math"
	"unicode/utf8"

	"google.golang.org/genai"

	"github.com/simonyos/zchat/internal/config"
	"github.com/simonyos/zchat/internal/llm"
)

// CharsPerToken is the divisor used to estimate token counts per provider.
// These are rough heuristics, not tokenizer output; exact counts would need
// each provider's tokenizer.
var CharsPerToken = map[config.ProviderID]float64{
	config.ProviderLocal: 4,
	config.ProviderCloud: 3.5,
	providerGemini:       4,
}

// defaultCharsPerToken applies to providers missing from CharsPerToken.
const defaultCharsPerToken = 4

// EstimateTokens returns ceil(characters / divisor) for provider. Characters
// are counted as runes.
func EstimateTokens(provider config.ProviderID, text string) int32 {
	k, ok := CharsPerToken[provider]
	if !ok || k <= 0 {
		k = defaultCharsPerToken
	}
	n := utf8.RuneCountInString(text)
	return int32(math.Ceil(float64(n) / k))
}

// usageFor prefers counts reported by the provider and estimates otherwise.
// The total is always prompt + completion unless the provider supplied one.
func usageFor(provider config.ProviderID, reported *llm.Usage, prompt, completion string) (*genai.GenerateContentResponseUsageMetadata, bool) {
	if reported != nil && (reported.PromptTokens > 0 || reported.CompletionTokens > 0) {
		total := reported.TotalTokens
		if total == 0 {
			total = reported.PromptTokens + reported.CompletionTokens
		}
		return &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     int32(reported.PromptTokens),
			CandidatesTokenCount: int32(reported.CompletionTokens),
			TotalTokenCount:      int32(total),
		}, false
	}

	p := EstimateTokens(provider, prompt)
	c := EstimateTokens(provider, completion)
	return &genai.GenerateContentResponseUsageMetadata{
		PromptTokenCount:     p,
		CandidatesTokenCount: c,
		TotalTokenCount:      p + c,
	}, true
}
