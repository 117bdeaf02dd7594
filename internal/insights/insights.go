// Package insights produces short natural-language summaries of a tract's
// climate burden profile for the query API.
package insights

import (
	"context"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/climateburdentract/cbi-pipeline/internal/store"
)

// Generator turns a stored tract score into a prose summary.
type Generator interface {
	Summarize(ctx context.Context, score *store.TractScore, percentile float64) (string, error)
}

const systemPrompt = `You are a climate risk analyst. Given composite scores for one U.S. census
tract, write a 2-3 sentence plain-language summary of its climate burden.
Mention the index value, how it compares to other tracts, and the main
drivers. Do not speculate beyond the numbers provided.`

// LLMGenerator implements Generator with the Anthropic Messages API.
type LLMGenerator struct {
	client    sdk.Client
	model     string
	maxTokens int64
}

// NewLLMGenerator builds a generator for the given model. A non-positive
// maxTokens falls back to 1024.
func NewLLMGenerator(apiKey, model string, maxTokens int64) *LLMGenerator {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &LLMGenerator{
		client:    sdk.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: maxTokens,
	}
}

func (g *LLMGenerator) Summarize(ctx context.Context, score *store.TractScore, percentile float64) (string, error) {
	msg, err := g.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(g.model),
		MaxTokens: g.maxTokens,
		System:    []sdk.TextBlockParam{{Text: systemPrompt}},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(scorePrompt(score, percentile))),
		},
	})
	if err != nil {
		return "", eris.Wrapf(err, "insights: summarize tract %s", score.GEOID)
	}

	var text string
	for _, b := range msg.Content {
		if b.Type == "text" {
			text += b.Text
		}
	}
	if text == "" {
		return "", eris.Errorf("insights: empty summary for tract %s", score.GEOID)
	}

	zap.L().Debug("tract summary generated",
		zap.String("geoid", score.GEOID),
		zap.Int64("input_tokens", msg.Usage.InputTokens),
		zap.Int64("output_tokens", msg.Usage.OutputTokens),
	)
	return text, nil
}

func scorePrompt(score *store.TractScore, percentile float64) string {
	prompt := fmt.Sprintf(
		"Tract %s: climate burden index %.1f/100 (%.0fth percentile), burden score %.2f, vulnerability score %.2f.",
		score.GEOID, score.CBINormalized, percentile*100, score.BurdenScore, score.Vulnerability,
	)
	if score.HeatAnnualMean != nil {
		prompt += fmt.Sprintf(" Annual mean temperature %.1fF.", *score.HeatAnnualMean)
	}
	if score.PM25Mean != nil {
		prompt += fmt.Sprintf(" Mean PM2.5 %.1f.", *score.PM25Mean)
	}
	if score.OzoneMean != nil {
		prompt += fmt.Sprintf(" Mean ozone %.1f ppb.", *score.OzoneMean)
	}
	if score.SVIComposite != nil {
		prompt += fmt.Sprintf(" Social vulnerability composite %.2f.", *score.SVIComposite)
	}
	return prompt
}

// StaticGenerator implements Generator without an API key: it renders a
// templated summary from the scores alone.
type StaticGenerator struct{}

func (StaticGenerator) Summarize(_ context.Context, score *store.TractScore, percentile float64) (string, error) {
	level := "moderate"
	switch {
	case score.CBINormalized >= 75:
		level = "high"
	case score.CBINormalized < 25:
		level = "low"
	}
	return fmt.Sprintf(
		"Tract %s has a %s climate burden index of %.1f out of 100, higher than %.0f%% of scored tracts. "+
			"Its climate burden score is %.2f and its social vulnerability score is %.2f.",
		score.GEOID, level, score.CBINormalized, percentile*100, score.BurdenScore, score.Vulnerability,
	), nil
}
