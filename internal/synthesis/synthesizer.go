package synthesis

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/caselight/caselight/internal/logging"
	"github.com/caselight/caselight/internal/search"
)

const (
	// maxSources caps how many passages reach the prompt.
	maxSources = 5

	systemPrompt = "You are a helpful legal document assistant that provides accurate information based on source documents."

	// Fixed user-facing strings. Synthesis never surfaces an error to the
	// caller; a failed or unconfigured oracle produces an answer string.
	msgNotConfigured = "Error: completion API key not configured. Answer synthesis is unavailable."
	msgNoResults     = "No relevant information found to answer your question."
)

// Config holds answer generation settings.
type Config struct {
	// MaxTokens bounds answer length. Default: 500.
	MaxTokens int
	// Temperature biases toward factual output. Default: 0.3.
	Temperature float64
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.MaxTokens == 0 {
		c.MaxTokens = 500
	}
	if c.Temperature == 0 {
		c.Temperature = 0.3
	}
}

// Synthesizer turns retrieved passages into a cited answer.
type Synthesizer struct {
	config Config
	client CompletionClient // nil disables synthesis
	logger *logging.Logger
}

// NewSynthesizer creates a Synthesizer. client may be nil when no API key
// is configured; Synthesize then returns a fixed notice instead of failing.
func NewSynthesizer(config Config, client CompletionClient, logger *logging.Logger) *Synthesizer {
	config.ApplyDefaults()
	return &Synthesizer{config: config, client: client, logger: logger}
}

// Synthesize generates an answer to the query grounded in the top search
// results. It always returns a string: configuration and oracle failures
// become answer text so the search response itself never fails.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, results []search.Result) string {
	if s.client == nil {
		return msgNotConfigured
	}
	if len(results) == 0 {
		return msgNoResults
	}

	answer, err := s.client.Complete(ctx, systemPrompt, buildPrompt(query, results), s.config.Temperature, s.config.MaxTokens)
	if err != nil {
		s.logger.Error(ctx, "answer synthesis failed", zap.Error(err))
		return fmt.Sprintf("Error generating answer: %v", err)
	}

	s.logger.Info(ctx, "answer synthesized",
		zap.Int("sources", min(len(results), maxSources)),
		zap.Int("answer_chars", len(answer)))
	return answer
}

// buildPrompt assembles the context block and instructions. Each passage
// is labeled so the model can cite it as [Source N].
func buildPrompt(query string, results []search.Result) string {
	var context strings.Builder
	for i, r := range results {
		if i == maxSources {
			break
		}
		fmt.Fprintf(&context, "[Source %d: %s, Page %d]\n%s\n\n", i+1, r.Filename, r.Page, r.Content)
	}

	return fmt.Sprintf(`You are a legal document assistant. Based on the following excerpts from legal documents, provide a clear and concise answer to the user's question.

Context from legal documents:
%s
User's question: %s

Instructions:
- Provide a direct answer to the question based ONLY on the information in the context
- Cite sources using [Source X] notation when referencing specific information
- If the context doesn't contain enough information to fully answer, acknowledge this
- Keep your answer concise but complete
- Use professional legal language where appropriate

Answer:`, context.String(), query)
}
