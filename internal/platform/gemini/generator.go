// Package gemini implements the generation.Generator interface using
// Google's Gemini API to produce comprehension questions from paragraph
// text.
package gemini

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/mquint/readflow-api/internal/config"
	"github.com/mquint/readflow-api/internal/domain"
	"github.com/mquint/readflow-api/internal/generation"
)

//go:embed prompt.tmpl
var defaultPromptTemplate string

// ErrEmptyParagraphText is returned when a prompt is requested for an empty
// paragraph.
var ErrEmptyParagraphText = errors.New("paragraph text cannot be empty")

// Generator calls the Gemini API to produce a paragraph's question set.
type Generator struct {
	logger         *slog.Logger
	config         config.LLMConfig
	promptTemplate *template.Template
	client         *genai.Client
	model          string
}

// Ensure Generator implements generation.Generator.
var _ generation.Generator = (*Generator)(nil)

// NewGenerator creates a Generator with the provided dependencies.
func NewGenerator(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*Generator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	promptTemplate, err := template.New("questions").Parse(defaultPromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse prompt template: %v",
			generation.ErrInvalidConfig, err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
			generation.ErrInvalidConfig, err)
	}

	return &Generator{
		logger:         logger,
		config:         cfg,
		promptTemplate: promptTemplate,
		client:         client,
		model:          cfg.ModelName,
	}, nil
}

// GenerateQuestions produces the paragraph's full question set. It returns
// exactly domain.QuestionsPerParagraph validated questions or an error.
func (g *Generator) GenerateQuestions(
	ctx context.Context,
	paragraphID uuid.UUID,
	paragraphText string,
) ([]*domain.Question, error) {
	if paragraphID == uuid.Nil {
		return nil, domain.ErrEmptyParagraphID
	}

	prompt, err := g.createPrompt(ctx, paragraphText)
	if err != nil {
		return nil, err
	}

	response, err := g.callWithRetry(ctx, prompt)
	if err != nil {
		return nil, err
	}

	return g.parseResponse(ctx, response, paragraphID)
}

// createPrompt renders the prompt template with the paragraph text.
func (g *Generator) createPrompt(ctx context.Context, paragraphText string) (string, error) {
	if strings.TrimSpace(paragraphText) == "" {
		return "", ErrEmptyParagraphText
	}

	var buf bytes.Buffer
	if err := g.promptTemplate.Execute(&buf, promptData{ParagraphText: paragraphText}); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}

	g.logger.DebugContext(ctx, "prompt generated",
		"paragraph_length", len(paragraphText),
		"prompt_length", buf.Len())

	return buf.String(), nil
}

// callWithRetry makes the API call with exponential backoff and jitter for
// transient errors. Permanent errors (blocked content, malformed output)
// return immediately.
func (g *Generator) callWithRetry(ctx context.Context, prompt string) (*ResponseSchema, error) {
	maxRetries := g.config.MaxRetries
	if maxRetries < 0 {
		g.logger.WarnContext(ctx, "invalid max retries value, using default", "max_retries", 2)
		maxRetries = 2
	}
	baseDelaySeconds := g.config.RetryDelaySeconds
	if baseDelaySeconds < 1 {
		baseDelaySeconds = 2
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for attempt := 0; ; attempt++ {
		g.logger.InfoContext(ctx, "calling Gemini API",
			"attempt", attempt+1,
			"max_attempts", maxRetries+1)

		response, err, transient := g.callOnce(ctx, prompt)
		if err == nil {
			return response, nil
		}

		g.logger.ErrorContext(ctx, "Gemini API call failed",
			"attempt", attempt+1,
			"error", err)

		if !transient {
			return nil, err
		}
		if attempt >= maxRetries {
			return nil, fmt.Errorf("%w: exceeded maximum retry attempts (%d): %v",
				generation.ErrTransientFailure, maxRetries, err)
		}

		// delay = base * 2^attempt * (0.5 + rand(0, 0.5))
		backoff := float64(baseDelaySeconds) * math.Pow(2, float64(attempt))
		delay := time.Duration(backoff * (0.5 + rng.Float64()*0.5) * float64(time.Second))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", generation.ErrTransientFailure, ctx.Err())
		}
	}
}

// callOnce performs a single API round trip. The third return value reports
// whether a failure is worth retrying.
func (g *Generator) callOnce(ctx context.Context, prompt string) (*ResponseSchema, error, bool) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return nil, fmt.Errorf("gemini API error: %w", err), true
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse), false
	}
	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return nil, fmt.Errorf("%w: finish reason safety", generation.ErrContentBlocked), false
	}
	if candidate.Content == nil {
		return nil, fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse), false
	}

	var parsed ResponseSchema
	if err := json.Unmarshal([]byte(extractJSON(candidateText(candidate))), &parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON response: %v",
			generation.ErrInvalidResponse, err), false
	}

	return &parsed, nil, false
}

// candidateText concatenates the text parts of a response candidate.
func candidateText(candidate *genai.Candidate) string {
	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			text.WriteString(part.Text)
		}
	}
	return text.String()
}

// extractJSON trims markdown code fences the model sometimes wraps around
// its JSON output.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

// parseResponse validates the model output and converts it into domain
// questions. Anything short of a complete, well-formed set of
// domain.QuestionsPerParagraph questions is an error.
func (g *Generator) parseResponse(
	ctx context.Context,
	response *ResponseSchema,
	paragraphID uuid.UUID,
) ([]*domain.Question, error) {
	if response == nil {
		return nil, fmt.Errorf("%w: response is nil", generation.ErrInvalidResponse)
	}
	if len(response.Questions) != domain.QuestionsPerParagraph {
		return nil, fmt.Errorf("%w: expected %d questions, got %d",
			generation.ErrInvalidResponse, domain.QuestionsPerParagraph, len(response.Questions))
	}

	questions := make([]*domain.Question, 0, len(response.Questions))
	for i, qs := range response.Questions {
		if qs.Question == "" {
			return nil, fmt.Errorf("%w: question %d missing text", generation.ErrInvalidResponse, i+1)
		}
		for _, opt := range []string{domain.OptionA, domain.OptionB, domain.OptionC, domain.OptionD} {
			if qs.Options[opt] == "" {
				return nil, fmt.Errorf("%w: question %d missing option %s",
					generation.ErrInvalidResponse, i+1, opt)
			}
		}
		correct := strings.ToUpper(strings.TrimSpace(qs.CorrectAnswer))
		if !domain.IsValidOption(correct) {
			return nil, fmt.Errorf("%w: question %d has invalid correct answer %q",
				generation.ErrInvalidResponse, i+1, qs.CorrectAnswer)
		}

		question, err := domain.NewQuestion(
			paragraphID,
			qs.Question,
			qs.Options[domain.OptionA],
			qs.Options[domain.OptionB],
			qs.Options[domain.OptionC],
			qs.Options[domain.OptionD],
			correct,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: question %d failed validation: %v",
				generation.ErrInvalidResponse, i+1, err)
		}
		questions = append(questions, question)
	}

	g.logger.InfoContext(ctx, "parsed model response",
		"paragraph_id", paragraphID.String(),
		"question_count", len(questions))

	return questions, nil
}
