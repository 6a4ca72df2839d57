// Package suggest asks a language model for alternative campaign subject lines
// and message bodies. The model answers in free text; the first JSON object in
// the answer carries the suggestions.
package suggest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/teemow/outreach/internal/campaign"
	"github.com/teemow/outreach/internal/instrumentation"
	"github.com/teemow/outreach/internal/logging"
)

// Count is how many subjects and messages are requested.
const Count = 5

// ErrNoJSON is returned when the model reply contains no JSON object.
var ErrNoJSON = errors.New("no JSON object in model response")

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Suggestions are the alternatives proposed by the model.
type Suggestions struct {
	Subjects []string `json:"subject_suggestions"`
	Messages []string `json:"message_suggestions"`
}

// Pick returns the selection made of the 1-based subject and message numbers.
func (s *Suggestions) Pick(subjectNumber, messageNumber int) (campaign.Selection, error) {
	if subjectNumber < 1 || subjectNumber > len(s.Subjects) {
		return campaign.Selection{}, fmt.Errorf("subject number must be between 1 and %d", len(s.Subjects))
	}
	if messageNumber < 1 || messageNumber > len(s.Messages) {
		return campaign.Selection{}, fmt.Errorf("message number must be between 1 and %d", len(s.Messages))
	}
	return campaign.Selection{
		Subject:       s.Subjects[subjectNumber-1],
		Message:       s.Messages[messageNumber-1],
		SubjectNumber: subjectNumber,
		MessageNumber: messageNumber,
	}, nil
}

// Service turns a draft into suggestions.
type Service struct {
	gen     Generator
	logger  *slog.Logger
	metrics *instrumentation.Metrics
}

// NewService returns a Service using gen. logger and metrics may be nil.
func NewService(gen Generator, logger *slog.Logger, metrics *instrumentation.Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		gen:     gen,
		logger:  logging.WithComponent(logger, "suggest"),
		metrics: metrics,
	}
}

// Suggest asks for Count subject lines and Count messages based on the draft.
func (s *Service) Suggest(ctx context.Context, subject, message string) (result *Suggestions, err error) {
	ctx, span := instrumentation.StartSpan(ctx, "suggest.generate")
	defer span.End()
	defer func() {
		status := instrumentation.StatusSuccess
		if err != nil {
			status = instrumentation.StatusError
			instrumentation.SetSpanError(span, err)
		}
		s.metrics.RecordSuggest(ctx, status)
	}()

	if strings.TrimSpace(subject) == "" && strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("subject or message is required")
	}

	text, err := s.gen.Generate(ctx, BuildPrompt(subject, message))
	if err != nil {
		return nil, fmt.Errorf("failed to generate suggestions: %w", err)
	}

	result, err = ExtractJSON(text)
	if err != nil {
		s.logger.Warn("unusable model response", logging.Err(err), slog.Int("length", len(text)))
		return nil, err
	}
	for i := range result.Messages {
		result.Messages[i] = campaign.NormalizeTemplate(result.Messages[i])
	}
	s.logger.Debug("suggestions generated",
		logging.Count("subjects", len(result.Subjects)),
		logging.Count("messages", len(result.Messages)))
	return result, nil
}

// BuildPrompt renders the instruction sent to the model.
func BuildPrompt(subject, message string) string {
	var b strings.Builder
	b.WriteString("You are an expert marketing agent. Based on the following inputs, suggest:\n")
	fmt.Fprintf(&b, "- %d improved subject lines\n", Count)
	fmt.Fprintf(&b, "- %d improved email messages that feel personalized but professional\n\n", Count)
	b.WriteString("Original Subject Line:\n")
	b.WriteString(subject)
	b.WriteString("\n\nOriginal Email Message:\n")
	b.WriteString(message)
	b.WriteString("\n\nThe email message should include a placeholder ")
	b.WriteString(campaign.Placeholder)
	b.WriteString(" where the name will be injected later.\n")
	b.WriteString("Respond in JSON format as:\n")
	b.WriteString("{\n")
	b.WriteString(`  "subject_suggestions": ["...", "...", "...", "...", "..."],` + "\n")
	b.WriteString(`  "message_suggestions": ["...", "...", "...", "...", "..."]` + "\n")
	b.WriteString("}\n")
	return b.String()
}

// ExtractJSON decodes the span from the first '{' to the last '}' of text.
// Models often wrap the object in prose or code fences.
func ExtractJSON(text string) (*Suggestions, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, ErrNoJSON
	}

	var s Suggestions
	if err := json.Unmarshal([]byte(text[start:end+1]), &s); err != nil {
		return nil, fmt.Errorf("failed to decode suggestions: %w", err)
	}
	if len(s.Subjects) == 0 && len(s.Messages) == 0 {
		return nil, fmt.Errorf("model response has no suggestions")
	}
	return &s, nil
}
