package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	reviewDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gema",
		Subsystem: "ai",
		Name:      "code_review_duration_seconds",
		Help:      "Duration of AI code review requests",
	}, []string{"model"})

	reviewFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gema",
		Subsystem: "ai",
		Name:      "code_review_failures_total",
		Help:      "Number of AI code review failures",
	}, []string{"model", "reason"})
)

const defaultReviewTimeout = 20 * time.Second

// OpenAIConfig defines configuration options for the OpenAI code grader.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
	Logger      zerolog.Logger
}

// OpenAIGrader implements CodeGrader against the OpenAI chat completion API.
type OpenAIGrader struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIGrader builds a new grader using the provided configuration.
func NewOpenAIGrader(cfg OpenAIConfig) (*OpenAIGrader, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 512
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultReviewTimeout
	}

	tracer := otel.Tracer("github.com/noah-isme/gema-exam-grader/pkg/ai/openai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	client := openai.NewClientWithConfig(config)

	return &OpenAIGrader{
		client: client,
		cfg:    cfg,
		tracer: tracer,
		logger: logger.With().Str("component", "openai_code_grader").Logger(),
	}, nil
}

// GradeCode asks the model for a review of one coding answer and validates the response.
func (g *OpenAIGrader) GradeCode(parent context.Context, input CodeReviewInput) (CodeReviewResult, error) {
	ctx, span := g.tracer.Start(parent, "openai.grade_code", trace.WithAttributes(
		attribute.String("model", g.cfg.Model),
		attribute.String("language", input.Language),
		attribute.Int("max_marks", input.MaxMarks),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	request := openai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: reviewerSystemPrompt(),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildReviewPrompt(input),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, request)
	reviewDuration.WithLabelValues(g.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s", ErrGraderTimeout, g.cfg.Timeout)
			return CodeReviewResult{}, g.fail(span, "timeout", err)
		}
		return CodeReviewResult{}, g.fail(span, "request", fmt.Errorf("openai grade code: %w", err))
	}

	if len(resp.Choices) == 0 {
		return CodeReviewResult{}, g.fail(span, "empty", ErrEmptyReview)
	}

	result, err := parseReviewResponse(resp.Choices[0].Message.Content, input.MaxMarks)
	if err != nil {
		return CodeReviewResult{}, g.fail(span, "malformed", err)
	}

	result.Raw = map[string]interface{}{
		"usage": resp.Usage,
		"model": resp.Model,
	}
	span.SetAttributes(attribute.Int("score", result.Score))

	return result, nil
}

func (g *OpenAIGrader) fail(span trace.Span, reason string, err error) error {
	reviewFailures.WithLabelValues(g.cfg.Model, reason).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	g.logger.Warn().Err(err).Str("reason", reason).Msg("code review failed")
	return err
}
