package generate

import (
	"context"
	"errors"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/prospector/internal/config"
	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/resilience"
	"github.com/sells-group/prospector/pkg/anthropic"
)

// Generator turns extraction records into derived text via the completion
// API. One Generator is shared by all pipeline workers: the rate limiter
// bounds the aggregate request rate across concurrent calls.
type Generator struct {
	client  anthropic.Client
	cfg     config.GenerationConfig
	limiter *rate.Limiter
	policy  resilience.Policy
	now     func() time.Time
}

// New creates a Generator. The rate limit is a token bucket with burst 1,
// so request arrivals never exceed the per-minute quota over any window.
func New(client anthropic.Client, cfg config.GenerationConfig) *Generator {
	perMin := cfg.RateLimitPerMin
	if perMin <= 0 {
		perMin = 30
	}

	policy := resilience.DefaultPolicy()
	policy.MaxRetries = cfg.RetryLimit
	policy.OnRetry = resilience.RetryLogger("generate", "create_message")

	return &Generator{
		client:  client,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(perMin/60.0), 1),
		policy:  policy,
		now:     time.Now,
	}
}

// Generate builds a prompt from the record and runs the completion call
// under the shared rate limiter and retry budget. Transient failures are
// retried with backoff; budget exhaustion surfaces ErrGenerationExhausted.
// Rejected requests and malformed responses are never retried. The number
// of attempts made is returned on both paths so callers can record it for
// failed targets too.
func (g *Generator) Generate(ctx context.Context, record *model.ExtractionRecord, template string) (*model.GenerationResult, int, error) {
	req := BuildRequest(record, template, g.cfg.TruncationBudget)
	req.Model = g.cfg.Model
	req.MaxTokens = g.cfg.MaxTokens
	req.Temperature = g.cfg.Temperature
	req.System = g.cfg.SystemPrompt

	if req.Truncated {
		zap.L().Debug("generate: body truncated to budget",
			zap.String("url", record.URL),
			zap.Int("budget", g.cfg.TruncationBudget),
		)
	}

	resp, attempts, err := resilience.Do(ctx, g.policy, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		if waitErr := g.limiter.Wait(ctx); waitErr != nil {
			return nil, waitErr
		}
		return g.call(ctx, req)
	})
	if err != nil {
		switch {
		case errors.Is(err, model.ErrGenerationRejected), errors.Is(err, model.ErrGenerationMalformed):
			return nil, attempts, err
		case ctx.Err() != nil:
			return nil, attempts, err
		default:
			return nil, attempts, eris.Wrap(model.ErrGenerationExhausted, err.Error())
		}
	}

	resp.Usage.LogCost(g.cfg.Model, record.URL)

	return &model.GenerationResult{
		Text:  resp.Text,
		Model: resp.Model,
		Usage: model.TokenUsage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
		Truncated:   req.Truncated,
		Attempts:    attempts,
		CompletedAt: g.now().UTC(),
	}, attempts, nil
}

// call performs one completion attempt and classifies the outcome.
func (g *Generator) call(ctx context.Context, req model.GenerationRequest) (*anthropic.MessageResponse, error) {
	temp := req.Temperature
	resp, err := g.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		System:      req.System,
		Prompt:      req.Prompt,
		Temperature: &temp,
	})
	if err != nil {
		return nil, classifyAPIError(err)
	}

	if resp.Text == "" {
		return nil, eris.Wrap(model.ErrGenerationMalformed, "completion text missing")
	}

	return resp, nil
}

// classifyAPIError splits completion failures into the retryable and
// non-retryable halves of the taxonomy. Auth and request-shape errors can
// never succeed on retry; quota and server errors can.
func classifyAPIError(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		if resilience.IsTransientHTTPStatus(apiErr.StatusCode) {
			return resilience.Transient(err, apiErr.StatusCode)
		}
		return eris.Wrap(model.ErrGenerationRejected, err.Error())
	}

	// No HTTP status: timeouts and connection failures are transient,
	// anything else (e.g. a bad request the SDK refused to send) is not.
	if resilience.IsTransient(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return resilience.Transient(err, 0)
	}
	return eris.Wrap(model.ErrGenerationRejected, err.Error())
}
