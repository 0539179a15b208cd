package processing

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/teilomillet/koreksi/errors"
	"github.com/teilomillet/koreksi/server/metrics"
	"github.com/teilomillet/koreksi/server/validation"
	"go.uber.org/zap"
)

// ModelClient is what the pipeline needs from the model layer.
// provider.Manager satisfies it.
type ModelClient interface {
	Invoke(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Processor runs the grammar check pipeline. It holds no per-request state
// and is safe for concurrent use.
type Processor struct {
	client  ModelClient
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewProcessor creates a Processor. logger and m may be nil.
func NewProcessor(client ModelClient, logger *zap.Logger, m *metrics.Metrics) (*Processor, error) {
	if client == nil {
		return nil, fmt.Errorf("model client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{client: client, logger: logger, metrics: m}, nil
}

// Check runs one request through detection, prompting, the model call and
// extraction, strictly in that order. Every failure is returned as a
// *errors.KoreksiError of type ValidationError, ExternalServiceError,
// MalformedModelResponse or InternalError; there are no partial results.
func (p *Processor) Check(ctx context.Context, req *CheckRequest) (resp *CheckResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, p.fail(req, errors.NewInternalError("", fmt.Errorf("panic in pipeline: %v", r)))
		}
		p.observe(err)
	}()

	if req == nil {
		return nil, p.fail(nil, errors.NewValidationError("", "Invalid request data", map[string]interface{}{
			"fields": []validation.FieldError{{Field: "request", Message: "is required", Code: "required_validation_failed"}},
		}))
	}
	if verr := validation.Validate("", req); verr != nil {
		return nil, p.fail(req, verr)
	}

	lang := DetectLanguage(req.Text)
	systemPrompt := BuildSystemPrompt(req.Style, lang)
	userPrompt := BuildUserPrompt(req.Text, lang)

	raw, err := p.client.Invoke(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, p.fail(req, errors.NewExternalServiceError("", err))
	}

	resp, err = Extract(raw, req.Text, lang)
	if err != nil {
		return nil, p.fail(req, errors.NewMalformedModelResponseError("", err))
	}

	p.logger.Debug("Grammar check completed",
		zap.String("style", string(req.Style)),
		zap.String("detected_language", string(lang)),
		zap.Int("suggestions", len(resp.Suggestions)),
	)
	return resp, nil
}

// fail logs the failure once with the request context and returns it.
func (p *Processor) fail(req *CheckRequest, kerr *errors.KoreksiError) *errors.KoreksiError {
	fields := []zap.Field{
		zap.String("error_type", string(kerr.Type)),
		zap.Error(kerr),
	}
	if req != nil {
		fields = append(fields,
			zap.String("style", string(req.Style)),
			zap.String("text_sample", sample(req.Text, 80)),
			zap.Int("text_length", utf8.RuneCountInString(req.Text)),
		)
	}

	if kerr.Type == errors.ValidationError {
		p.logger.Info("Grammar check rejected", fields...)
	} else {
		p.logger.Error("Grammar check failed", fields...)
	}
	return kerr
}

func (p *Processor) observe(err error) {
	if p.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = string(errors.TypeOf(err))
	}
	p.metrics.ChecksTotal.WithLabelValues(outcome).Inc()
}

// sample returns at most n runes of s for logging.
func sample(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}
