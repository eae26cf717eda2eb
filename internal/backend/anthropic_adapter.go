package backend

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/haasonsaas/agentrouter/internal/retry"
)

// AnthropicAdapter implements Adapter over the Anthropic messages API
// (POST {base}/messages, header x-api-key, header
// anthropic-version: 2023-06-01).
type AnthropicAdapter struct {
	backendID string
	client    anthropic.Client
	avail     *availabilityCache
}

// NewCloudAnthropicAdapter builds the cloud-Anthropic variant. The API
// key is read from the environment at construction time; an absent key
// is a construction failure.
func NewCloudAnthropicAdapter(backendID string) (*AnthropicAdapter, error) {
	key := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	if key == "" {
		return nil, errors.New("ANTHROPIC_API_KEY not set")
	}
	client := anthropic.NewClient(option.WithAPIKey(key))
	return &AnthropicAdapter{
		backendID: backendID,
		client:    client,
		avail:     newAvailabilityCache(time.Second),
	}, nil
}

func (a *AnthropicAdapter) BackendID() string { return a.backendID }

func (a *AnthropicAdapter) Generate(ctx context.Context, req GenerationRequest) GenerationResult {
	start := time.Now()

	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.ModelName),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	var msg *anthropic.Message
	rc := retry.Config{MaxAttempts: 3, InitialDelay: 200 * time.Millisecond, MaxDelay: 2 * time.Second, Factor: 2.0, Jitter: true}
	result := retry.Do(ctx, rc, func() error {
		var err error
		msg, err = a.client.Messages.New(ctx, params)
		if err != nil && !isRetryableAnthropicError(err) {
			return retry.Permanent(err)
		}
		return err
	})

	if result.Err != nil {
		return classifyAnthropicFailure(result.Err, elapsedSince(start))
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return GenerationResult{
		Success:    true,
		Text:       text.String(),
		TokenCount: int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		Elapsed:    elapsedSince(start),
	}
}

func isRetryableAnthropicError(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusBadRequest, http.StatusNotFound:
			return false
		}
	}
	return true
}

func classifyAnthropicFailure(err error, elapsed time.Duration) GenerationResult {
	if errors.Is(err, context.DeadlineExceeded) {
		return GenerationResult{Success: false, ErrorKind: ErrTimeout, Err: err, Elapsed: elapsed}
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		kind, status := classifyHTTPStatus(apiErr.StatusCode)
		return GenerationResult{Success: false, ErrorKind: kind, Err: err, StatusCode: status, Elapsed: elapsed}
	}
	return GenerationResult{Success: false, ErrorKind: ErrTransport, Err: err, Elapsed: elapsed}
}

// IsAvailable probes the models endpoint, caching for up to one second.
func (a *AnthropicAdapter) IsAvailable(ctx context.Context) bool {
	return a.avail.checkCached(func() bool {
		_, err := a.client.Models.List(ctx, anthropic.ModelListParams{})
		return err == nil
	})
}

func (a *AnthropicAdapter) Close() error { return nil }

var _ Adapter = (*AnthropicAdapter)(nil)
