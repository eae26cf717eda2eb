package backend

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/agentrouter/internal/retry"
)

// ChatAdapter implements Adapter over the OpenAI-compatible
// /chat/completions wire shape. A single instance serves both the
// local-HTTP-chat variant (custom BaseURL, no auth) and the cloud-OpenAI
// variant (default BaseURL, Bearer auth) depending on construction.
type ChatAdapter struct {
	backendID string
	client    *openai.Client
	avail     *availabilityCache
	probeURL  string
	httpc     *http.Client
}

// NewLocalChatAdapter builds the local-HTTP-chat variant against an
// OpenAI-compatible server (e.g. LM Studio) with no API key required.
func NewLocalChatAdapter(backendID, baseURL string) *ChatAdapter {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	cfg := openai.DefaultConfig("unused")
	cfg.BaseURL = baseURL
	return &ChatAdapter{
		backendID: backendID,
		client:    openai.NewClientWithConfig(cfg),
		avail:     newAvailabilityCache(time.Second),
		probeURL:  baseURL + "/models",
		httpc:     &http.Client{Timeout: 5 * time.Second},
	}
}

// NewCloudOpenAIAdapter builds the cloud-OpenAI variant. The API key is
// read from the environment at construction time; an absent key is a
// construction failure, per the backend adapter contract.
func NewCloudOpenAIAdapter(backendID string) (*ChatAdapter, error) {
	key := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if key == "" {
		return nil, errors.New("OPENAI_API_KEY not set")
	}
	return &ChatAdapter{
		backendID: backendID,
		client:    openai.NewClient(key),
		avail:     newAvailabilityCache(time.Second),
		probeURL:  "https://api.openai.com/v1/models",
		httpc:     &http.Client{Timeout: 5 * time.Second},
	}, nil
}

func (a *ChatAdapter) BackendID() string { return a.backendID }

// Generate issues a single /chat/completions request and retries
// transport-level failures with linear backoff, mirroring the teacher's
// BaseProvider.Retry helper.
func (a *ChatAdapter) Generate(ctx context.Context, req GenerationRequest) GenerationResult {
	start := time.Now()

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	oreq := openai.ChatCompletionRequest{
		Model:       req.ModelName,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	}

	var resp openai.ChatCompletionResponse
	rc := retry.Config{MaxAttempts: 3, InitialDelay: 200 * time.Millisecond, MaxDelay: 2 * time.Second, Factor: 2.0, Jitter: true}
	result := retry.Do(ctx, rc, func() error {
		var err error
		resp, err = a.client.CreateChatCompletion(ctx, oreq)
		if err != nil && !isRetryableOpenAIError(err) {
			return retry.Permanent(err)
		}
		return err
	})

	if result.Err != nil {
		return classifyOpenAIFailure(result.Err, elapsedSince(start))
	}
	if len(resp.Choices) == 0 {
		return GenerationResult{Success: false, ErrorKind: ErrServerError, Err: errors.New("empty choices"), Elapsed: elapsedSince(start)}
	}
	return GenerationResult{
		Success:    true,
		Text:       resp.Choices[0].Message.Content,
		TokenCount: resp.Usage.TotalTokens,
		Elapsed:    elapsedSince(start),
	}
}

func isRetryableOpenAIError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusBadRequest, http.StatusNotFound:
			return false
		}
	}
	return true
}

func classifyOpenAIFailure(err error, elapsed time.Duration) GenerationResult {
	if errors.Is(err, context.DeadlineExceeded) {
		return GenerationResult{Success: false, ErrorKind: ErrTimeout, Err: err, Elapsed: elapsed}
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		kind, status := classifyHTTPStatus(apiErr.HTTPStatusCode)
		return GenerationResult{Success: false, ErrorKind: kind, Err: err, StatusCode: status, Elapsed: elapsed}
	}
	return GenerationResult{Success: false, ErrorKind: ErrTransport, Err: err, Elapsed: elapsed}
}

func classifyHTTPStatus(status int) (ErrorKind, int) {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrAuth, status
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return ErrBadRequest, status
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return ErrTimeout, status
	case status >= 500:
		return ErrServerError, status
	case status == 0:
		return ErrTransport, status
	default:
		return ErrServerError, status
	}
}

// IsAvailable probes the backend's /models endpoint, caching the result
// for up to one second per the Execution Engine's probe contract.
func (a *ChatAdapter) IsAvailable(ctx context.Context) bool {
	return a.avail.checkCached(func() bool {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.probeURL, nil)
		if err != nil {
			return false
		}
		resp, err := a.httpc.Do(req)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode < 500
	})
}

// Close is a no-op: the underlying http.Client has no persistent
// resources beyond pooled connections, which the runtime reclaims.
func (a *ChatAdapter) Close() error { return nil }

var _ Adapter = (*ChatAdapter)(nil)
