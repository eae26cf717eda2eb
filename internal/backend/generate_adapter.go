package backend

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// GenerateAdapter implements Adapter over the Ollama-shape /api/generate
// wire protocol: a stream of newline-delimited JSON objects, each
// carrying an incremental `response` fragment, terminated by an object
// with `"done":true`. Unlike the /api/chat delta-accumulation shape, the
// text is reassembled by concatenating every fragment's `response` field
// in arrival order.
type GenerateAdapter struct {
	backendID string
	baseURL   string
	client    *http.Client
	avail     *availabilityCache
}

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateChunk struct {
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	Error           string `json:"error"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

// NewLocalGenerateAdapter builds the local-HTTP-native variant against an
// Ollama-compatible server.
func NewLocalGenerateAdapter(backendID, baseURL string) *GenerateAdapter {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &GenerateAdapter{
		backendID: backendID,
		baseURL:   baseURL,
		client:    &http.Client{Timeout: 2 * time.Minute},
		avail:     newAvailabilityCache(time.Second),
	}
}

func (a *GenerateAdapter) BackendID() string { return a.backendID }

// Generate POSTs to {base}/api/generate and reassembles the accumulated
// response text from the streamed chunks.
func (a *GenerateAdapter) Generate(ctx context.Context, req GenerationRequest) GenerationResult {
	start := time.Now()

	payload := ollamaGenerateRequest{
		Model:  req.ModelName,
		Prompt: req.Prompt,
		System: req.SystemPrompt,
		Stream: true,
	}
	if req.MaxTokens > 0 || req.Temperature > 0 {
		payload.Options = map[string]any{}
		if req.MaxTokens > 0 {
			payload.Options["num_predict"] = req.MaxTokens
		}
		if req.Temperature > 0 {
			payload.Options["temperature"] = req.Temperature
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return GenerationResult{Success: false, ErrorKind: ErrBadRequest, Err: err, Elapsed: elapsedSince(start)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return GenerationResult{Success: false, ErrorKind: ErrTransport, Err: err, Elapsed: elapsedSince(start)}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return GenerationResult{Success: false, ErrorKind: ErrTimeout, Err: err, Elapsed: elapsedSince(start)}
		}
		return GenerationResult{Success: false, ErrorKind: ErrTransport, Err: err, Elapsed: elapsedSince(start)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		kind, status := classifyHTTPStatus(resp.StatusCode)
		return GenerationResult{
			Success:    false,
			ErrorKind:  kind,
			Err:        fmt.Errorf("ollama status %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody))),
			StatusCode: status,
			Elapsed:    elapsedSince(start),
		}
	}

	var text strings.Builder
	var totalTokens int
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return GenerationResult{Success: false, ErrorKind: ErrTimeout, Err: ctx.Err(), Elapsed: elapsedSince(start)}
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var chunk ollamaGenerateChunk
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			return GenerationResult{Success: false, ErrorKind: ErrTransport, Err: fmt.Errorf("decode chunk: %w", err), Elapsed: elapsedSince(start)}
		}
		if chunk.Error != "" {
			return GenerationResult{Success: false, ErrorKind: ErrServerError, Err: errors.New(chunk.Error), Elapsed: elapsedSince(start)}
		}
		text.WriteString(chunk.Response)
		if chunk.Done {
			totalTokens = chunk.PromptEvalCount + chunk.EvalCount
			return GenerationResult{
				Success:    true,
				Text:       text.String(),
				TokenCount: totalTokens,
				Elapsed:    elapsedSince(start),
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return GenerationResult{Success: false, ErrorKind: ErrTransport, Err: err, Elapsed: elapsedSince(start)}
	}
	return GenerationResult{Success: false, ErrorKind: ErrTransport, Err: errors.New("stream ended without done:true"), Elapsed: elapsedSince(start)}
}

// IsAvailable probes {base}/api/tags, caching for up to one second.
func (a *GenerateAdapter) IsAvailable(ctx context.Context) bool {
	return a.avail.checkCached(func() bool {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/api/tags", nil)
		if err != nil {
			return false
		}
		resp, err := a.client.Do(req)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode < 500
	})
}

func (a *GenerateAdapter) Close() error { return nil }

var _ Adapter = (*GenerateAdapter)(nil)
