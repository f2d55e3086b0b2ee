package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/docsort/internal/infrastructure/resilience"
)

type Config struct {
	BaseURL     string
	Model       string
	VisionModel string
	Timeout     time.Duration
	Executor    *resilience.Executor
}

// Client talks to the Ollama /api/generate endpoint. Every call goes through the resilience executor.
type Client struct {
	baseURL     string
	model       string
	visionModel string
	httpClient  *http.Client
	executor    *resilience.Executor
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	visionModel := cfg.VisionModel
	if visionModel == "" {
		visionModel = cfg.Model
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		model:       cfg.Model,
		visionModel: visionModel,
		httpClient:  &http.Client{Timeout: timeout},
		executor:    cfg.Executor,
	}
}

// Model names the generation model, used to scope cached responses.
func (c *Client) Model() string {
	return c.model
}

type validatable interface {
	validate() error
}

func (c *Client) generateText(ctx context.Context, operation, prompt string) (string, error) {
	return c.generate(ctx, operation, generateRequest{
		Model:  c.model,
		Prompt: prompt,
	})
}

// generateJSON asks for a JSON answer and decodes it into out. Anything that does not decode
// into the expected shape or fails validation is an error.
func (c *Client) generateJSON(ctx context.Context, operation, prompt string, out validatable) error {
	raw, err := c.generate(ctx, operation, generateRequest{
		Model:   c.model,
		Prompt:  prompt,
		Format:  "json",
		Options: &generateOptions{Temperature: 0},
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), out); err != nil {
		return fmt.Errorf("parse %s json: %w", operation, err)
	}
	if err := out.validate(); err != nil {
		return fmt.Errorf("invalid %s response: %w", operation, err)
	}
	return nil
}

func (c *Client) generate(ctx context.Context, operation string, req generateRequest) (string, error) {
	text, err := resilience.Call(ctx, c.executor, "ollama."+operation, func(callCtx context.Context) (string, error) {
		var resp generateResponse
		if err := c.postJSON(callCtx, "/api/generate", req, &resp, operation); err != nil {
			return "", err
		}
		return strings.TrimSpace(resp.Response), nil
	}, resilience.ClassifyTransport)
	if err != nil {
		return "", resilience.WrapTemporary("ollama "+operation, err, resilience.ClassifyTransport)
	}
	return text, nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
