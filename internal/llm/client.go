// Package llm implements the text-generation capability on top of the
// OpenRouter chat-completions API.
package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/deckvoice/deckvoice/internal/domain"
	"github.com/deckvoice/deckvoice/internal/observability"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1/chat/completions"
	defaultModel   = "google/gemini-2.5-flash"
)

// Generator is the contract the AI-calling pipeline stages depend on.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateWithImage(ctx context.Context, prompt, imagePath string) (string, error)
}

// Client handles communication with the OpenRouter API.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	retry      RetryConfig
	logger     *observability.Logger
}

// Config holds client configuration.
type Config struct {
	APIKey         string
	Model          string
	BaseURL        string
	RequestTimeout time.Duration
	MaxRetries     int
}

// Message represents a chat message.
type Message struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// ContentPart represents a part of message content (text or image).
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL represents an image URL in the message.
type ImageURL struct {
	URL string `json:"url"`
}

// Request represents the API request structure.
type Request struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

// Response represents the API response structure.
type Response struct {
	ID      string   `json:"id"`
	Choices []Choice `json:"choices"`
}

// Choice represents a single completion choice.
type Choice struct {
	Message      ChoiceMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

// ChoiceMessage holds a completion message.
type ChoiceMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewClient creates a client from explicit configuration. The API key falls
// back to the OPENROUTER_API_KEY environment variable.
func NewClient(cfg Config, logger *observability.Logger) (*Client, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENROUTER_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY not set")
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 90 * time.Second
	}

	retry := DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxRetries = cfg.MaxRetries
	}

	if logger == nil {
		logger = observability.Nop()
	}

	return &Client{
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		retry:      retry,
		logger:     logger.WithComponent("llm"),
	}, nil
}

// Generate sends a text-only prompt and returns the completion text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	msg := Message{
		Role:    "user",
		Content: []ContentPart{{Type: "text", Text: prompt}},
	}
	return c.complete(ctx, msg)
}

// GenerateWithImage sends a prompt plus one slide image and returns the
// completion text.
func (c *Client) GenerateWithImage(ctx context.Context, prompt, imagePath string) (string, error) {
	imageData, err := os.ReadFile(imagePath)
	if err != nil {
		return "", domain.ProviderError("failed to read slide image", err)
	}
	imageURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(imageData)

	msg := Message{
		Role: "user",
		Content: []ContentPart{
			{Type: "text", Text: prompt},
			{Type: "image_url", ImageURL: &ImageURL{URL: imageURL}},
		},
	}
	return c.complete(ctx, msg)
}

func (c *Client) complete(ctx context.Context, msg Message) (string, error) {
	body, err := json.Marshal(&Request{
		Model:    c.model,
		Messages: []Message{msg},
	})
	if err != nil {
		return "", domain.ProviderError("failed to marshal request", err)
	}

	resp, err := c.retryWithBackoff(ctx, func() (*http.Response, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}

		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		httpReq.Header.Set("X-Title", "DeckVoice")

		return c.httpClient.Do(httpReq)
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", domain.ProviderError(
			fmt.Sprintf("API returned status %d: %s", resp.StatusCode, string(bodyBytes)), nil)
	}

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", domain.ProviderError("failed to read response body", err)
	}

	var apiResp Response
	if err := json.Unmarshal(respBytes, &apiResp); err != nil {
		return "", domain.ProviderError("failed to parse API response", err)
	}
	if len(apiResp.Choices) == 0 {
		return "", domain.ProviderError("no choices in API response", nil)
	}

	return apiResp.Choices[0].Message.Content, nil
}
