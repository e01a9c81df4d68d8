// Package llm talks to an OpenRouter vision model, used as the OCR backend
// for reading conversation names and message bubbles off screenshots.
package llm

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type Config struct {
	APIKey    string
	Model     string
	Providers []string
}

var config *Config

func Init(cfg *Config) {
	config = cfg
}

const (
	endpoint     = "https://openrouter.ai/api/v1/chat/completions"
	maxRetries   = 3
	initialDelay = 1 * time.Second
	// Inputs are small crops (a name bar, one bubble), so a short token
	// cap and near-zero temperature keep the output literal.
	maxTokens   = 2000
	temperature = 0.1
)

// The sentinel the prompt asks for when the crop contains no text. Kept in
// sync with the prompt below.
const noTextSentinel = "NO_TEXT_FOUND"

const ocrPrompt = "Perform OCR on this image. Return ONLY the raw extracted text with:\n" +
	"- No formatting\n" +
	"- No XML/HTML tags\n" +
	"- No markdown\n" +
	"- No explanations\n" +
	"- Preserve line breaks accurately from the visual layout.\n" +
	"If no text found, return '" + noTextSentinel + "'"

var httpClient = &http.Client{Timeout: 45 * time.Second}

// Request/response wire types for the OpenRouter chat completions API.
// Only the fields this client touches are declared.
type chatRequest struct {
	Model       string         `json:"model"`
	Messages    []chatMessage  `json:"messages"`
	Temperature float64        `json:"temperature"`
	MaxTokens   int            `json:"max_tokens"`
	Provider    *providerPrefs `json:"provider,omitempty"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type providerPrefs struct {
	Order          []string `json:"order,omitempty"`
	AllowFallbacks *bool    `json:"allow_fallbacks,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string      `json:"message"`
	Type    string      `json:"type"`
	Code    interface{} `json:"code"` // string or number depending on provider
}

// QueryVision sends PNG image data to the vision model and returns the raw
// text it contains. Returns an error when the model reports no text, so
// callers can retry a fresh capture instead of acting on an empty string.
func QueryVision(imageData []byte) (string, error) {
	if config == nil {
		return "", fmt.Errorf("LLM client not initialized")
	}
	if config.APIKey == "" {
		return "", fmt.Errorf("API key is required")
	}
	if config.Model == "" {
		return "", fmt.Errorf("model is required")
	}

	request := buildOCRRequest(imageData)

	// Transport errors and empty choice lists both count as retryable;
	// a definitive "no text" answer does not.
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(float64(initialDelay) * (1.5 * float64(attempt))))
		}

		response, err := postChat(request)
		if err != nil {
			lastErr = err
			continue
		}
		if len(response.Choices) == 0 {
			lastErr = fmt.Errorf("no choices in API response")
			continue
		}

		text := response.Choices[0].Message.Content
		if text == "" || text == noTextSentinel {
			return "", fmt.Errorf("no text detected in image")
		}
		return cleanExtractedText(text), nil
	}

	return "", fmt.Errorf("failed after %d attempts: %v", maxRetries, lastErr)
}

func buildOCRRequest(imageData []byte) chatRequest {
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(imageData)
	req := chatRequest{
		Model: config.Model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: ocrPrompt},
				{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
			},
		}},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
	if len(config.Providers) > 0 {
		allowFallbacks := false
		req.Provider = &providerPrefs{Order: config.Providers, AllowFallbacks: &allowFallbacks}
	}
	return req
}

func postChat(request chatRequest) (*chatResponse, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %v", err)
	}

	req, err := http.NewRequest("POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+config.APIKey)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %v", err)
	}
	defer resp.Body.Close()

	var response chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %v", err)
	}
	if response.Error != nil {
		return nil, fmt.Errorf("API error: %s (type: %s, code: %v)", response.Error.Message, response.Error.Type, response.Error.Code)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}
	return &response, nil
}

func cleanExtractedText(text string) string {
	// Some models wrap output in stray image tags; strip them.
	text = strings.TrimSuffix(strings.TrimSpace(text), "</image>")
	return strings.TrimSpace(text)
}
