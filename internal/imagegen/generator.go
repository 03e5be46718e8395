// Package imagegen generates recipe photos and deduplicates them across
// batches by perceptual hash.
//
// Defines a Generator interface for the image model and an Agent that drives
// the generate / hash / duplicate-retry loop for a batch of validated recipes.
package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Generator produces one image from a text prompt and returns a temporary URL
// where the image bytes can be fetched. Temporary URLs expire; the storage
// stage copies accepted images to durable storage.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// OpenAIGenerator generates images using the OpenAI images API.
type OpenAIGenerator struct {
	apiKey     string
	model      string
	size       string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAIGenerator creates a new OpenAI image generator.
func NewOpenAIGenerator(apiKey, model, size string) *OpenAIGenerator {
	return &OpenAIGenerator{
		apiKey:     apiKey,
		model:      model,
		size:       size,
		baseURL:    "https://api.openai.com/v1",
		httpClient: &http.Client{},
	}
}

// WithBaseURL overrides the API base URL. Used in tests.
func (g *OpenAIGenerator) WithBaseURL(url string) *OpenAIGenerator {
	g.baseURL = strings.TrimSuffix(url, "/")
	return g
}

type imageRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size"`
}

type imageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Generate requests one image and returns its temporary URL.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody, err := json.Marshal(imageRequest{
		Model:  g.model,
		Prompt: prompt,
		N:      1,
		Size:   g.size,
	})
	if err != nil {
		return "", fmt.Errorf("imagegen: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/images/generations", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("imagegen: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("imagegen: send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("imagegen: read response: %w", err)
	}

	var result imageResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("imagegen: unmarshal response: %w", err)
	}

	if result.Error != nil {
		return "", fmt.Errorf("imagegen: openai error: %s: %s", result.Error.Type, result.Error.Message)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("imagegen: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if len(result.Data) == 0 || result.Data[0].URL == "" {
		return "", fmt.Errorf("imagegen: no image URL in response")
	}

	return result.Data[0].URL, nil
}
