// Package textgen produces full recipe content from recipe concepts.
//
// Defines a Provider interface and an OpenAI chat-completions implementation.
// The interface allows swapping text generation providers without changing
// consumers.
package textgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/fitnessmealplanner/recipegen/internal/model"
)

// Provider generates recipe content from a concept.
type Provider interface {
	// Generate produces one full recipe from a concept. The returned recipe
	// carries a fresh RecipeID that stays stable for the rest of the pipeline.
	Generate(ctx context.Context, concept model.RecipeConcept) (model.GeneratedRecipe, error)
}

// OpenAIProvider generates recipes using the OpenAI chat completions API.
type OpenAIProvider struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAIProvider creates a new OpenAI recipe text provider.
func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	return &OpenAIProvider{
		apiKey:     apiKey,
		model:      model,
		baseURL:    "https://api.openai.com/v1",
		httpClient: &http.Client{},
	}
}

// WithBaseURL overrides the API base URL. Used in tests.
func (p *OpenAIProvider) WithBaseURL(url string) *OpenAIProvider {
	p.baseURL = strings.TrimSuffix(url, "/")
	return p
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
	Temperature    float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// recipePayload is the JSON shape the model is instructed to return.
type recipePayload struct {
	Name            string             `json:"name"`
	Description     string             `json:"description"`
	Ingredients     []model.Ingredient `json:"ingredients"`
	Instructions    string             `json:"instructions"`
	PrepTimeMinutes int                `json:"prep_time_minutes"`
	CookTimeMinutes int                `json:"cook_time_minutes"`
	Servings        int                `json:"servings"`
	Nutrition       model.Nutrition    `json:"estimated_nutrition"`
}

const systemPrompt = `You are a professional recipe developer for a fitness meal planning service.
Given a recipe concept, produce one complete recipe as a JSON object with keys:
name, description, ingredients (array of {name, amount, unit}), instructions,
prep_time_minutes, cook_time_minutes, servings, and estimated_nutrition
({calories, protein_grams, carbs_grams, fat_grams}). Keep the estimated
nutrition as close to the target macros as possible. Respond with JSON only.`

// Generate produces one recipe via a single chat completion call.
func (p *OpenAIProvider) Generate(ctx context.Context, concept model.RecipeConcept) (model.GeneratedRecipe, error) {
	conceptJSON, err := json.Marshal(concept)
	if err != nil {
		return model.GeneratedRecipe{}, fmt.Errorf("textgen: marshal concept: %w", err)
	}

	reqBody, err := json.Marshal(chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "Recipe concept:\n" + string(conceptJSON)},
		},
		ResponseFormat: &respFormat{Type: "json_object"},
		Temperature:    0.7,
	})
	if err != nil {
		return model.GeneratedRecipe{}, fmt.Errorf("textgen: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return model.GeneratedRecipe{}, fmt.Errorf("textgen: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return model.GeneratedRecipe{}, fmt.Errorf("textgen: send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.GeneratedRecipe{}, fmt.Errorf("textgen: read response: %w", err)
	}

	var result chatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return model.GeneratedRecipe{}, fmt.Errorf("textgen: unmarshal response: %w", err)
	}

	if result.Error != nil {
		return model.GeneratedRecipe{}, fmt.Errorf("textgen: openai error: %s: %s", result.Error.Type, result.Error.Message)
	}

	if resp.StatusCode != http.StatusOK {
		return model.GeneratedRecipe{}, fmt.Errorf("textgen: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if len(result.Choices) == 0 {
		return model.GeneratedRecipe{}, fmt.Errorf("textgen: empty choices in response")
	}

	var payload recipePayload
	if err := json.Unmarshal([]byte(result.Choices[0].Message.Content), &payload); err != nil {
		return model.GeneratedRecipe{}, fmt.Errorf("textgen: unmarshal recipe content: %w", err)
	}

	return model.GeneratedRecipe{
		RecipeID:           uuid.New(),
		Name:               payload.Name,
		Description:        payload.Description,
		MealTypes:          concept.MealTypes,
		DietaryTags:        concept.DietaryTags,
		MainIngredients:    concept.MainIngredients,
		Ingredients:        payload.Ingredients,
		Instructions:       payload.Instructions,
		PrepTimeMinutes:    payload.PrepTimeMinutes,
		CookTimeMinutes:    payload.CookTimeMinutes,
		Servings:           payload.Servings,
		EstimatedNutrition: payload.Nutrition,
	}, nil
}

// StubProvider returns a minimal recipe echoing the concept's name and target
// nutrition. Used when no API key is configured and in tests.
type StubProvider struct{}

// NewStubProvider creates a provider that echoes concepts back as recipes.
func NewStubProvider() *StubProvider {
	return &StubProvider{}
}

// Generate returns a recipe built directly from the concept.
func (p *StubProvider) Generate(_ context.Context, concept model.RecipeConcept) (model.GeneratedRecipe, error) {
	return model.GeneratedRecipe{
		RecipeID:        uuid.New(),
		Name:            concept.Name,
		Description:     concept.Description,
		MealTypes:       concept.MealTypes,
		DietaryTags:     concept.DietaryTags,
		MainIngredients: concept.MainIngredients,
		Ingredients: []model.Ingredient{
			{Name: "placeholder ingredient", Amount: "1", Unit: "serving"},
		},
		Instructions:       "Combine and serve.",
		Servings:           1,
		EstimatedNutrition: concept.TargetNutrition,
	}, nil
}
