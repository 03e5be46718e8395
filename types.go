package recipegen

import (
	"time"

	"github.com/google/uuid"
)

// Public data types mirror the internal model but carry no internal imports,
// so consumers never depend on internal packages. Converters live in
// recipegen.go, the only file that sees both sides of the boundary.

// Nutrition holds macro values: calories as kcal, protein/carbs/fat as grams.
type Nutrition struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein_grams"`
	Carbs    float64 `json:"carbs_grams"`
	Fat      float64 `json:"fat_grams"`
}

// RecipeConcept is the abstract seed for one recipe: tags plus target macros.
type RecipeConcept struct {
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	MealTypes       []string  `json:"meal_types"`
	DietaryTags     []string  `json:"dietary_tags"`
	MainIngredients []string  `json:"main_ingredients"`
	Difficulty      string    `json:"difficulty"`
	TargetNutrition Nutrition `json:"target_nutrition"`
}

// Ingredient is one ordered entry in a recipe's ingredient list.
type Ingredient struct {
	Name   string `json:"name"`
	Amount string `json:"amount"`
	Unit   string `json:"unit"`
}

// Recipe is the full generated recipe content.
type Recipe struct {
	RecipeID           uuid.UUID    `json:"recipe_id"`
	Name               string       `json:"name"`
	Description        string       `json:"description"`
	MealTypes          []string     `json:"meal_types"`
	DietaryTags        []string     `json:"dietary_tags"`
	MainIngredients    []string     `json:"main_ingredients"`
	Ingredients        []Ingredient `json:"ingredients"`
	Instructions       string       `json:"instructions"`
	PrepTimeMinutes    int          `json:"prep_time_minutes"`
	CookTimeMinutes    int          `json:"cook_time_minutes"`
	Servings           int          `json:"servings"`
	EstimatedNutrition Nutrition    `json:"estimated_nutrition"`
	ImageURL           string       `json:"image_url"`
}

// ValidationIssue is one entry in a batch's validation log.
type ValidationIssue struct {
	RecipeIndex int    `json:"recipe_index"`
	RecipeName  string `json:"recipe_name"`
	Field       string `json:"field"`
	Expected    string `json:"expected"`
	Actual      string `json:"actual"`
	Severity    string `json:"severity"`
	Fixed       bool   `json:"fixed"`
}

// HashRecord is one perceptual hash entry in the dedup store.
type HashRecord struct {
	Hash      uint64    `json:"hash"`
	RecipeID  uuid.UUID `json:"recipe_id"`
	BatchID   uuid.UUID `json:"batch_id"`
	CreatedAt time.Time `json:"created_at"`
}

// RecipeReport is one concept's end-to-end outcome, including which stages
// (if any) degraded it.
type RecipeReport struct {
	RecipeID      uuid.UUID `json:"recipe_id"`
	CorrelationID uuid.UUID `json:"correlation_id"`
	ConceptName   string    `json:"concept_name"`

	Recipe Recipe `json:"recipe"`

	GenerationFailed  bool              `json:"generation_failed"`
	ValidationPassed  bool              `json:"validation_passed"`
	NutritionAccurate bool              `json:"nutrition_accurate"`
	AutoFixesApplied  []string          `json:"auto_fixes_applied"`
	Issues            []ValidationIssue `json:"issues"`

	ImagePlaceholder bool   `json:"image_placeholder"`
	WasUploaded      bool   `json:"was_uploaded"`
	ImageURL         string `json:"image_url"`
}

// BatchResult aggregates one full pipeline run. A batch call always returns
// a result; inspect per-item reports to tell degraded outcomes from failures.
type BatchResult struct {
	BatchID uuid.UUID      `json:"batch_id"`
	Items   []RecipeReport `json:"items"`

	TotalConcepts int `json:"total_concepts"`

	TotalValidated int `json:"total_validated"`
	Passed         int `json:"passed"`
	Failed         int `json:"failed"`
	AutoFixed      int `json:"auto_fixed"`

	TotalGenerated   int `json:"total_generated"`
	PlaceholderCount int `json:"placeholder_count"`

	TotalUploaded int `json:"total_uploaded"`
	TotalFailed   int `json:"total_failed"`

	Issues []ValidationIssue `json:"issues"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
