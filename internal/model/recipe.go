// Package model defines the core domain types for the recipe generation pipeline.
//
// Types use strong typing (UUIDs, time.Time, enums) and avoid interface{}
// wherever possible. Every recipe entity keeps a stable RecipeID across all
// pipeline stages; stages mutate recipes in place rather than replacing them
// so identity is preserved from concept to stored image.
package model

import (
	"github.com/google/uuid"
)

// Nutrition holds macro values in the units the product uses everywhere:
// calories as kcal, protein/carbs/fat as grams.
type Nutrition struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein_grams"`
	Carbs    float64 `json:"carbs_grams"`
	Fat      float64 `json:"fat_grams"`
}

// IsZero reports whether no macro value is set. A recipe whose estimated
// nutrition is zero-valued is treated as missing nutrition data.
func (n Nutrition) IsZero() bool {
	return n.Calories == 0 && n.Protein == 0 && n.Carbs == 0 && n.Fat == 0
}

// RecipeConcept is the abstract seed for one recipe: tags plus target macros.
// Immutable once a batch starts; owned by the caller.
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

// GeneratedRecipe is the full recipe content produced from a concept by the
// text generation service. The image URL starts as a placeholder and is
// superseded in place by the image and storage stages.
type GeneratedRecipe struct {
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

// Severity classifies a validation issue.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// ValidationIssue is one append-only entry in the batch validation log.
// Never mutated after creation.
type ValidationIssue struct {
	RecipeIndex int      `json:"recipe_index"`
	RecipeName  string   `json:"recipe_name"`
	Field       string   `json:"field"`
	Expected    string   `json:"expected"`
	Actual      string   `json:"actual"`
	Severity    Severity `json:"severity"`
	Fixed       bool     `json:"fixed"`
}

// ValidatedRecipe wraps a GeneratedRecipe with the validator's verdict.
// Consumed read-only by the image and storage stages.
type ValidatedRecipe struct {
	Recipe            GeneratedRecipe `json:"recipe"`
	ValidationPassed  bool            `json:"validation_passed"`
	NutritionAccurate bool            `json:"nutrition_accurate"`
	AutoFixesApplied  []string        `json:"auto_fixes_applied"`

	// Rejected marks a terminal required-field or concept-match failure.
	// Rejected recipes still flow through the batch report but skip image
	// generation entirely.
	Rejected bool `json:"rejected"`
}
