// Package nutrition validates generated recipes against their concept's
// macro targets and auto-corrects values that are within tolerance.
//
// The validator is purely computational: no external calls, no side effects
// beyond the returned issue log and corrected copies. A bad recipe never
// fails the batch — it is recorded as failed and processing continues.
package nutrition

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/fitnessmealplanner/recipegen/internal/model"
)

// Default tolerances match the product rule: calories may be corrected when
// within 15% of target, individual macros when within 10 grams.
const (
	DefaultCalorieTolerance = 0.15
	DefaultMacroTolerance   = 10.0
)

// Validator checks and auto-corrects recipe macros against concept targets.
type Validator struct {
	logger           *slog.Logger
	calorieTolerance float64
	macroTolerance   float64
}

// NewValidator creates a validator. Non-positive tolerances fall back to the
// defaults.
func NewValidator(logger *slog.Logger, calorieTolerance, macroTolerance float64) *Validator {
	if calorieTolerance <= 0 {
		calorieTolerance = DefaultCalorieTolerance
	}
	if macroTolerance <= 0 {
		macroTolerance = DefaultMacroTolerance
	}
	return &Validator{
		logger:           logger,
		calorieTolerance: calorieTolerance,
		macroTolerance:   macroTolerance,
	}
}

// ValidateBatch validates each recipe against the concept at the same index.
// Every input recipe yields exactly one ValidatedRecipe, in input order:
//
//   - A recipe with no matching concept, a missing name, empty estimated
//     nutrition, or an empty ingredient list is rejected outright — no
//     auto-fix is attempted and the original data is retained.
//   - Negative nutrition values are clamped to zero; a clamp always counts
//     as an auto-fix.
//   - Macros within tolerance of target are replaced with the exact target.
//     A deviation too large to fix leaves the recipe failed, and a failed
//     recipe retains its original uncorrected data; its recorded fixes
//     describe what would have been corrected, not committed changes.
func (v *Validator) ValidateBatch(recipes []model.GeneratedRecipe, concepts []model.RecipeConcept, batchID uuid.UUID) model.BatchValidation {
	out := model.BatchValidation{
		TotalValidated: len(recipes),
		Validated:      make([]model.ValidatedRecipe, 0, len(recipes)),
	}

	for i, recipe := range recipes {
		if i >= len(concepts) {
			out.Issues = append(out.Issues, model.ValidationIssue{
				RecipeIndex: i,
				RecipeName:  recipe.Name,
				Field:       "concept",
				Expected:    "matching concept",
				Actual:      "none",
				Severity:    model.SeverityCritical,
			})
			out.Validated = append(out.Validated, model.ValidatedRecipe{Recipe: recipe, Rejected: true})
			out.Failed++
			continue
		}

		if issues := v.requiredFieldIssues(i, recipe); len(issues) > 0 {
			out.Issues = append(out.Issues, issues...)
			out.Validated = append(out.Validated, model.ValidatedRecipe{Recipe: recipe, Rejected: true})
			out.Failed++
			continue
		}

		fixed, fixes, issues, accurate := v.correct(i, recipe, concepts[i].TargetNutrition)
		out.Issues = append(out.Issues, issues...)
		if len(fixes) > 0 {
			out.AutoFixed++
		}

		vr := model.ValidatedRecipe{
			NutritionAccurate: accurate,
			ValidationPassed:  accurate,
			AutoFixesApplied:  fixes,
		}
		if accurate {
			vr.Recipe = fixed
			out.Passed++
		} else {
			// Failed recipes flow downstream with their original data intact.
			vr.Recipe = recipe
			out.Failed++
		}
		out.Validated = append(out.Validated, vr)
	}

	v.logger.Info("nutrition: batch validated",
		"batch_id", batchID,
		"total", out.TotalValidated,
		"passed", out.Passed,
		"failed", out.Failed,
		"auto_fixed", out.AutoFixed,
	)
	return out
}

// requiredFieldIssues returns critical issues for missing required fields.
// Any such issue is terminal: the recipe fails validation with no auto-fix.
func (v *Validator) requiredFieldIssues(idx int, r model.GeneratedRecipe) []model.ValidationIssue {
	var issues []model.ValidationIssue
	add := func(field, expected, actual string) {
		issues = append(issues, model.ValidationIssue{
			RecipeIndex: idx,
			RecipeName:  r.Name,
			Field:       field,
			Expected:    expected,
			Actual:      actual,
			Severity:    model.SeverityCritical,
		})
	}

	if r.Name == "" {
		add("name", "non-empty name", "empty")
	}
	if r.EstimatedNutrition.IsZero() {
		add("estimated_nutrition", "non-empty nutrition estimate", "empty")
	}
	if len(r.Ingredients) == 0 {
		add("ingredients", "at least one ingredient", "empty list")
	}
	return issues
}

// correct clamps negative values and applies tolerance-based correction for
// each macro field independently. It returns the corrected copy, the list of
// applied fixes, the issue log entries, and whether every field matches its
// target exactly after correction.
func (v *Validator) correct(idx int, r model.GeneratedRecipe, target model.Nutrition) (model.GeneratedRecipe, []string, []model.ValidationIssue, bool) {
	fixed := r
	var fixes []string
	var issues []model.ValidationIssue

	clamp := func(field string, val *float64) {
		if *val >= 0 {
			return
		}
		issues = append(issues, model.ValidationIssue{
			RecipeIndex: idx,
			RecipeName:  r.Name,
			Field:       field,
			Expected:    "0",
			Actual:      fmt.Sprintf("%g", *val),
			Severity:    model.SeverityWarning,
			Fixed:       true,
		})
		fixes = append(fixes, fmt.Sprintf("clamped negative %s (%g) to 0", field, *val))
		*val = 0
	}
	clamp("calories", &fixed.EstimatedNutrition.Calories)
	clamp("protein_grams", &fixed.EstimatedNutrition.Protein)
	clamp("carbs_grams", &fixed.EstimatedNutrition.Carbs)
	clamp("fat_grams", &fixed.EstimatedNutrition.Fat)

	accurate := true
	adjust := func(field string, val *float64, targetVal, tolerance float64) {
		diff := *val - targetVal
		if diff < 0 {
			diff = -diff
		}
		switch {
		case diff == 0:
			// Already exact.
		case diff <= tolerance:
			issues = append(issues, model.ValidationIssue{
				RecipeIndex: idx,
				RecipeName:  r.Name,
				Field:       field,
				Expected:    fmt.Sprintf("%g", targetVal),
				Actual:      fmt.Sprintf("%g", *val),
				Severity:    model.SeverityWarning,
				Fixed:       true,
			})
			fixes = append(fixes, fmt.Sprintf("adjusted %s from %g to %g", field, *val, targetVal))
			*val = targetVal
		default:
			issues = append(issues, model.ValidationIssue{
				RecipeIndex: idx,
				RecipeName:  r.Name,
				Field:       field,
				Expected:    fmt.Sprintf("%g", targetVal),
				Actual:      fmt.Sprintf("%g", *val),
				Severity:    model.SeverityCritical,
			})
			accurate = false
		}
	}
	adjust("calories", &fixed.EstimatedNutrition.Calories, target.Calories, v.calorieTolerance*target.Calories)
	adjust("protein_grams", &fixed.EstimatedNutrition.Protein, target.Protein, v.macroTolerance)
	adjust("carbs_grams", &fixed.EstimatedNutrition.Carbs, target.Carbs, v.macroTolerance)
	adjust("fat_grams", &fixed.EstimatedNutrition.Fat, target.Fat, v.macroTolerance)

	return fixed, fixes, issues, accurate
}
