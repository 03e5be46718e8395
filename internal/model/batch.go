package model

import (
	"time"

	"github.com/google/uuid"
)

// BatchValidation is the output of the nutritional validator for one batch.
// Invariant: TotalValidated == Passed + Failed, and len(Validated) equals the
// number of input recipes — failed recipes are represented, never dropped.
type BatchValidation struct {
	TotalValidated int               `json:"total_validated"`
	Passed         int               `json:"passed"`
	Failed         int               `json:"failed"`
	AutoFixed      int               `json:"auto_fixed"`
	Issues         []ValidationIssue `json:"issues"`
	Validated      []ValidatedRecipe `json:"validated"`
}

// RecipeImage is one recipe's image-stage outcome, ready for durable upload.
// Placeholder images carry the configured placeholder reference and a zero
// hash; they are terminal and never uploaded.
type RecipeImage struct {
	RecipeID          uuid.UUID `json:"recipe_id"`
	RecipeName        string    `json:"recipe_name"`
	BatchID           uuid.UUID `json:"batch_id"`
	CorrelationID     uuid.UUID `json:"correlation_id"`
	TemporaryImageURL string    `json:"temporary_image_url"`
	Placeholder       bool      `json:"placeholder"`
	Hash              uint64    `json:"-"`
	Attempts          int       `json:"attempts"`
}

// ImageBatch is the image generation agent's result for one batch.
// Invariant: Accepted + PlaceholderCount == len(Images) == input size.
type ImageBatch struct {
	Accepted         int           `json:"total_generated"`
	PlaceholderCount int           `json:"placeholder_count"`
	Images           []RecipeImage `json:"images"`
}

// ImageUploadResult records one durable-storage upload attempt.
// WasUploaded=false means the temporary URL is carried as the permanent value;
// this is a fallback, not an error state.
type ImageUploadResult struct {
	RecipeID          uuid.UUID     `json:"recipe_id"`
	RecipeName        string        `json:"recipe_name"`
	BatchID           uuid.UUID     `json:"batch_id"`
	TemporaryImageURL string        `json:"temporary_image_url"`
	PermanentImageURL string        `json:"permanent_image_url"`
	WasUploaded       bool          `json:"was_uploaded"`
	UploadDuration    time.Duration `json:"upload_duration_ms"`
}

// UploadBatch is the storage agent's result for one batch.
// Invariant: TotalUploaded + TotalFailed == len(Uploads) == input size.
type UploadBatch struct {
	TotalUploaded int                 `json:"total_uploaded"`
	TotalFailed   int                 `json:"total_failed"`
	Uploads       []ImageUploadResult `json:"uploads"`
}

// PerceptualHashRecord is one append-only row in the perceptual hash store.
// Persisted centrally and queried by Hamming distance, not exact equality.
type PerceptualHashRecord struct {
	Hash      uint64    `json:"hash"`
	RecipeID  uuid.UUID `json:"recipe_id"`
	BatchID   uuid.UUID `json:"batch_id"`
	CreatedAt time.Time `json:"created_at"`
}

// RecipeReport is the per-recipe view a caller needs to determine which stage
// (if any) degraded an item and how, without access to internal agent state.
type RecipeReport struct {
	RecipeID      uuid.UUID `json:"recipe_id"`
	CorrelationID uuid.UUID `json:"correlation_id"`
	ConceptName   string    `json:"concept_name"`

	Recipe GeneratedRecipe `json:"recipe"`

	GenerationFailed  bool              `json:"generation_failed"`
	ValidationPassed  bool              `json:"validation_passed"`
	NutritionAccurate bool              `json:"nutrition_accurate"`
	AutoFixesApplied  []string          `json:"auto_fixes_applied"`
	Issues            []ValidationIssue `json:"issues"`

	ImagePlaceholder bool   `json:"image_placeholder"`
	WasUploaded      bool   `json:"was_uploaded"`
	ImageURL         string `json:"image_url"`
}

// BatchResult aggregates one full pipeline run. A batch call always returns a
// result; callers inspect per-item reports and the counts below to tell
// degraded-but-successful outcomes from genuine failures.
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
