// Package pipeline orchestrates one content-generation batch through text
// generation, nutritional validation, image generation with dedup, and
// durable image storage.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fitnessmealplanner/recipegen/internal/ctxutil"
	"github.com/fitnessmealplanner/recipegen/internal/imagegen"
	"github.com/fitnessmealplanner/recipegen/internal/model"
	"github.com/fitnessmealplanner/recipegen/internal/nutrition"
	"github.com/fitnessmealplanner/recipegen/internal/textgen"
	"github.com/fitnessmealplanner/recipegen/internal/upload"
)

// Config holds the orchestrator's tuning knobs.
type Config struct {
	TextWorkers int           // Concurrent text-generation calls per batch.
	TextTimeout time.Duration // Per-concept text generation budget.
}

// Orchestrator runs batches end to end. Stages run strictly in order; within
// a stage, per-item work may be concurrent. Items degrade individually, the
// batch as a whole always produces a result.
type Orchestrator struct {
	textProvider textgen.Provider
	validator    *nutrition.Validator
	imageAgent   *imagegen.Agent
	uploadAgent  *upload.Agent
	cfg          Config
	logger       *slog.Logger
}

// NewOrchestrator wires the four stages together.
func NewOrchestrator(
	textProvider textgen.Provider,
	validator *nutrition.Validator,
	imageAgent *imagegen.Agent,
	uploadAgent *upload.Agent,
	cfg Config,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TextWorkers < 1 {
		cfg.TextWorkers = 1
	}
	return &Orchestrator{
		textProvider: textProvider,
		validator:    validator,
		imageAgent:   imageAgent,
		uploadAgent:  uploadAgent,
		cfg:          cfg,
		logger:       logger,
	}
}

// RunBatch generates, validates, images, and stores one batch of concepts.
// Every concept appears exactly once in the result's items, in input order,
// whatever happened to it along the way.
func (o *Orchestrator) RunBatch(ctx context.Context, concepts []model.RecipeConcept) (model.BatchResult, error) {
	batchID := uuid.New()
	ctx = ctxutil.WithBatchID(ctx, batchID)
	started := time.Now().UTC()

	result := model.BatchResult{
		BatchID:       batchID,
		TotalConcepts: len(concepts),
		StartedAt:     started,
	}
	if len(concepts) == 0 {
		result.FinishedAt = time.Now().UTC()
		return result, nil
	}

	correlationIDs := make([]uuid.UUID, len(concepts))
	for i := range correlationIDs {
		correlationIDs[i] = uuid.New()
	}

	o.logger.Info("pipeline: batch started", "batch_id", batchID, "concepts", len(concepts))

	recipes, genFailed := o.generateTexts(ctx, concepts, correlationIDs)

	validation := o.validator.ValidateBatch(recipes, concepts, batchID)

	imageReqs := make([]imagegen.Request, len(validation.Validated))
	for i, v := range validation.Validated {
		imageReqs[i] = imagegen.Request{Recipe: v, CorrelationID: correlationIDs[i]}
	}
	imageBatch := o.imageAgent.Process(ctx, imageReqs)

	// Only accepted generated images move to durable storage; placeholders
	// already point at a stable asset.
	toUpload := make([]model.RecipeImage, 0, imageBatch.Accepted)
	for _, img := range imageBatch.Images {
		if !img.Placeholder {
			toUpload = append(toUpload, img)
		}
	}
	uploadBatch := o.uploadAgent.UploadBatch(ctx, toUpload)

	uploadsByRecipe := make(map[uuid.UUID]model.ImageUploadResult, len(uploadBatch.Uploads))
	for _, u := range uploadBatch.Uploads {
		uploadsByRecipe[u.RecipeID] = u
	}

	issuesByIndex := make(map[int][]model.ValidationIssue)
	for _, issue := range validation.Issues {
		issuesByIndex[issue.RecipeIndex] = append(issuesByIndex[issue.RecipeIndex], issue)
	}

	result.Items = make([]model.RecipeReport, len(concepts))
	for i := range concepts {
		v := validation.Validated[i]
		img := imageBatch.Images[i]

		report := model.RecipeReport{
			RecipeID:          v.Recipe.RecipeID,
			CorrelationID:     correlationIDs[i],
			ConceptName:       concepts[i].Name,
			Recipe:            v.Recipe,
			GenerationFailed:  genFailed[i],
			ValidationPassed:  v.ValidationPassed,
			NutritionAccurate: v.NutritionAccurate,
			AutoFixesApplied:  v.AutoFixesApplied,
			Issues:            issuesByIndex[i],
			ImagePlaceholder:  img.Placeholder,
			ImageURL:          img.TemporaryImageURL,
		}

		if u, ok := uploadsByRecipe[img.RecipeID]; ok {
			report.WasUploaded = u.WasUploaded
			report.ImageURL = u.PermanentImageURL
		}
		report.Recipe.ImageURL = report.ImageURL

		result.Items[i] = report
	}

	result.TotalValidated = validation.TotalValidated
	result.Passed = validation.Passed
	result.Failed = validation.Failed
	result.AutoFixed = validation.AutoFixed
	result.Issues = validation.Issues
	result.TotalGenerated = imageBatch.Accepted
	result.PlaceholderCount = imageBatch.PlaceholderCount
	result.TotalUploaded = uploadBatch.TotalUploaded
	result.TotalFailed = uploadBatch.TotalFailed
	result.FinishedAt = time.Now().UTC()

	o.logger.Info("pipeline: batch finished",
		"batch_id", batchID,
		"passed", result.Passed,
		"failed", result.Failed,
		"images_accepted", result.TotalGenerated,
		"placeholders", result.PlaceholderCount,
		"uploaded", result.TotalUploaded,
		"duration", result.FinishedAt.Sub(result.StartedAt),
	)

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("pipeline: batch interrupted: %w", err)
	}
	return result, nil
}

// generateTexts produces one recipe per concept through a bounded worker
// pool. A failed generation yields a zero-value recipe carrying the concept
// name; it flows through validation and is rejected there, so it stays
// visible in every downstream count.
func (o *Orchestrator) generateTexts(ctx context.Context, concepts []model.RecipeConcept, correlationIDs []uuid.UUID) ([]model.GeneratedRecipe, []bool) {
	recipes := make([]model.GeneratedRecipe, len(concepts))
	failed := make([]bool, len(concepts))

	sem := make(chan struct{}, o.cfg.TextWorkers)
	var wg sync.WaitGroup

	for i, concept := range concepts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			cctx := ctx
			if o.cfg.TextTimeout > 0 {
				var cancel context.CancelFunc
				cctx, cancel = context.WithTimeout(ctx, o.cfg.TextTimeout)
				defer cancel()
			}

			recipe, err := o.textProvider.Generate(cctx, concept)
			if err != nil {
				o.logger.Warn("pipeline: text generation failed",
					"correlation_id", correlationIDs[i],
					"concept", concept.Name,
					"error", err,
				)
				recipes[i] = model.GeneratedRecipe{RecipeID: uuid.New(), Name: concept.Name}
				failed[i] = true
				return
			}
			recipes[i] = recipe
		}()
	}
	wg.Wait()

	return recipes, failed
}
