// Package recipegen is the public API for embedding the recipe
// content-generation pipeline.
//
// The meal-planning application imports this package to run content batches
// without touching pipeline internals:
//
//	pipe, err := recipegen.New(
//	    recipegen.WithLogger(logger),
//	    recipegen.WithDatabaseURL(dsn),
//	)
//	if err != nil { ... }
//	defer pipe.Close(ctx)
//	result, err := pipe.RunBatch(ctx, concepts)
//
// The import graph enforces a strict no-cycle rule: recipegen (root) imports
// internal/*, but internal/* never imports recipegen (root). Public types
// (Recipe, BatchResult, etc.) are standalone structs with no internal
// imports; conversion helpers live here because this is the only file that
// sees both sides of the boundary.
package recipegen

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/fitnessmealplanner/recipegen/internal/config"
	"github.com/fitnessmealplanner/recipegen/internal/hashstore"
	"github.com/fitnessmealplanner/recipegen/internal/imagegen"
	"github.com/fitnessmealplanner/recipegen/internal/model"
	"github.com/fitnessmealplanner/recipegen/internal/nutrition"
	"github.com/fitnessmealplanner/recipegen/internal/objstore"
	"github.com/fitnessmealplanner/recipegen/internal/pipeline"
	"github.com/fitnessmealplanner/recipegen/internal/telemetry"
	"github.com/fitnessmealplanner/recipegen/internal/textgen"
	"github.com/fitnessmealplanner/recipegen/internal/upload"
	"github.com/fitnessmealplanner/recipegen/migrations"
)

// Pipeline is the content-generation pipeline lifecycle. Construct with
// New(), run batches with RunBatch(), release resources with Close().
// Pipeline has no public fields — use New() options to configure it.
type Pipeline struct {
	cfg          config.Config
	orch         *pipeline.Orchestrator
	uploadAgent  *upload.Agent
	closeStore   func() error
	closeUpload  func() error
	otelShutdown telemetry.Shutdown
	logger       *slog.Logger
	version      string
}

// New initialises the pipeline. It selects a hash store backend, wires the
// text, image, and storage providers, and returns a ready-to-run Pipeline.
// It does not start any goroutines — call RunBatch().
func New(opts ...Option) (*Pipeline, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	if o.sqlitePath != "" {
		cfg.SQLitePath = o.sqlitePath
	}
	if o.qdrantURL != "" {
		cfg.QdrantURL = o.qdrantURL
	}
	if o.gcsBucket != "" {
		cfg.GCSBucket = o.gcsBucket
	}
	if o.placeholderURL != "" {
		cfg.PlaceholderURL = o.placeholderURL
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("recipegen starting", "version", version)

	otelShutdown, err := telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	// Hash store — external override takes priority over auto-detect.
	var store hashstore.Store
	closeStore := func() error { return nil }
	if o.hashStore != nil {
		store = &hashStoreAdapter{s: o.hashStore}
		logger.Info("hash store: external")
	} else {
		store, closeStore, err = newHashStore(cfg, logger)
		if err != nil {
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("hash store: %w", err)
		}
	}

	// Text provider.
	var textProvider textgen.Provider
	switch {
	case o.textGenerator != nil:
		textProvider = &textGeneratorAdapter{g: o.textGenerator}
		logger.Info("text provider: external")
	case cfg.OpenAIAPIKey != "":
		textProvider = textgen.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.TextModel)
		logger.Info("text provider: openai", "model", cfg.TextModel)
	default:
		textProvider = textgen.NewStubProvider()
		logger.Warn("text provider: stub (no OPENAI_API_KEY, recipes will echo concepts)")
	}

	// Image provider.
	var imageProvider imagegen.Generator
	switch {
	case o.imageGenerator != nil:
		imageProvider = imageGeneratorAdapter{g: o.imageGenerator}
		logger.Info("image provider: external")
	case cfg.OpenAIAPIKey != "":
		imageProvider = imagegen.NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.ImageModel, cfg.ImageSize)
		logger.Info("image provider: openai", "model", cfg.ImageModel, "size", cfg.ImageSize)
	default:
		imageProvider = disabledImageGenerator{}
		logger.Warn("image provider: disabled (no OPENAI_API_KEY, all recipes get the placeholder image)")
	}

	// Object storage.
	var uploader objstore.Uploader
	closeUpload := func() error { return nil }
	switch {
	case o.uploader != nil:
		uploader = uploaderAdapter{u: o.uploader}
		logger.Info("object storage: external")
	case cfg.GCSBucket != "":
		gcsUploader, gcsErr := objstore.NewGCS(context.Background(), cfg.GCSBucket, cfg.GCSPrefix)
		if gcsErr != nil {
			_ = closeStore()
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("object storage: %w", gcsErr)
		}
		uploader = gcsUploader
		closeUpload = gcsUploader.Close
		logger.Info("object storage: gcs", "bucket", cfg.GCSBucket, "prefix", cfg.GCSPrefix)
	default:
		uploader = disabledUploader{}
		logger.Warn("object storage: disabled (no RECIPEGEN_GCS_BUCKET, images keep temporary URLs)")
	}

	validator := nutrition.NewValidator(logger, cfg.CalorieTolerance, cfg.MacroTolerance)

	imageAgent := imagegen.NewAgent(imageProvider, imagegen.NewHasher(nil), store, imagegen.AgentConfig{
		MaxAttempts:    cfg.ImageMaxAttempts,
		Workers:        cfg.ImageWorkers,
		MaxDistance:    cfg.HashMaxDistance,
		PlaceholderURL: cfg.PlaceholderURL,
		AttemptTimeout: cfg.ImageTimeout,
	}, logger)

	uploadAgent := upload.NewAgent(uploader, logger)

	orch := pipeline.NewOrchestrator(textProvider, validator, imageAgent, uploadAgent, pipeline.Config{
		TextWorkers: cfg.TextWorkers,
		TextTimeout: cfg.TextTimeout,
	}, logger)

	return &Pipeline{
		cfg:          cfg,
		orch:         orch,
		uploadAgent:  uploadAgent,
		closeStore:   closeStore,
		closeUpload:  closeUpload,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
	}, nil
}

// RunBatch runs one batch of concepts through all four stages. Every concept
// appears exactly once in the result's items, in input order; degraded items
// are reported, not dropped.
func (p *Pipeline) RunBatch(ctx context.Context, concepts []RecipeConcept) (BatchResult, error) {
	internal := make([]model.RecipeConcept, len(concepts))
	for i, c := range concepts {
		internal[i] = toInternalConcept(c)
	}

	result, err := p.orch.RunBatch(ctx, internal)
	return toPublicResult(result), err
}

// UploadMetrics returns the lifetime storage counters across every batch this
// Pipeline has run.
func (p *Pipeline) UploadMetrics() (operations, successes, failures int64, averageDuration time.Duration) {
	m := p.uploadAgent.Metrics()
	return m.TotalOperations, m.Successes, m.Failures, m.AverageDuration
}

// Close releases the hash store, object storage client, and telemetry
// providers. Externally provided stores and uploaders are not closed.
func (p *Pipeline) Close(ctx context.Context) error {
	p.logger.Info("recipegen shutting down")

	var firstErr error
	if err := p.closeStore(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close hash store: %w", err)
	}
	if err := p.closeUpload(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close object storage: %w", err)
	}
	if err := p.otelShutdown(ctx); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("telemetry shutdown: %w", err)
	}
	return firstErr
}

// newHashStore selects the hash store backend from config: Postgres, then
// SQLite, then Qdrant, then in-memory.
func newHashStore(cfg config.Config, logger *slog.Logger) (hashstore.Store, func() error, error) {
	ctx := context.Background()

	switch {
	case cfg.DatabaseURL != "":
		pg, err := hashstore.NewPostgres(ctx, cfg.DatabaseURL, cfg.HashMaxDistance, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.RunMigrations(ctx, migrations.FS); err != nil {
			pg.Close()
			return nil, nil, err
		}
		logger.Info("hash store: postgres")
		return pg, func() error { pg.Close(); return nil }, nil

	case cfg.SQLitePath != "":
		sq, err := hashstore.NewSQLite(ctx, cfg.SQLitePath, cfg.HashMaxDistance, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("hash store: sqlite", "path", cfg.SQLitePath)
		return sq, sq.Close, nil

	case cfg.QdrantURL != "":
		qd, err := hashstore.NewQdrant(hashstore.QdrantConfig{
			URL:         cfg.QdrantURL,
			APIKey:      cfg.QdrantAPIKey,
			Collection:  cfg.QdrantCollection,
			MaxDistance: cfg.HashMaxDistance,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := qd.EnsureCollection(ctx); err != nil {
			_ = qd.Close()
			return nil, nil, err
		}
		logger.Info("hash store: qdrant", "collection", cfg.QdrantCollection)
		return qd, qd.Close, nil

	default:
		logger.Warn("hash store: in-memory (dedup history lost on restart)")
		return hashstore.NewMemory(cfg.HashMaxDistance), func() error { return nil }, nil
	}
}

// ── Adapters (defined here because this file imports both sides) ───────────

// textGeneratorAdapter wraps a recipegen.TextGenerator to satisfy
// textgen.Provider. Converts public types at the boundary and guarantees the
// recipe ID invariant for external providers that leave it unset.
type textGeneratorAdapter struct {
	g TextGenerator
}

func (a *textGeneratorAdapter) Generate(ctx context.Context, concept model.RecipeConcept) (model.GeneratedRecipe, error) {
	recipe, err := a.g.GenerateRecipe(ctx, toPublicConcept(concept))
	if err != nil {
		return model.GeneratedRecipe{}, err
	}
	internal := toInternalRecipe(recipe)
	if internal.RecipeID == uuid.Nil {
		internal.RecipeID = uuid.New()
	}
	return internal, nil
}

// imageGeneratorAdapter wraps a recipegen.ImageGenerator to satisfy
// imagegen.Generator.
type imageGeneratorAdapter struct {
	g ImageGenerator
}

func (a imageGeneratorAdapter) Generate(ctx context.Context, prompt string) (string, error) {
	return a.g.GenerateImage(ctx, prompt)
}

// hashStoreAdapter wraps a recipegen.HashStore to satisfy hashstore.Store.
type hashStoreAdapter struct {
	s HashStore
}

func (a *hashStoreAdapter) Exists(ctx context.Context, hash uint64) (bool, error) {
	return a.s.Exists(ctx, hash)
}

func (a *hashStoreAdapter) Record(ctx context.Context, rec model.PerceptualHashRecord) error {
	return a.s.Record(ctx, HashRecord{
		Hash:      rec.Hash,
		RecipeID:  rec.RecipeID,
		BatchID:   rec.BatchID,
		CreatedAt: rec.CreatedAt,
	})
}

// uploaderAdapter wraps a recipegen.Uploader to satisfy objstore.Uploader.
type uploaderAdapter struct {
	u Uploader
}

func (a uploaderAdapter) Upload(ctx context.Context, temporaryURL, label string) (string, error) {
	return a.u.Upload(ctx, temporaryURL, label)
}

// disabledImageGenerator fails every generation, demoting all images to the
// placeholder. Used when no image provider is configured.
type disabledImageGenerator struct{}

func (disabledImageGenerator) Generate(context.Context, string) (string, error) {
	return "", fmt.Errorf("recipegen: no image provider configured")
}

// disabledUploader fails every upload, keeping temporary URLs. Used when no
// object storage is configured.
type disabledUploader struct{}

func (disabledUploader) Upload(context.Context, string, string) (string, error) {
	return "", fmt.Errorf("recipegen: no object storage configured")
}

// ── Type converters ────────────────────────────────────────────────────────

func toInternalConcept(c RecipeConcept) model.RecipeConcept {
	return model.RecipeConcept{
		Name:            c.Name,
		Description:     c.Description,
		MealTypes:       c.MealTypes,
		DietaryTags:     c.DietaryTags,
		MainIngredients: c.MainIngredients,
		Difficulty:      c.Difficulty,
		TargetNutrition: model.Nutrition(c.TargetNutrition),
	}
}

func toPublicConcept(c model.RecipeConcept) RecipeConcept {
	return RecipeConcept{
		Name:            c.Name,
		Description:     c.Description,
		MealTypes:       c.MealTypes,
		DietaryTags:     c.DietaryTags,
		MainIngredients: c.MainIngredients,
		Difficulty:      c.Difficulty,
		TargetNutrition: Nutrition(c.TargetNutrition),
	}
}

func toInternalRecipe(r Recipe) model.GeneratedRecipe {
	ingredients := make([]model.Ingredient, len(r.Ingredients))
	for i, ing := range r.Ingredients {
		ingredients[i] = model.Ingredient(ing)
	}
	return model.GeneratedRecipe{
		RecipeID:           r.RecipeID,
		Name:               r.Name,
		Description:        r.Description,
		MealTypes:          r.MealTypes,
		DietaryTags:        r.DietaryTags,
		MainIngredients:    r.MainIngredients,
		Ingredients:        ingredients,
		Instructions:       r.Instructions,
		PrepTimeMinutes:    r.PrepTimeMinutes,
		CookTimeMinutes:    r.CookTimeMinutes,
		Servings:           r.Servings,
		EstimatedNutrition: model.Nutrition(r.EstimatedNutrition),
		ImageURL:           r.ImageURL,
	}
}

func toPublicRecipe(r model.GeneratedRecipe) Recipe {
	ingredients := make([]Ingredient, len(r.Ingredients))
	for i, ing := range r.Ingredients {
		ingredients[i] = Ingredient(ing)
	}
	return Recipe{
		RecipeID:           r.RecipeID,
		Name:               r.Name,
		Description:        r.Description,
		MealTypes:          r.MealTypes,
		DietaryTags:        r.DietaryTags,
		MainIngredients:    r.MainIngredients,
		Ingredients:        ingredients,
		Instructions:       r.Instructions,
		PrepTimeMinutes:    r.PrepTimeMinutes,
		CookTimeMinutes:    r.CookTimeMinutes,
		Servings:           r.Servings,
		EstimatedNutrition: Nutrition(r.EstimatedNutrition),
		ImageURL:           r.ImageURL,
	}
}

func toPublicIssue(i model.ValidationIssue) ValidationIssue {
	return ValidationIssue{
		RecipeIndex: i.RecipeIndex,
		RecipeName:  i.RecipeName,
		Field:       i.Field,
		Expected:    i.Expected,
		Actual:      i.Actual,
		Severity:    string(i.Severity),
		Fixed:       i.Fixed,
	}
}

func toPublicResult(r model.BatchResult) BatchResult {
	items := make([]RecipeReport, len(r.Items))
	for i, item := range r.Items {
		issues := make([]ValidationIssue, len(item.Issues))
		for j, issue := range item.Issues {
			issues[j] = toPublicIssue(issue)
		}
		items[i] = RecipeReport{
			RecipeID:          item.RecipeID,
			CorrelationID:     item.CorrelationID,
			ConceptName:       item.ConceptName,
			Recipe:            toPublicRecipe(item.Recipe),
			GenerationFailed:  item.GenerationFailed,
			ValidationPassed:  item.ValidationPassed,
			NutritionAccurate: item.NutritionAccurate,
			AutoFixesApplied:  item.AutoFixesApplied,
			Issues:            issues,
			ImagePlaceholder:  item.ImagePlaceholder,
			WasUploaded:       item.WasUploaded,
			ImageURL:          item.ImageURL,
		}
	}

	issues := make([]ValidationIssue, len(r.Issues))
	for i, issue := range r.Issues {
		issues[i] = toPublicIssue(issue)
	}

	return BatchResult{
		BatchID:          r.BatchID,
		Items:            items,
		TotalConcepts:    r.TotalConcepts,
		TotalValidated:   r.TotalValidated,
		Passed:           r.Passed,
		Failed:           r.Failed,
		AutoFixed:        r.AutoFixed,
		TotalGenerated:   r.TotalGenerated,
		PlaceholderCount: r.PlaceholderCount,
		TotalUploaded:    r.TotalUploaded,
		TotalFailed:      r.TotalFailed,
		Issues:           issues,
		StartedAt:        r.StartedAt,
		FinishedAt:       r.FinishedAt,
	}
}
