package imagegen

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/fitnessmealplanner/recipegen/internal/ctxutil"
	"github.com/fitnessmealplanner/recipegen/internal/hashstore"
	"github.com/fitnessmealplanner/recipegen/internal/model"
	"github.com/fitnessmealplanner/recipegen/internal/telemetry"
)

// Request is one recipe submitted for image generation, carrying the
// correlation ID assigned to it at batch start.
type Request struct {
	Recipe        model.ValidatedRecipe
	CorrelationID uuid.UUID
}

// AgentConfig holds the image agent's tuning knobs.
type AgentConfig struct {
	MaxAttempts    int           // Total generation attempts per recipe, including the first.
	Workers        int           // Concurrent recipes in flight.
	MaxDistance    int           // Hamming distance at or under which two hashes are duplicates.
	PlaceholderURL string        // Image reference used when generation is exhausted or fails.
	AttemptTimeout time.Duration // Budget for one generate+hash attempt.
}

// Agent drives image generation with cross-batch perceptual dedup. Per recipe
// it walks generate, hash, duplicate-check; a duplicate retries generation, a
// hard error or retry exhaustion demotes the recipe to the placeholder image.
// The batch as a whole never fails.
type Agent struct {
	generator Generator
	hasher    *Hasher
	store     hashstore.Store
	cfg       AgentConfig
	logger    *slog.Logger

	acceptedCount    metric.Int64Counter
	placeholderCount metric.Int64Counter
	duplicateCount   metric.Int64Counter
}

// batchState is the in-batch duplicate set for one Process call. The mutex
// serializes the whole claim step so two concurrent recipes cannot both judge
// the same hash novel.
type batchState struct {
	mu   sync.Mutex
	seen []uint64
}

// NewAgent creates an image generation agent.
func NewAgent(generator Generator, hasher *Hasher, store hashstore.Store, cfg AgentConfig, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	a := &Agent{
		generator: generator,
		hasher:    hasher,
		store:     store,
		cfg:       cfg,
		logger:    logger,
	}

	meter := telemetry.Meter("recipegen/imagegen")
	a.acceptedCount, _ = meter.Int64Counter("recipegen.images.accepted")
	a.placeholderCount, _ = meter.Int64Counter("recipegen.images.placeholder")
	a.duplicateCount, _ = meter.Int64Counter("recipegen.images.duplicate_retries")

	return a
}

// Process generates images for a batch of validated recipes. The result holds
// exactly one entry per input, in input order; rejected recipes and recipes
// whose generation degrades get the placeholder image. The batch ID is read
// from the context stamped by the orchestrator.
func (a *Agent) Process(ctx context.Context, reqs []Request) model.ImageBatch {
	batchID := ctxutil.BatchIDFromContext(ctx)
	images := make([]model.RecipeImage, len(reqs))
	state := &batchState{}

	var g errgroup.Group
	g.SetLimit(a.cfg.Workers)
	for i, req := range reqs {
		g.Go(func() error {
			images[i] = a.processOne(ctx, req, batchID, state)
			return nil
		})
	}
	_ = g.Wait()

	batch := model.ImageBatch{Images: images}
	for _, img := range images {
		if img.Placeholder {
			batch.PlaceholderCount++
		} else {
			batch.Accepted++
		}
	}

	a.logger.Info("imagegen: batch complete",
		"batch_id", batchID,
		"accepted", batch.Accepted,
		"placeholders", batch.PlaceholderCount,
	)
	return batch
}

func (a *Agent) processOne(ctx context.Context, req Request, batchID uuid.UUID, state *batchState) model.RecipeImage {
	recipe := req.Recipe.Recipe
	logger := a.logger.With("batch_id", batchID, "correlation_id", req.CorrelationID, "recipe", recipe.Name)

	if req.Recipe.Rejected {
		a.placeholderCount.Add(ctx, 1)
		return a.placeholder(req, batchID, 0)
	}

	prompt := buildPrompt(recipe)

	for attempt := 1; attempt <= a.cfg.MaxAttempts; attempt++ {
		url, hash, err := a.generateAndHash(ctx, prompt)
		if err != nil {
			logger.Warn("imagegen: generation failed, using placeholder", "attempt", attempt, "error", err)
			a.placeholderCount.Add(ctx, 1)
			return a.placeholder(req, batchID, attempt)
		}

		if !a.claim(ctx, state, hash, logger) {
			logger.Debug("imagegen: duplicate image, retrying", "attempt", attempt, "hash", fmt.Sprintf("%016x", hash))
			a.duplicateCount.Add(ctx, 1)
			continue
		}

		if err := a.store.Record(ctx, model.PerceptualHashRecord{
			Hash:      hash,
			RecipeID:  recipe.RecipeID,
			BatchID:   batchID,
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			logger.Warn("imagegen: failed to record hash", "error", err)
		}

		a.acceptedCount.Add(ctx, 1)
		return model.RecipeImage{
			RecipeID:          recipe.RecipeID,
			RecipeName:        recipe.Name,
			BatchID:           batchID,
			CorrelationID:     req.CorrelationID,
			TemporaryImageURL: url,
			Hash:              hash,
			Attempts:          attempt,
		}
	}

	logger.Warn("imagegen: retries exhausted on duplicates, using placeholder", "attempts", a.cfg.MaxAttempts)
	a.placeholderCount.Add(ctx, 1)
	return a.placeholder(req, batchID, a.cfg.MaxAttempts)
}

// generateAndHash runs one attempt under the per-attempt timeout.
func (a *Agent) generateAndHash(ctx context.Context, prompt string) (string, uint64, error) {
	actx := ctx
	if a.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, a.cfg.AttemptTimeout)
		defer cancel()
	}

	url, err := a.generator.Generate(actx, prompt)
	if err != nil {
		return "", 0, err
	}

	hash, err := a.hasher.HashURL(actx, url)
	if err != nil {
		return "", 0, err
	}

	return url, hash, nil
}

// claim atomically checks the hash against the in-batch set and the persisted
// store, and marks it seen when novel. A store lookup failure accepts the
// image rather than demoting it; a rare duplicate beats a lost image.
func (a *Agent) claim(ctx context.Context, state *batchState, hash uint64, logger *slog.Logger) bool {
	state.mu.Lock()
	defer state.mu.Unlock()

	for _, seen := range state.seen {
		if hashstore.Distance(seen, hash) <= a.cfg.MaxDistance {
			return false
		}
	}

	exists, err := a.store.Exists(ctx, hash)
	if err != nil {
		logger.Warn("imagegen: hash store lookup failed, accepting image", "error", err)
	} else if exists {
		return false
	}

	state.seen = append(state.seen, hash)
	return true
}

func (a *Agent) placeholder(req Request, batchID uuid.UUID, attempts int) model.RecipeImage {
	return model.RecipeImage{
		RecipeID:          req.Recipe.Recipe.RecipeID,
		RecipeName:        req.Recipe.Recipe.Name,
		BatchID:           batchID,
		CorrelationID:     req.CorrelationID,
		TemporaryImageURL: a.cfg.PlaceholderURL,
		Placeholder:       true,
		Attempts:          attempts,
	}
}

// buildPrompt describes the finished dish for the image model.
func buildPrompt(recipe model.GeneratedRecipe) string {
	var b strings.Builder
	b.WriteString("Professional food photography of ")
	b.WriteString(recipe.Name)
	if recipe.Description != "" {
		b.WriteString(": ")
		b.WriteString(recipe.Description)
	}
	if len(recipe.MainIngredients) > 0 {
		b.WriteString(". Featuring ")
		b.WriteString(strings.Join(recipe.MainIngredients, ", "))
	}
	b.WriteString(". Plated on a clean background, natural lighting, appetizing.")
	return b.String()
}
