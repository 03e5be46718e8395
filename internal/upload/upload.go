// Package upload moves accepted recipe images from temporary generation URLs
// into durable object storage.
package upload

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/fitnessmealplanner/recipegen/internal/ctxutil"
	"github.com/fitnessmealplanner/recipegen/internal/model"
	"github.com/fitnessmealplanner/recipegen/internal/objstore"
	"github.com/fitnessmealplanner/recipegen/internal/telemetry"
)

// Temporary image URLs expire quickly, so uploads run promptly after
// generation with a fixed concurrency ceiling the image host tolerates.
const (
	chunkSize   = 5
	itemTimeout = 30 * time.Second
)

// Agent uploads image batches in fixed chunks of five, concurrent within a
// chunk and sequential across chunks. A failed or timed-out item keeps its
// temporary URL as the permanent value; the batch call itself never fails.
type Agent struct {
	uploader objstore.Uploader
	logger   *slog.Logger

	// Lifetime counters across all batches this agent has served.
	totalOps      atomic.Int64
	successes     atomic.Int64
	failures      atomic.Int64
	totalDuration atomic.Int64 // nanoseconds

	uploadCount   metric.Int64Counter
	failureCount  metric.Int64Counter
	uploadSeconds metric.Float64Histogram
}

// Metrics is a snapshot of the agent's lifetime counters.
type Metrics struct {
	TotalOperations int64
	Successes       int64
	Failures        int64
	AverageDuration time.Duration
}

// NewAgent creates an image storage agent.
func NewAgent(uploader objstore.Uploader, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Agent{uploader: uploader, logger: logger}

	meter := telemetry.Meter("recipegen/upload")
	a.uploadCount, _ = meter.Int64Counter("recipegen.uploads.completed")
	a.failureCount, _ = meter.Int64Counter("recipegen.uploads.failed")
	a.uploadSeconds, _ = meter.Float64Histogram("recipegen.uploads.duration_seconds")

	return a
}

// UploadBatch uploads every image and returns one result per input, in input
// order. Empty input returns a zero result without touching storage. The
// batch ID is read from the context stamped by the orchestrator.
func (a *Agent) UploadBatch(ctx context.Context, images []model.RecipeImage) model.UploadBatch {
	if len(images) == 0 {
		return model.UploadBatch{}
	}

	results := make([]model.ImageUploadResult, len(images))

	for start := 0; start < len(images); start += chunkSize {
		end := min(start+chunkSize, len(images))

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i] = a.uploadOne(ctx, images[i])
			}()
		}
		wg.Wait()
	}

	batch := model.UploadBatch{Uploads: results}
	for _, r := range results {
		if r.WasUploaded {
			batch.TotalUploaded++
		} else {
			batch.TotalFailed++
		}
	}

	a.logger.Info("upload: batch complete",
		"batch_id", ctxutil.BatchIDFromContext(ctx),
		"uploaded", batch.TotalUploaded,
		"failed", batch.TotalFailed,
	)
	return batch
}

func (a *Agent) uploadOne(ctx context.Context, img model.RecipeImage) model.ImageUploadResult {
	ictx, cancel := context.WithTimeout(ctx, itemTimeout)
	defer cancel()

	label := fmt.Sprintf("%s-%s", img.RecipeName, img.RecipeID)

	start := time.Now()
	permanentURL, err := a.uploader.Upload(ictx, img.TemporaryImageURL, label)
	elapsed := time.Since(start)

	a.totalOps.Add(1)
	a.totalDuration.Add(int64(elapsed))
	a.uploadSeconds.Record(ctx, elapsed.Seconds())

	result := model.ImageUploadResult{
		RecipeID:          img.RecipeID,
		RecipeName:        img.RecipeName,
		BatchID:           img.BatchID,
		TemporaryImageURL: img.TemporaryImageURL,
		UploadDuration:    elapsed,
	}

	if err != nil {
		a.failures.Add(1)
		a.failureCount.Add(ctx, 1)
		a.logger.Warn("upload: failed, keeping temporary URL",
			"recipe", img.RecipeName,
			"correlation_id", img.CorrelationID,
			"error", err,
		)
		result.PermanentImageURL = img.TemporaryImageURL
		return result
	}

	a.successes.Add(1)
	a.uploadCount.Add(ctx, 1)
	result.PermanentImageURL = permanentURL
	result.WasUploaded = true
	return result
}

// Metrics returns the lifetime counters, including the running average
// duration across every upload attempt this agent has made.
func (a *Agent) Metrics() Metrics {
	ops := a.totalOps.Load()
	m := Metrics{
		TotalOperations: ops,
		Successes:       a.successes.Load(),
		Failures:        a.failures.Load(),
	}
	if ops > 0 {
		m.AverageDuration = time.Duration(a.totalDuration.Load() / ops)
	}
	return m
}
