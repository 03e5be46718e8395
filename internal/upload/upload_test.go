package upload

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitnessmealplanner/recipegen/internal/model"
	"github.com/fitnessmealplanner/recipegen/internal/testutil"
)

type uploaderFunc func(ctx context.Context, temporaryURL, label string) (string, error)

func (f uploaderFunc) Upload(ctx context.Context, temporaryURL, label string) (string, error) {
	return f(ctx, temporaryURL, label)
}

func testImages(n int) []model.RecipeImage {
	batchID := uuid.New()
	images := make([]model.RecipeImage, n)
	for i := range images {
		images[i] = model.RecipeImage{
			RecipeID:          uuid.New(),
			RecipeName:        fmt.Sprintf("recipe-%d", i),
			BatchID:           batchID,
			CorrelationID:     uuid.New(),
			TemporaryImageURL: fmt.Sprintf("https://tmp.example.com/%d.png", i),
		}
	}
	return images
}

func TestUploadBatchAllSucceed(t *testing.T) {
	uploader := uploaderFunc(func(_ context.Context, _, label string) (string, error) {
		return "https://store.example.com/" + label, nil
	})

	agent := NewAgent(uploader, testutil.TestLogger())
	images := testImages(3)
	batch := agent.UploadBatch(context.Background(), images)

	assert.Equal(t, 3, batch.TotalUploaded)
	assert.Equal(t, 0, batch.TotalFailed)
	require.Len(t, batch.Uploads, 3)

	for i, r := range batch.Uploads {
		assert.Equal(t, images[i].RecipeID, r.RecipeID, "output order matches input order")
		assert.True(t, r.WasUploaded)
		assert.Equal(t, images[i].TemporaryImageURL, r.TemporaryImageURL)
		assert.Contains(t, r.PermanentImageURL, images[i].RecipeName)
	}
}

func TestUploadBatchBoundedConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	var calls atomic.Int32

	uploader := uploaderFunc(func(_ context.Context, _, label string) (string, error) {
		calls.Add(1)
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		return "https://store.example.com/" + label, nil
	})

	agent := NewAgent(uploader, testutil.TestLogger())
	batch := agent.UploadBatch(context.Background(), testImages(12))

	assert.Equal(t, int32(12), calls.Load())
	assert.Equal(t, 12, batch.TotalUploaded)
	assert.LessOrEqual(t, peak.Load(), int32(5), "never more than one chunk in flight")
}

func TestUploadBatchFailureIsolation(t *testing.T) {
	uploader := uploaderFunc(func(_ context.Context, _, label string) (string, error) {
		if strings.Contains(label, "recipe-1") {
			return "", fmt.Errorf("bucket unavailable")
		}
		return "https://store.example.com/" + label, nil
	})

	agent := NewAgent(uploader, testutil.TestLogger())
	images := testImages(3)
	batch := agent.UploadBatch(context.Background(), images)

	assert.Equal(t, 2, batch.TotalUploaded)
	assert.Equal(t, 1, batch.TotalFailed)
	require.Len(t, batch.Uploads, 3)

	failed := batch.Uploads[1]
	assert.False(t, failed.WasUploaded)
	assert.Equal(t, failed.TemporaryImageURL, failed.PermanentImageURL,
		"failed uploads fall back to the temporary URL")

	assert.True(t, batch.Uploads[0].WasUploaded)
	assert.True(t, batch.Uploads[2].WasUploaded)
}

func TestUploadBatchItemTimeout(t *testing.T) {
	uploader := uploaderFunc(func(ctx context.Context, temporaryURL, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	agent := NewAgent(uploader, testutil.TestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	images := testImages(1)
	batch := agent.UploadBatch(ctx, images)

	assert.Equal(t, 1, batch.TotalFailed)
	assert.False(t, batch.Uploads[0].WasUploaded)
	assert.Equal(t, images[0].TemporaryImageURL, batch.Uploads[0].PermanentImageURL)
}

func TestUploadBatchEmpty(t *testing.T) {
	var calls atomic.Int32
	uploader := uploaderFunc(func(_ context.Context, _, _ string) (string, error) {
		calls.Add(1)
		return "", nil
	})

	agent := NewAgent(uploader, testutil.TestLogger())
	batch := agent.UploadBatch(context.Background(), nil)

	assert.Equal(t, int32(0), calls.Load())
	assert.Zero(t, batch.TotalUploaded)
	assert.Zero(t, batch.TotalFailed)
	assert.Empty(t, batch.Uploads)
}

func TestAgentLifetimeMetrics(t *testing.T) {
	var calls atomic.Int32
	uploader := uploaderFunc(func(_ context.Context, _, label string) (string, error) {
		time.Sleep(5 * time.Millisecond)
		if calls.Add(1)%2 == 0 {
			return "", fmt.Errorf("flaky")
		}
		return "https://store.example.com/" + label, nil
	})

	agent := NewAgent(uploader, testutil.TestLogger())

	// Two batches accumulate into the same lifetime counters.
	agent.UploadBatch(context.Background(), testImages(2))
	agent.UploadBatch(context.Background(), testImages(2))

	m := agent.Metrics()
	assert.Equal(t, int64(4), m.TotalOperations)
	assert.Equal(t, int64(2), m.Successes)
	assert.Equal(t, int64(2), m.Failures)
	assert.Greater(t, m.AverageDuration, time.Duration(0))
}

func TestAgentMetricsZeroOperations(t *testing.T) {
	agent := NewAgent(uploaderFunc(func(_ context.Context, _, _ string) (string, error) {
		return "", nil
	}), testutil.TestLogger())

	m := agent.Metrics()
	assert.Zero(t, m.TotalOperations)
	assert.Zero(t, m.AverageDuration)
}
