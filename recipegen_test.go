package recipegen

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitnessmealplanner/recipegen/internal/testutil"
)

// fakeTextGenerator returns recipes hitting the concept's targets, or an
// error for concept names registered in failFor.
type fakeTextGenerator struct {
	failFor map[string]bool
}

func (f *fakeTextGenerator) GenerateRecipe(_ context.Context, concept RecipeConcept) (Recipe, error) {
	if f.failFor[concept.Name] {
		return Recipe{}, fmt.Errorf("model unavailable")
	}
	return Recipe{
		Name:               concept.Name,
		Description:        concept.Description,
		Ingredients:        []Ingredient{{Name: "ingredient", Amount: "1", Unit: "cup"}},
		Instructions:       "Cook it.",
		Servings:           1,
		EstimatedNutrition: concept.TargetNutrition,
	}, nil
}

// fakeImageGenerator returns temporary URLs served by an httptest server
// whose images hash uniquely per call.
type fakeImageGenerator struct {
	baseURL string
	calls   atomic.Int64
}

func (f *fakeImageGenerator) GenerateImage(_ context.Context, _ string) (string, error) {
	return fmt.Sprintf("%s/image?n=%d", f.baseURL, f.calls.Add(1)), nil
}

// fakeHashStore is an exact-match in-memory HashStore.
type fakeHashStore struct {
	mu     sync.Mutex
	hashes map[uint64]bool
}

func (f *fakeHashStore) Exists(_ context.Context, hash uint64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hashes[hash], nil
}

func (f *fakeHashStore) Record(_ context.Context, rec HashRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hashes == nil {
		f.hashes = make(map[uint64]bool)
	}
	f.hashes[rec.Hash] = true
	return nil
}

// fakeUploader returns deterministic permanent URLs.
type fakeUploader struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeUploader) Upload(_ context.Context, _, label string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return "https://storage.test/bucket/" + label, nil
}

func uniqueImageServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, _ := strconv.Atoi(r.URL.Query().Get("n"))
		seed := uint64(n) * 0x9E3779B97F4A7C15

		img := image.NewGray(image.Rect(0, 0, 9, 8))
		for y := 0; y < 8; y++ {
			v := uint8(128)
			img.SetGray(0, y, color.Gray{Y: v})
			for x := 0; x < 8; x++ {
				if seed>>uint(63-(y*8+x))&1 == 1 {
					v -= 10
				} else {
					v += 10
				}
				img.SetGray(x+1, y, color.Gray{Y: v})
			}
		}

		var buf bytes.Buffer
		require.NoError(t, png.Encode(&buf, img))
		w.Header().Set("Content-Type", "image/png")
		_, _ = buf.WriteTo(w)
	}))
}

func newTestPipeline(t *testing.T, text TextGenerator) (*Pipeline, *fakeHashStore, *fakeUploader) {
	t.Helper()
	srv := uniqueImageServer(t)
	t.Cleanup(srv.Close)

	store := &fakeHashStore{}
	uploader := &fakeUploader{}

	pipe, err := New(
		WithLogger(testutil.TestLogger()),
		WithTextGenerator(text),
		WithImageGenerator(&fakeImageGenerator{baseURL: srv.URL}),
		WithHashStore(store),
		WithUploader(uploader),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pipe.Close(context.Background()) })

	return pipe, store, uploader
}

func concepts(names ...string) []RecipeConcept {
	out := make([]RecipeConcept, len(names))
	for i, name := range names {
		out[i] = RecipeConcept{
			Name:            name,
			TargetNutrition: Nutrition{Calories: 500, Protein: 40, Carbs: 30, Fat: 20},
		}
	}
	return out
}

func TestPipelineEndToEnd(t *testing.T) {
	pipe, store, uploader := newTestPipeline(t, &fakeTextGenerator{})

	result, err := pipe.RunBatch(context.Background(), concepts("pad thai", "chili", "power bowl"))
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalConcepts)
	assert.Equal(t, 3, result.Passed)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 3, result.TotalGenerated)
	assert.Equal(t, 0, result.PlaceholderCount)
	assert.Equal(t, 3, result.TotalUploaded)
	assert.Equal(t, 0, result.TotalFailed)
	assert.NotEqual(t, uuid.Nil, result.BatchID)

	require.Len(t, result.Items, 3)
	for i, name := range []string{"pad thai", "chili", "power bowl"} {
		item := result.Items[i]
		assert.Equal(t, name, item.ConceptName)
		assert.True(t, item.ValidationPassed)
		assert.True(t, item.NutritionAccurate)
		assert.True(t, item.WasUploaded)
		assert.Contains(t, item.ImageURL, "https://storage.test/")
		assert.Equal(t, item.ImageURL, item.Recipe.ImageURL)
		assert.NotEqual(t, uuid.Nil, item.RecipeID)
		assert.NotEqual(t, uuid.Nil, item.CorrelationID)
	}

	assert.Len(t, store.hashes, 3)
	assert.Equal(t, 3, uploader.calls)

	ops, successes, failures, avg := pipe.UploadMetrics()
	assert.Equal(t, int64(3), ops)
	assert.Equal(t, int64(3), successes)
	assert.Equal(t, int64(0), failures)
	assert.GreaterOrEqual(t, avg.Nanoseconds(), int64(0))
}

func TestPipelineDegradedItemsStayInResult(t *testing.T) {
	text := &fakeTextGenerator{failFor: map[string]bool{"cursed": true}}
	pipe, _, _ := newTestPipeline(t, text)

	result, err := pipe.RunBatch(context.Background(), concepts("pad thai", "cursed"))
	require.NoError(t, err)

	require.Len(t, result.Items, 2)
	assert.Equal(t, result.TotalConcepts, result.Passed+result.Failed)
	assert.Equal(t, result.TotalConcepts, result.TotalGenerated+result.PlaceholderCount)

	item := result.Items[1]
	assert.Equal(t, "cursed", item.ConceptName)
	assert.True(t, item.GenerationFailed)
	assert.False(t, item.ValidationPassed)
	assert.True(t, item.ImagePlaceholder)
	assert.False(t, item.WasUploaded)
	assert.NotEmpty(t, item.ImageURL, "degraded items still carry a usable image reference")
}

func TestPipelineEmptyBatch(t *testing.T) {
	pipe, _, _ := newTestPipeline(t, &fakeTextGenerator{})

	result, err := pipe.RunBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.TotalConcepts)
	assert.Empty(t, result.Items)
}

func TestPipelineCrossBatchDedup(t *testing.T) {
	srv := uniqueImageServer(t)
	t.Cleanup(srv.Close)

	store := &fakeHashStore{}
	gen := &fakeImageGenerator{baseURL: srv.URL}

	pipe, err := New(
		WithLogger(testutil.TestLogger()),
		WithTextGenerator(&fakeTextGenerator{}),
		WithImageGenerator(gen),
		WithHashStore(store),
		WithUploader(&fakeUploader{}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pipe.Close(context.Background()) })

	first, err := pipe.RunBatch(context.Background(), concepts("pad thai"))
	require.NoError(t, err)
	require.Equal(t, 1, first.TotalGenerated)

	// Rewind the generator so the second batch reproduces the first image.
	// Retries then step past the duplicate to a novel image.
	gen.calls.Store(0)

	second, err := pipe.RunBatch(context.Background(), concepts("chili"))
	require.NoError(t, err)
	assert.Equal(t, 1, second.TotalGenerated, "duplicate across batches retried to a novel image")
	assert.False(t, second.Items[0].ImagePlaceholder)
	assert.Len(t, store.hashes, 2)
}

func TestNewWithExternalHashStoreIsNotClosed(t *testing.T) {
	pipe, _, _ := newTestPipeline(t, &fakeTextGenerator{})
	require.NoError(t, pipe.Close(context.Background()))
}
