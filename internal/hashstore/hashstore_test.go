package hashstore

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitnessmealplanner/recipegen/internal/model"
)

// testLogger mirrors testutil.TestLogger, which this package cannot import
// without a cycle.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestDistance(t *testing.T) {
	assert.Equal(t, 0, Distance(0xDEADBEEF, 0xDEADBEEF))
	assert.Equal(t, 64, Distance(0, ^uint64(0)))
	assert.Equal(t, 1, Distance(0b1000, 0b0000))
	assert.Equal(t, 3, Distance(0b1011, 0b0000))
	assert.Equal(t, Distance(12345, 67890), Distance(67890, 12345))
}

func TestBitsVector(t *testing.T) {
	vec := BitsVector(0)
	require.Len(t, vec, 64)
	for _, v := range vec {
		assert.Equal(t, float32(0), v)
	}

	vec = BitsVector(^uint64(0))
	for _, v := range vec {
		assert.Equal(t, float32(1), v)
	}

	// MSB maps to index 0, LSB to index 63.
	vec = BitsVector(1 << 63)
	assert.Equal(t, float32(1), vec[0])
	assert.Equal(t, float32(0), vec[63])

	vec = BitsVector(1)
	assert.Equal(t, float32(0), vec[0])
	assert.Equal(t, float32(1), vec[63])
}

func TestBitsVectorSquaredL2EqualsHamming(t *testing.T) {
	pairs := [][2]uint64{
		{0, 0},
		{0xFFFFFFFFFFFFFFFF, 0},
		{0xDEADBEEFCAFEF00D, 0xDEADBEEFCAFEF00F},
		{0xA5A5A5A5A5A5A5A5, 0x5A5A5A5A5A5A5A5A},
	}
	for _, p := range pairs {
		va, vb := BitsVector(p[0]), BitsVector(p[1])
		var sq float32
		for i := range va {
			d := va[i] - vb[i]
			sq += d * d
		}
		assert.Equal(t, float32(Distance(p[0], p[1])), sq)
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(6)

	exists, err := store.Exists(ctx, 0xABCD)
	require.NoError(t, err)
	assert.False(t, exists, "empty store should not report matches")

	rec := model.PerceptualHashRecord{
		Hash:      0xABCD,
		RecipeID:  uuid.New(),
		BatchID:   uuid.New(),
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.Record(ctx, rec))
	assert.Equal(t, 1, store.Len())

	// Exact match.
	exists, err = store.Exists(ctx, 0xABCD)
	require.NoError(t, err)
	assert.True(t, exists)

	// Within threshold: flip 6 bits.
	near := rec.Hash ^ 0b111111
	require.Equal(t, 6, Distance(rec.Hash, near))
	exists, err = store.Exists(ctx, near)
	require.NoError(t, err)
	assert.True(t, exists)

	// Just past threshold: flip 7 bits.
	far := rec.Hash ^ 0b1111111
	require.Equal(t, 7, Distance(rec.Hash, far))
	exists, err = store.Exists(ctx, far)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemoryStoreZeroThreshold(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(0)

	require.NoError(t, store.Record(ctx, model.PerceptualHashRecord{Hash: 100}))

	exists, err := store.Exists(ctx, 100)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.Exists(ctx, 101)
	require.NoError(t, err)
	assert.False(t, exists, "threshold 0 means exact matches only")
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "hashes.db")

	store, err := NewSQLite(ctx, path, 6, testLogger())
	require.NoError(t, err)
	defer store.Close()

	exists, err := store.Exists(ctx, 42)
	require.NoError(t, err)
	assert.False(t, exists)

	rec := model.PerceptualHashRecord{
		Hash:      0xFEEDFACE12345678,
		RecipeID:  uuid.New(),
		BatchID:   uuid.New(),
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.Record(ctx, rec))

	exists, err = store.Exists(ctx, rec.Hash)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.Exists(ctx, rec.Hash^0b11)
	require.NoError(t, err)
	assert.True(t, exists, "2 flipped bits is within the threshold")

	exists, err = store.Exists(ctx, ^rec.Hash)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSQLiteStoreHighBitRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "hashes.db")

	store, err := NewSQLite(ctx, path, 0, testLogger())
	require.NoError(t, err)
	defer store.Close()

	// Hashes with the top bit set exceed int64 range and round-trip through
	// the signed INTEGER column as their bit pattern.
	hash := uint64(1)<<63 | 0x1234
	require.NoError(t, store.Record(ctx, model.PerceptualHashRecord{
		Hash:     hash,
		RecipeID: uuid.New(),
		BatchID:  uuid.New(),
	}))

	exists, err := store.Exists(ctx, hash)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "hashes.db")

	store, err := NewSQLite(ctx, path, 6, testLogger())
	require.NoError(t, err)
	require.NoError(t, store.Record(ctx, model.PerceptualHashRecord{
		Hash:     777,
		RecipeID: uuid.New(),
		BatchID:  uuid.New(),
	}))
	require.NoError(t, store.Close())

	reopened, err := NewSQLite(ctx, path, 6, testLogger())
	require.NoError(t, err)
	defer reopened.Close()

	exists, err := reopened.Exists(ctx, 777)
	require.NoError(t, err)
	assert.True(t, exists)
}
