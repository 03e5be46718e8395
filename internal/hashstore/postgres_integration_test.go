package hashstore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitnessmealplanner/recipegen/internal/hashstore"
	"github.com/fitnessmealplanner/recipegen/internal/model"
	"github.com/fitnessmealplanner/recipegen/internal/testutil"
	"github.com/fitnessmealplanner/recipegen/migrations"
)

// testContainer is shared by every integration test in this file.
var testContainer *testutil.TestContainer

func TestMain(m *testing.M) {
	testContainer = testutil.MustStartPostgres()
	code := m.Run()
	testContainer.Terminate()
	os.Exit(code)
}

func newTestPostgres(t *testing.T, maxDistance int) *hashstore.Postgres {
	t.Helper()
	ctx := context.Background()

	store, err := testContainer.NewTestStore(ctx, maxDistance, testutil.TestLogger())
	require.NoError(t, err)
	t.Cleanup(store.Close)

	_, err = store.Pool().Exec(ctx, `TRUNCATE recipe_image_hashes`)
	require.NoError(t, err)

	return store
}

func TestPostgresExistsEmpty(t *testing.T) {
	store := newTestPostgres(t, 6)

	exists, err := store.Exists(context.Background(), 0xDEADBEEF)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPostgresRecordAndExists(t *testing.T) {
	ctx := context.Background()
	store := newTestPostgres(t, 6)

	rec := model.PerceptualHashRecord{
		Hash:      0xCAFEF00DDEADBEEF,
		RecipeID:  uuid.New(),
		BatchID:   uuid.New(),
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Record(ctx, rec))

	exists, err := store.Exists(ctx, rec.Hash)
	require.NoError(t, err)
	assert.True(t, exists, "exact hash should match")

	near := rec.Hash ^ 0b111111
	exists, err = store.Exists(ctx, near)
	require.NoError(t, err)
	assert.True(t, exists, "6 flipped bits is at the threshold")

	far := rec.Hash ^ 0b1111111
	exists, err = store.Exists(ctx, far)
	require.NoError(t, err)
	assert.False(t, exists, "7 flipped bits is past the threshold")
}

func TestPostgresNearestAmongMany(t *testing.T) {
	ctx := context.Background()
	store := newTestPostgres(t, 6)

	batchID := uuid.New()
	base := uint64(0xA5A5A5A5A5A5A5A5)
	for i := 0; i < 20; i++ {
		// Spread hashes far apart so only the base is ever near the probe.
		h := base ^ (^uint64(0) >> uint(i))
		if i == 0 {
			h = base
		}
		require.NoError(t, store.Record(ctx, model.PerceptualHashRecord{
			Hash:      h,
			RecipeID:  uuid.New(),
			BatchID:   batchID,
			CreatedAt: time.Now().UTC(),
		}))
	}

	exists, err := store.Exists(ctx, base^0b1)
	require.NoError(t, err)
	assert.True(t, exists, "one-bit neighbor of a stored hash should match")
}

func TestPostgresHighBitHashRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestPostgres(t, 0)

	hash := uint64(1)<<63 | 0x42
	require.NoError(t, store.Record(ctx, model.PerceptualHashRecord{
		Hash:      hash,
		RecipeID:  uuid.New(),
		BatchID:   uuid.New(),
		CreatedAt: time.Now().UTC(),
	}))

	exists, err := store.Exists(ctx, hash)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestPostgresMigrationsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestPostgres(t, 6)

	// Running migrations a second time must be a no-op.
	require.NoError(t, store.RunMigrations(ctx, migrations.FS))
}
