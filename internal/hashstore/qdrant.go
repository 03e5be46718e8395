package hashstore

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/fitnessmealplanner/recipegen/internal/model"
)

// QdrantConfig holds configuration for connecting to Qdrant.
type QdrantConfig struct {
	URL         string // e.g. "https://xyz.cloud.qdrant.io:6333" or "http://localhost:6333"
	APIKey      string
	Collection  string
	MaxDistance int
}

// Qdrant is a Store backed by a Qdrant collection, for deployments that keep
// similarity data out of the relational database. Hashes are stored as
// 64-dimension {0,1} vectors under the Euclid metric, where squared distance
// to the nearest point is the Hamming distance.
type Qdrant struct {
	client      *qdrant.Client
	collection  string
	maxDistance int
	logger      *slog.Logger
}

// parseQdrantURL extracts host, port, and TLS flag from a Qdrant URL.
// Accepts forms like "https://host:6333", "http://host:6333", or "host:6334".
func parseQdrantURL(rawURL string) (host string, port int, useTLS bool, err error) {
	u, parseErr := url.Parse(rawURL)
	if parseErr != nil || u.Host == "" {
		return "", 0, false, fmt.Errorf("hashstore: invalid qdrant URL: %q", rawURL)
	}

	useTLS = u.Scheme == "https"
	host = u.Hostname()

	if portStr := u.Port(); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return "", 0, false, fmt.Errorf("hashstore: invalid port in qdrant URL: %q", portStr)
		}
		// If the user specified the REST port (6333), use the gRPC port (6334).
		if p == 6333 {
			port = 6334
		} else {
			port = p
		}
	} else {
		port = 6334
	}

	return host, port, useTLS, nil
}

// NewQdrant connects to the Qdrant server via gRPC.
func NewQdrant(cfg QdrantConfig, logger *slog.Logger) (*Qdrant, error) {
	host, port, useTLS, err := parseQdrantURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("hashstore: connect to qdrant at %s:%d: %w", host, port, err)
	}

	return &Qdrant{
		client:      client,
		collection:  cfg.Collection,
		maxDistance: cfg.MaxDistance,
		logger:      logger,
	}, nil
}

// EnsureCollection creates the hash collection if it doesn't already exist.
func (q *Qdrant) EnsureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("hashstore: check collection exists: %w", err)
	}
	if exists {
		q.logger.Info("qdrant: collection already exists", "collection", q.collection)
		return nil
	}

	if err := q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     64,
			Distance: qdrant.Distance_Euclid,
		}),
	}); err != nil {
		return fmt.Errorf("hashstore: create collection %q: %w", q.collection, err)
	}
	q.logger.Info("qdrant: created collection", "collection", q.collection)
	return nil
}

// Exists queries the single nearest stored hash vector and compares its
// Euclid distance against sqrt(maxDistance); a half-bit epsilon absorbs
// float rounding since real distances sit on discrete bit counts.
func (q *Qdrant) Exists(ctx context.Context, hash uint64) (bool, error) {
	limit := uint64(1)
	scored, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(BitsVector(hash)),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(false),
	})
	if err != nil {
		return false, fmt.Errorf("hashstore: qdrant nearest hash: %w", err)
	}
	if len(scored) == 0 {
		return false, nil
	}

	cutoff := math.Sqrt(float64(q.maxDistance) + 0.5)
	return float64(scored[0].Score) <= cutoff, nil
}

// Record upserts the accepted hash as a new point keyed by a fresh UUID,
// carrying the recipe and batch identity in the payload.
func (q *Qdrant) Record(ctx context.Context, rec model.PerceptualHashRecord) error {
	point := &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(uuid.New().String()),
		Vectors: qdrant.NewVectors(BitsVector(rec.Hash)...),
		Payload: qdrant.NewValueMap(map[string]any{
			"hash":       strconv.FormatUint(rec.Hash, 16),
			"recipe_id":  rec.RecipeID.String(),
			"batch_id":   rec.BatchID.String(),
			"created_at": rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		}),
	}

	wait := true
	if _, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points:         []*qdrant.PointStruct{point},
		Wait:           &wait,
	}); err != nil {
		return fmt.Errorf("hashstore: qdrant upsert hash: %w", err)
	}
	return nil
}

// Close closes the underlying gRPC connection.
func (q *Qdrant) Close() error {
	return q.client.Close()
}
