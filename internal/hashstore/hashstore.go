// Package hashstore persists perceptual hash fingerprints of stored recipe
// images and answers near-duplicate queries across batches.
//
// The store is the only durable state shared across batches and across
// concurrently processed recipes, so implementations must be safe for
// concurrent use. Near-duplicate means Hamming distance at or under a
// configured threshold, not exact equality: perceptually similar images
// produce hashes that differ in a handful of bits.
package hashstore

import (
	"context"
	"math/bits"
	"sync"

	"github.com/fitnessmealplanner/recipegen/internal/model"
)

// Store answers "is this hash already known" and records accepted hashes.
type Store interface {
	// Exists reports whether a hash within the near-duplicate distance of
	// the given hash has already been recorded.
	Exists(ctx context.Context, hash uint64) (bool, error)

	// Record persists an accepted hash. Append-only.
	Record(ctx context.Context, rec model.PerceptualHashRecord) error
}

// Distance returns the Hamming distance between two 64-bit hashes.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// BitsVector expands a 64-bit hash into a {0,1} float vector, most
// significant bit first. For such vectors squared L2 distance equals
// Hamming distance, which lets pgvector and Qdrant answer near-duplicate
// queries with their native L2 metric.
func BitsVector(hash uint64) []float32 {
	vec := make([]float32, 64)
	for i := 0; i < 64; i++ {
		if hash&(1<<uint(63-i)) != 0 {
			vec[i] = 1
		}
	}
	return vec
}

// Memory is an in-process Store. Used in tests and in single-process
// installs that accept losing dedup history on restart.
type Memory struct {
	maxDistance int

	mu      sync.RWMutex
	records []model.PerceptualHashRecord
}

// NewMemory creates an in-memory store with the given near-duplicate
// distance threshold.
func NewMemory(maxDistance int) *Memory {
	return &Memory{maxDistance: maxDistance}
}

// Exists scans all recorded hashes. Linear, but the store only ever holds
// one row per stored recipe image.
func (m *Memory) Exists(_ context.Context, hash uint64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rec := range m.records {
		if Distance(rec.Hash, hash) <= m.maxDistance {
			return true, nil
		}
	}
	return false, nil
}

// Record appends the hash record.
func (m *Memory) Record(_ context.Context, rec model.PerceptualHashRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

// Len returns the number of recorded hashes.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
