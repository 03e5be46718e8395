package recipegen

import (
	"context"
)

// TextGenerator produces full recipe content from a concept.
// When provided via WithTextGenerator, replaces the auto-detected
// OpenAI/stub provider.
type TextGenerator interface {
	GenerateRecipe(ctx context.Context, concept RecipeConcept) (Recipe, error)
}

// ImageGenerator produces one image from a text prompt and returns a
// temporary URL where the bytes can be fetched. Temporary URLs may expire;
// the pipeline copies accepted images to durable storage promptly.
// When provided via WithImageGenerator, replaces the auto-detected provider.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// HashStore persists perceptual hashes of stored images and answers
// near-duplicate queries. Exists must match within the configured Hamming
// distance, not by exact equality. Implementations must be safe for
// concurrent use.
// When provided via WithHashStore, replaces the auto-detected
// Postgres/SQLite/Qdrant/in-memory store.
type HashStore interface {
	Exists(ctx context.Context, hash uint64) (bool, error)
	Record(ctx context.Context, rec HashRecord) error
}

// Uploader copies the image at a temporary URL into durable storage and
// returns the permanent URL.
// When provided via WithUploader, replaces the auto-detected GCS uploader.
type Uploader interface {
	Upload(ctx context.Context, temporaryURL, label string) (string, error)
}
