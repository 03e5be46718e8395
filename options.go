package recipegen

import (
	"log/slog"
)

// Option configures a Pipeline.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported — callers use the With* functions.
type resolvedOptions struct {
	logger         *slog.Logger
	version        string
	databaseURL    string
	sqlitePath     string
	qdrantURL      string
	gcsBucket      string
	placeholderURL string
	textGenerator  TextGenerator
	imageGenerator ImageGenerator
	hashStore      HashStore
	uploader       Uploader
}

// WithLogger sets the structured logger for the Pipeline.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in logs and telemetry.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithDatabaseURL overrides the Postgres connection string from config
// (DATABASE_URL env var) for the perceptual hash store.
func WithDatabaseURL(url string) Option {
	return func(o *resolvedOptions) { o.databaseURL = url }
}

// WithSQLitePath overrides the embedded SQLite hash store path from config
// (RECIPEGEN_SQLITE_PATH env var).
func WithSQLitePath(path string) Option {
	return func(o *resolvedOptions) { o.sqlitePath = path }
}

// WithQdrantURL overrides the Qdrant URL from config (QDRANT_URL env var)
// for the perceptual hash index.
func WithQdrantURL(url string) Option {
	return func(o *resolvedOptions) { o.qdrantURL = url }
}

// WithGCSBucket overrides the object storage bucket from config
// (RECIPEGEN_GCS_BUCKET env var).
func WithGCSBucket(bucket string) Option {
	return func(o *resolvedOptions) { o.gcsBucket = bucket }
}

// WithPlaceholderURL overrides the image reference used when generation is
// exhausted or fails (RECIPEGEN_PLACEHOLDER_IMAGE_URL env var).
func WithPlaceholderURL(url string) Option {
	return func(o *resolvedOptions) { o.placeholderURL = url }
}

// WithTextGenerator replaces the auto-detected recipe text provider.
func WithTextGenerator(g TextGenerator) Option {
	return func(o *resolvedOptions) { o.textGenerator = g }
}

// WithImageGenerator replaces the auto-detected image provider.
func WithImageGenerator(g ImageGenerator) Option {
	return func(o *resolvedOptions) { o.imageGenerator = g }
}

// WithHashStore replaces the auto-detected perceptual hash store.
// The Pipeline does not close externally provided stores.
func WithHashStore(s HashStore) Option {
	return func(o *resolvedOptions) { o.hashStore = s }
}

// WithUploader replaces the auto-detected object storage uploader.
func WithUploader(u Uploader) Option {
	return func(o *resolvedOptions) { o.uploader = u }
}
