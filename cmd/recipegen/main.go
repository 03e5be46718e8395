// Command recipegen runs one content-generation batch from a concepts file
// and prints the batch result as JSON.
//
//	recipegen -concepts concepts.json
//
// The concepts file holds a JSON array of recipe concepts. Use "-" to read
// from stdin. Configuration comes from the environment (see internal/config).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fitnessmealplanner/recipegen"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := slog.LevelInfo
	if os.Getenv("RECIPEGEN_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	conceptsPath := flag.String("concepts", "", "path to a JSON array of recipe concepts (\"-\" for stdin)")
	flag.Parse()

	if *conceptsPath == "" {
		return fmt.Errorf("missing required -concepts flag")
	}

	concepts, err := loadConcepts(*conceptsPath)
	if err != nil {
		return err
	}
	if len(concepts) == 0 {
		return fmt.Errorf("concepts file is empty")
	}

	pipe, err := recipegen.New(
		recipegen.WithLogger(logger),
		recipegen.WithVersion(version),
	)
	if err != nil {
		return err
	}
	defer func() {
		if err := pipe.Close(context.Background()); err != nil {
			logger.Warn("shutdown error", "error", err)
		}
	}()

	result, err := pipe.RunBatch(ctx, concepts)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}

func loadConcepts(path string) ([]recipegen.RecipeConcept, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open concepts file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var concepts []recipegen.RecipeConcept
	if err := json.NewDecoder(r).Decode(&concepts); err != nil {
		return nil, fmt.Errorf("decode concepts: %w", err)
	}
	return concepts, nil
}
