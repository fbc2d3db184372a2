package o2

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/viraaj-s/AliceO2/catalog"
	"github.com/viraaj-s/AliceO2/expressions"
	"github.com/viraaj-s/AliceO2/native"
)

// Config contains configuration for a filter pipeline.
type Config struct {
	// Filters are applied to every batch. A row is selected when it passes all of them.
	// Each filter's position is its index in the expression-info cache.
	// REQUIRED: MUST contain at least one non-nil filter.
	Filters []*expressions.Filter

	// Engine compiles and evaluates the filters.
	// OPTIONAL: Uses native.NewVectorEngine() if nil.
	Engine native.Engine

	// Table declares the batch columns. When set, batches are materialized
	// with the table's dynamic columns before filtering.
	// OPTIONAL: If nil, filters bind to the batch schema as is.
	Table catalog.Table

	// Workers bounds the number of batches evaluated in parallel by ProcessBatches.
	// OPTIONAL: If 0, uses runtime.GOMAXPROCS(0). MUST NOT be negative.
	Workers int

	// SkipIncompatible reports batches whose schema does not satisfy a filter
	// as skipped results instead of failing.
	// OPTIONAL: Default false.
	SkipIncompatible bool

	// Allocator for materialized and filtered batches.
	// OPTIONAL: Uses memory.DefaultAllocator if nil.
	Allocator memory.Allocator

	// Logger for internal logging.
	// OPTIONAL: Uses slog.Default() if nil.
	// Note: If LogLevel is specified, a new logger will be created with that level.
	Logger *slog.Logger

	// LogLevel sets the logging level.
	// OPTIONAL: If nil, uses Info level.
	// If Logger is also provided, LogLevel is ignored (use pre-configured logger).
	LogLevel *slog.Level
}

// Standard errors returned by o2 package.
var (
	// ErrInvalidConfig indicates Config validation failed.
	ErrInvalidConfig = errors.New("invalid pipeline config")

	// ErrIncompatibleBatch indicates a batch schema cannot satisfy a filter's bindings.
	// Wraps the binding error from the validator.
	ErrIncompatibleBatch = errors.New("incompatible batch")
)

// validateConfig checks that required Config fields are valid.
func validateConfig(config Config) error {
	if len(config.Filters) == 0 {
		return fmt.Errorf("at least one filter is required")
	}
	for i, f := range config.Filters {
		if f == nil || f.Root() == nil {
			return fmt.Errorf("filter %d is empty", i)
		}
	}
	if config.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", config.Workers)
	}
	return nil
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	if c.LogLevel != nil {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: *c.LogLevel}))
	}
	return slog.Default()
}

func (c Config) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}
