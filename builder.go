package o2

import (
	"fmt"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/viraaj-s/AliceO2/catalog"
	"github.com/viraaj-s/AliceO2/expressions"
	"github.com/viraaj-s/AliceO2/native"
)

// PipelineBuilder builds pipelines using fluent API.
// Not thread-safe - use only during initialization.
type PipelineBuilder struct {
	config Config
	err    error
	built  bool
}

// NewPipelineBuilder creates a new fluent pipeline builder.
//
// Example:
//
//	p, err := o2.NewPipelineBuilder().
//	    Table(tracks).
//	    Filter(expressions.NewFilter(expressions.Greater(pt, float32(1)))).
//	    FilterJSON(definition).
//	    Workers(4).
//	    Build()
func NewPipelineBuilder() *PipelineBuilder {
	return &PipelineBuilder{}
}

// Filter appends a filter. Its index is the number of filters added before it.
func (b *PipelineBuilder) Filter(f *expressions.Filter) *PipelineBuilder {
	b.config.Filters = append(b.config.Filters, f)
	return b
}

// FilterJSON parses a JSON filter definition and appends it.
// A parse error is reported by Build.
func (b *PipelineBuilder) FilterJSON(data []byte) *PipelineBuilder {
	f, err := expressions.ParseFilterJSON(data)
	if err != nil {
		b.setErr(fmt.Errorf("filter %d: %w", len(b.config.Filters), err))
		return b
	}
	return b.Filter(f)
}

// FilterMsgpack decodes a MessagePack filter definition and appends it.
// A decode error is reported by Build.
func (b *PipelineBuilder) FilterMsgpack(data []byte) *PipelineBuilder {
	f, err := expressions.UnmarshalFilterMsgpack(data)
	if err != nil {
		b.setErr(fmt.Errorf("filter %d: %w", len(b.config.Filters), err))
		return b
	}
	return b.Filter(f)
}

// Engine sets the native engine.
func (b *PipelineBuilder) Engine(eng native.Engine) *PipelineBuilder {
	b.config.Engine = eng
	return b
}

// Table sets the table declaring the batch columns.
func (b *PipelineBuilder) Table(t catalog.Table) *PipelineBuilder {
	b.config.Table = t
	return b
}

// Workers sets the parallelism of ProcessBatches.
func (b *PipelineBuilder) Workers(n int) *PipelineBuilder {
	b.config.Workers = n
	return b
}

// SkipIncompatible reports incompatible batches as skipped instead of failing.
func (b *PipelineBuilder) SkipIncompatible() *PipelineBuilder {
	b.config.SkipIncompatible = true
	return b
}

// Allocator sets the Arrow allocator.
func (b *PipelineBuilder) Allocator(mem memory.Allocator) *PipelineBuilder {
	b.config.Allocator = mem
	return b
}

// Logger sets the logger.
func (b *PipelineBuilder) Logger(logger *slog.Logger) *PipelineBuilder {
	b.config.Logger = logger
	return b
}

// LogLevel sets the level of the default logger.
func (b *PipelineBuilder) LogLevel(level slog.Level) *PipelineBuilder {
	b.config.LogLevel = &level
	return b
}

// Build validates the accumulated configuration and creates the pipeline.
// Can only be called once.
func (b *PipelineBuilder) Build() (*Pipeline, error) {
	if b.built {
		return nil, fmt.Errorf("%w: pipeline already built", ErrInvalidConfig)
	}
	if b.err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, b.err)
	}
	b.built = true
	return NewPipeline(b.config)
}

func (b *PipelineBuilder) setErr(err error) {
	if b.err == nil {
		b.err = err
	}
}
