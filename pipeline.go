package o2

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"golang.org/x/sync/errgroup"

	"github.com/viraaj-s/AliceO2/catalog"
	"github.com/viraaj-s/AliceO2/expressions"
	"github.com/viraaj-s/AliceO2/internal/recovery"
	"github.com/viraaj-s/AliceO2/native"
)

// Pipeline applies a fixed set of filters to a stream of batches.
// Filters are compiled once per batch schema and reused until the schema changes.
// A Pipeline is safe for concurrent use.
type Pipeline struct {
	filters []*expressions.Filter
	engine  native.Engine
	table   catalog.Table
	workers int
	skip    bool
	mem     memory.Allocator
	logger  *slog.Logger
	cache   *expressions.ExpressionInfoCache
}

// Result is the outcome of filtering one batch.
type Result struct {
	// Batch is the position of the batch in the processed sequence.
	Batch int

	// Selections holds one selection per configured filter.
	Selections []*native.SelectionVector

	// Selection holds the rows passing every filter.
	Selection *native.SelectionVector

	// Skipped is set when the batch was incompatible and Config.SkipIncompatible is on.
	// Err then holds the reason and the selections are nil.
	Skipped bool
	Err     error
}

// NewPipeline validates the config and creates a pipeline.
//
// Example:
//
//	p, err := o2.NewPipeline(o2.Config{
//	    Filters: []*expressions.Filter{
//	        expressions.NewFilter(expressions.Greater(expressions.Column[float32]("x"), float32(1.5))),
//	    },
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := p.Process(ctx, 0, batch)
func NewPipeline(config Config) (*Pipeline, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	logger := config.logger()

	engine := config.Engine
	if engine == nil {
		engine = native.NewVectorEngine(native.WithLogger(logger))
	}

	mem := config.Allocator
	if mem == nil {
		mem = memory.DefaultAllocator
	}

	p := &Pipeline{
		filters: append([]*expressions.Filter(nil), config.Filters...),
		engine:  engine,
		table:   config.Table,
		workers: config.workers(),
		skip:    config.SkipIncompatible,
		mem:     mem,
		logger:  logger,
		cache:   expressions.NewExpressionInfoCache(engine, logger),
	}

	logger.Debug("Filter pipeline created",
		"filters", len(p.filters),
		"workers", p.workers,
		"has_table", p.table != nil,
	)
	return p, nil
}

// Process filters one batch. The batch is not retained.
func (p *Pipeline) Process(ctx context.Context, batch int, rec arrow.Record) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	input := rec
	if p.table != nil {
		materialized, err := recovery.RecoverToValue(p.logger, "Materialize", func() (arrow.Record, error) {
			return p.table.Materialize(p.mem, rec)
		})
		if err != nil {
			if errors.Is(err, catalog.ErrBatchMismatch) {
				return p.incompatible(batch, err)
			}
			return nil, fmt.Errorf("batch %d: %w", batch, err)
		}
		defer materialized.Release()
		input = materialized
	}

	res := &Result{Batch: batch, Selections: make([]*native.SelectionVector, len(p.filters))}
	for i, f := range p.filters {
		info, err := recovery.RecoverToValue(p.logger, "Compile", func() (expressions.ExpressionInfo, error) {
			return p.cache.Get(f, i, input.Schema())
		})
		if err != nil {
			if errors.Is(err, expressions.ErrUnresolvedBinding) || errors.Is(err, expressions.ErrKindMismatch) {
				return p.incompatible(batch, fmt.Errorf("filter %d: %w", i, err))
			}
			return nil, fmt.Errorf("batch %d: filter %d: %w", batch, i, err)
		}

		sel, err := recovery.RecoverToValue(p.logger, "Evaluate", func() (*native.SelectionVector, error) {
			return expressions.Select(p.engine, input, info.Filter)
		})
		if err != nil {
			p.logger.Error("Failed to evaluate filter", "batch", batch, "filter", i, "error", err)
			return nil, fmt.Errorf("batch %d: filter %d: %w", batch, i, err)
		}
		res.Selections[i] = sel
	}

	res.Selection = intersect(res.Selections)
	return res, nil
}

// ProcessBatches filters independent batches in parallel, bounded by Config.Workers.
// Results are returned in batch order. The first error cancels the remaining batches.
func (p *Pipeline) ProcessBatches(ctx context.Context, recs []arrow.Record) ([]*Result, error) {
	results := make([]*Result, len(recs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, rec := range recs {
		g.Go(func() error {
			res, err := p.Process(gctx, i, rec)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Run reads batches from rdr and calls emit with the selected rows of each.
// The record passed to emit is released after emit returns. A panic in emit
// is returned as recovery.ErrPanic.
// Skipped batches are logged and not emitted.
func (p *Pipeline) Run(ctx context.Context, rdr array.RecordReader, emit func(res *Result, selected arrow.Record) error) error {
	for batch := 0; rdr.Next(); batch++ {
		rec := rdr.Record()
		res, err := p.Process(ctx, batch, rec)
		if err != nil {
			return err
		}
		if res.Skipped {
			continue
		}

		selected, err := res.Selection.Filter(p.mem, rec)
		if err != nil {
			return fmt.Errorf("batch %d: %w", batch, err)
		}
		err = recovery.RecoverToError(p.logger, "Emit", func() error {
			return emit(res, selected)
		})
		selected.Release()
		if err != nil {
			return err
		}
	}
	return rdr.Err()
}

// Compiles returns how many filter compilations the pipeline performed.
func (p *Pipeline) Compiles() int {
	return p.cache.Compiles()
}

// Infos returns a snapshot of the compiled filters.
func (p *Pipeline) Infos() []expressions.ExpressionInfo {
	return p.cache.Infos()
}

func (p *Pipeline) incompatible(batch int, err error) (*Result, error) {
	err = fmt.Errorf("%w: batch %d: %w", ErrIncompatibleBatch, batch, err)
	if !p.skip {
		return nil, err
	}
	p.logger.Warn("Skipping incompatible batch", "batch", batch, "error", err)
	return &Result{Batch: batch, Skipped: true, Err: err}, nil
}

func intersect(sels []*native.SelectionVector) *native.SelectionVector {
	if len(sels) == 1 {
		return sels[0]
	}
	mask := sels[0].Mask()
	for _, s := range sels[1:] {
		mask.InPlaceIntersection(s.Mask())
	}
	return native.SelectionFromMask(mask, sels[0].NumRows())
}
