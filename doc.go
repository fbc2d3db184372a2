// Package o2 applies typed filter expressions to streams of Apache Arrow record batches.
//
// The o2 package ties the pieces together:
//   - expressions builds filters and lowers them to engine conditions
//   - native compiles and evaluates conditions (in-process vector engine, or DuckDB via native/duckdb)
//   - catalog declares tables with persistent, index and dynamic columns
//   - flight serves a pipeline over Arrow Flight DoExchange
//
// # Quick Start
//
//	package main
//
//	import (
//	    "context"
//	    "log"
//
//	    "github.com/viraaj-s/AliceO2"
//	    "github.com/viraaj-s/AliceO2/expressions"
//	)
//
//	func main() {
//	    x := expressions.Column[float32]("x")
//	    y := expressions.Column[int32]("y")
//
//	    p, err := o2.NewPipeline(o2.Config{
//	        Filters: []*expressions.Filter{
//	            expressions.NewFilter(expressions.And(
//	                expressions.Greater(x, float32(1.5)),
//	                expressions.Equal(y, 3),
//	            )),
//	        },
//	    })
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    res, err := p.Process(context.Background(), 0, batch)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    log.Println(res.Selection.Indices())
//	}
//
// # Compilation
//
// A filter is compiled the first time it meets a batch schema. Later batches
// with an equal schema reuse the compiled filter; a schema change triggers one
// recompilation. Pipeline.Compiles reports the count.
//
// # Incompatible Batches
//
// A batch lacking a column a filter binds, or holding it with another type,
// fails with ErrIncompatibleBatch before anything is compiled. With
// Config.SkipIncompatible the batch is reported as a skipped Result instead.
//
// # Memory Management
//
// Batches passed to Process are not retained. Records produced by
// SelectionVector.Filter must be released by the caller. Records handed to
// Run callbacks are released when the callback returns; call Retain() to keep one.
package o2
