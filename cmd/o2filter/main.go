// Command o2filter applies JSON filter definitions to an Arrow IPC or Parquet
// file and prints how many rows of each batch were selected.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/olekukonko/tablewriter"

	o2 "github.com/viraaj-s/AliceO2"
	"github.com/viraaj-s/AliceO2/internal/serialize"
	"github.com/viraaj-s/AliceO2/internal/source"
	"github.com/viraaj-s/AliceO2/native"
	"github.com/viraaj-s/AliceO2/native/duckdb"
)

type options struct {
	filters   []string
	engine    string
	columns   string
	batchSize int
	out       string
	compress  bool
	skip      bool
	verbose   bool
	input     string
}

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	opts, err := parseFlags(fs, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		fs.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, opts, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(fs *flag.FlagSet, args []string) (options, error) {
	var opts options
	fs.Func("filter", "JSON filter definition file (repeatable; rows must pass every filter)", func(s string) error {
		opts.filters = append(opts.filters, s)
		return nil
	})
	fs.StringVar(&opts.engine, "engine", "vector", "Evaluation engine: vector, duckdb")
	fs.StringVar(&opts.columns, "columns", "", "Comma-separated Parquet columns to load (default: all supported)")
	fs.IntVar(&opts.batchSize, "batch-size", source.DefaultBatchSize, "Rows per batch when reading Parquet")
	fs.StringVar(&opts.out, "out", "", "Write selected rows to this Arrow IPC stream file")
	fs.BoolVar(&opts.compress, "zstd", false, "Compress the -out stream with ZStandard")
	fs.BoolVar(&opts.skip, "skip-incompatible", false, "Skip batches the filters cannot be applied to")
	fs.BoolVar(&opts.verbose, "v", false, "Log compilation and evaluation details")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [options] <input.arrow|input.parquet>\n\n", fs.Name())
		fmt.Fprintf(fs.Output(), "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(fs.Output(), "\nExample:\n")
		fmt.Fprintf(fs.Output(), "  %s -filter cuts.json -out selected.arrow -zstd tracks.parquet\n", fs.Name())
	}

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() != 1 {
		return opts, errors.New("expected exactly one input file")
	}
	opts.input = fs.Arg(0)
	if len(opts.filters) == 0 {
		return opts, errors.New("at least one -filter is required")
	}
	if opts.engine != "vector" && opts.engine != "duckdb" {
		return opts, fmt.Errorf("unknown engine %q", opts.engine)
	}
	if opts.batchSize <= 0 {
		return opts, fmt.Errorf("-batch-size must be positive, got %d", opts.batchSize)
	}
	return opts, nil
}

func run(ctx context.Context, opts options, stdout, stderr io.Writer) error {
	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	mem := memory.DefaultAllocator

	builder := o2.NewPipelineBuilder().Logger(logger).Allocator(mem)
	for _, path := range opts.filters {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read filter: %w", err)
		}
		builder.FilterJSON(data)
	}
	if opts.skip {
		builder.SkipIncompatible()
	}

	var engine native.Engine = native.NewVectorEngine(native.WithLogger(logger))
	if opts.engine == "duckdb" {
		eng, err := duckdb.New(ctx, duckdb.Config{Logger: logger})
		if err != nil {
			return err
		}
		defer eng.Close()
		engine = eng
	}
	pipeline, err := builder.Engine(engine).Build()
	if err != nil {
		return err
	}

	rdr, err := openInput(opts, mem)
	if err != nil {
		return err
	}
	defer rdr.Release()

	var out *serialize.Writer
	var outClosed bool
	if opts.out != "" {
		f, err := os.Create(opts.out)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out, err = serialize.NewWriter(f, rdr.Schema(), mem, opts.compress)
		if err != nil {
			return err
		}
		// Flush whatever was written when returning early.
		defer func() {
			if !outClosed {
				out.Close()
			}
		}()
	}

	table := tablewriter.NewWriter(stdout)
	table.SetHeader([]string{"Batch", "Rows", "Selected", "Status"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)

	var rows, selected int64
	for batch := 0; rdr.Next(); batch++ {
		rec := rdr.Record()
		rows += rec.NumRows()

		res, err := pipeline.Process(ctx, batch, rec)
		if err != nil {
			return err
		}
		if res.Skipped {
			table.Append([]string{strconv.Itoa(batch), strconv.FormatInt(rec.NumRows(), 10), "-", "skipped: " + res.Err.Error()})
			continue
		}

		n := res.Selection.Len()
		selected += int64(n)
		table.Append([]string{strconv.Itoa(batch), strconv.FormatInt(rec.NumRows(), 10), strconv.Itoa(n), "ok"})

		if out != nil {
			sel, err := res.Selection.Filter(mem, rec)
			if err != nil {
				return err
			}
			err = out.Write(sel)
			sel.Release()
			if err != nil {
				return fmt.Errorf("write output: %w", err)
			}
		}
	}
	if err := rdr.Err(); err != nil {
		return err
	}
	if out != nil {
		outClosed = true
		if err := out.Close(); err != nil {
			return fmt.Errorf("close output: %w", err)
		}
	}

	table.SetFooter([]string{"total", strconv.FormatInt(rows, 10), strconv.FormatInt(selected, 10), fmt.Sprintf("%d compiles", pipeline.Compiles())})
	table.Render()
	return nil
}

func openInput(opts options, mem memory.Allocator) (array.RecordReader, error) {
	if strings.EqualFold(filepath.Ext(opts.input), ".parquet") {
		var cols []string
		if opts.columns != "" {
			cols = strings.Split(opts.columns, ",")
		}
		return source.ReadParquet(opts.input, source.Options{
			Columns:   cols,
			BatchSize: opts.batchSize,
			Allocator: mem,
		})
	}

	f, err := os.Open(opts.input)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	rdr, err := serialize.NewReader(f, mem)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &fileReader{Reader: rdr, f: f}, nil
}

// fileReader closes the input file together with the batch reader.
type fileReader struct {
	*serialize.Reader
	f *os.File
}

func (r *fileReader) Release() {
	r.Reader.Release()
	r.f.Close()
}
