// Package serialize reads and writes record batches as Arrow IPC streams,
// optionally ZStandard-compressed, and Arrow IPC files.
package serialize

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// fileMagic starts and ends every Arrow IPC file.
var fileMagic = []byte("ARROW1")

// Reader reads record batches from an IPC stream or file.
// Caller MUST call Release() when done.
type Reader struct {
	array.RecordReader
	closeFn func()
}

// NewReader detects the format of r and returns a reader over its batches.
// Accepted inputs are Arrow IPC streams, zstd-compressed IPC streams and
// Arrow IPC files. Files are read into memory first.
func NewReader(r io.Reader, mem memory.Allocator) (*Reader, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}

	src, closeFn, err := maybeDecompress(r)
	if err != nil {
		return nil, err
	}

	br := bufio.NewReader(src)
	head, err := br.Peek(len(fileMagic))
	if err != nil && err != io.EOF {
		closeFn()
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	if bytes.Equal(head, fileMagic) {
		rdr, err := readFile(br, mem)
		closeFn()
		if err != nil {
			return nil, err
		}
		return &Reader{RecordReader: rdr, closeFn: func() {}}, nil
	}

	rdr, err := ipc.NewReader(br, ipc.WithAllocator(mem))
	if err != nil {
		closeFn()
		return nil, fmt.Errorf("failed to open IPC stream: %w", err)
	}
	return &Reader{RecordReader: rdr, closeFn: closeFn}, nil
}

// Release releases the batches and the decompressor.
func (r *Reader) Release() {
	r.RecordReader.Release()
	r.closeFn()
}

func readFile(r io.Reader, mem memory.Allocator) (array.RecordReader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read IPC file: %w", err)
	}
	fr, err := ipc.NewFileReader(bytes.NewReader(data), ipc.WithAllocator(mem))
	if err != nil {
		return nil, fmt.Errorf("failed to open IPC file: %w", err)
	}
	defer fr.Close()

	recs := make([]arrow.Record, 0, fr.NumRecords())
	defer func() {
		for _, rec := range recs {
			rec.Release()
		}
	}()
	for i := 0; i < fr.NumRecords(); i++ {
		rec, err := fr.Record(i)
		if err != nil {
			return nil, fmt.Errorf("failed to read record %d: %w", i, err)
		}
		rec.Retain() // FileReader reuses the record on the next call
		recs = append(recs, rec)
	}
	return array.NewRecordReader(fr.Schema(), recs)
}

// Writer writes record batches as an IPC stream.
type Writer struct {
	ipc *ipc.Writer
	enc io.Closer
}

// NewWriter creates a stream writer for schema. With compress set, the
// stream is wrapped in a ZStandard frame.
// Caller MUST call Close() to flush the stream.
func NewWriter(w io.Writer, schema *arrow.Schema, mem memory.Allocator, compress bool) (*Writer, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}

	out := &Writer{}
	if compress {
		enc, err := compressWriter(w)
		if err != nil {
			return nil, err
		}
		out.enc = enc
		w = enc
	}
	out.ipc = ipc.NewWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	return out, nil
}

// Write appends one batch.
func (w *Writer) Write(rec arrow.Record) error {
	return w.ipc.Write(rec)
}

// Close ends the IPC stream and flushes the compressor.
func (w *Writer) Close() error {
	err := w.ipc.Close()
	if w.enc != nil {
		if cerr := w.enc.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
