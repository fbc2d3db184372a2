package flight

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	o2 "github.com/viraaj-s/AliceO2"
	"github.com/viraaj-s/AliceO2/expressions"
	"github.com/viraaj-s/AliceO2/internal/msgpack"
	"github.com/viraaj-s/AliceO2/internal/reqcontext"
	"github.com/viraaj-s/AliceO2/native"
)

// RequestIDHeader carries the exchange id. Clients may set it on the
// request; the server echoes the id it used in the response header.
const RequestIDHeader = reqcontext.RequestIDHeader

var errTableNotFound = errors.New("table not found")

// filtered is one output batch on its way to the writer.
type filtered struct {
	rec  arrow.Record
	meta []byte
}

// DoExchange filters the client's batches and streams back the selected rows.
//
// The exchange runs as a pipeline with 3 stages running concurrently:
// 1. Reader goroutine: Reads input records from client stream
// 2. Processor goroutine: Filters each record
// 3. Writer goroutine: Sends selected rows back to client stream
func (s *Server) DoExchange(stream flight.FlightService_DoExchangeServer) error {
	ctx, requestID := reqcontext.Ensure(stream.Context())
	logger := s.logger.With("request_id", requestID)
	if identity := IdentityFromContext(ctx); identity != "" {
		logger = logger.With("identity", identity)
	}

	if err := stream.SetHeader(metadata.Pairs(RequestIDHeader, requestID)); err != nil {
		return status.Errorf(codes.Internal, "failed to set header: %v", err)
	}

	reader, err := flight.NewRecordReader(stream, ipc.WithAllocator(s.allocator))
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "failed to create record reader: %v", err)
	}

	// The descriptor travels with the schema message only.
	desc := reader.LatestFlightDescriptor()
	if desc == nil || desc.Type != flight.DescriptorCMD {
		reader.Release()
		return status.Errorf(codes.InvalidArgument, "missing CMD flight descriptor")
	}
	cmd, err := UnmarshalCommand(desc.Cmd)
	if err != nil {
		reader.Release()
		return status.Errorf(codes.InvalidArgument, "%v", err)
	}

	p, err := s.pipeline(ctx, cmd)
	if err != nil {
		reader.Release()
		return toStatus(err)
	}

	logger.Debug("DoExchange requested",
		"filters", len(cmd.Filters),
		"table", cmd.Table,
		"schema", reader.Schema(),
	)

	writer := flight.NewRecordWriter(stream, ipc.WithSchema(reader.Schema()), ipc.WithAllocator(s.allocator))

	inputCh := make(chan arrow.Record, 1)
	outputCh := make(chan filtered, 1)

	eg, ctx := errgroup.WithContext(ctx)

	// Read data - run in separate goroutine not within errgroup so a failed stage
	// does not wait on a client that is still sending. The reader stops when the
	// handler returns and the stream is cancelled.
	readErr := make(chan error, 1)
	go func() {
		defer reader.Release()
		defer func() {
			close(inputCh)
			if ctx.Err() != nil {
				drain(inputCh)
			}
		}()

		for reader.Next() {
			rec := reader.Record()
			rec.Retain() // Retain for passing to next stage

			select {
			case inputCh <- rec:
			case <-ctx.Done():
				rec.Release()
				readErr <- ctx.Err()
				return
			}
		}
		if err := reader.Err(); err != nil && !errors.Is(err, io.EOF) {
			readErr <- fmt.Errorf("error reading input: %w", err)
			return
		}
		readErr <- nil
	}()

	eg.Go(func() error {
		defer close(outputCh)
		batch := 0
		for in := range inputCh {
			out, err := s.filterBatch(ctx, p, requestID, batch, in)
			in.Release()
			if err != nil {
				return err
			}
			batch++

			select {
			case outputCh <- out:
			case <-ctx.Done():
				out.rec.Release()
				return ctx.Err()
			}
		}
		// inputCh is closed, so the reader has reported.
		return <-readErr
	})

	eg.Go(func() error {
		for out := range outputCh {
			err := writer.WriteWithAppMetadata(out.rec, out.meta)
			out.rec.Release()
			if err != nil {
				for out := range outputCh {
					out.rec.Release()
				}
				return fmt.Errorf("failed to write output batch: %w", err)
			}
		}
		return nil
	})

	// Convert any error to gRPC status error here (only once)
	if err := eg.Wait(); err != nil {
		writer.Close()
		logger.Error("DoExchange pipeline failed", "error", err)
		return toStatus(err)
	}
	if err := writer.Close(); err != nil {
		return status.Errorf(codes.Internal, "failed to close writer: %v", err)
	}

	logger.Debug("DoExchange completed", "compiles", p.Compiles())
	return nil
}

func (s *Server) filterBatch(ctx context.Context, p *o2.Pipeline, requestID string, batch int, rec arrow.Record) (filtered, error) {
	res, err := p.Process(ctx, batch, rec)
	if err != nil {
		return filtered{}, err
	}

	meta := BatchMetadata{RequestID: requestID, Batch: batch, Rows: rec.NumRows()}
	sel := res.Selection
	if res.Skipped {
		meta.Skipped = true
		meta.Reason = res.Err.Error()
		sel = native.NewSelectionVector(nil, int(rec.NumRows()))
	}
	meta.Selected = sel.Len()

	out, err := sel.Filter(s.allocator, rec)
	if err != nil {
		return filtered{}, err
	}
	data, err := msgpack.Encode(meta)
	if err != nil {
		out.Release()
		return filtered{}, err
	}
	return filtered{rec: out, meta: data}, nil
}

func drain(ch <-chan arrow.Record) {
	for rec := range ch {
		rec.Release()
	}
}

// toStatus maps pipeline errors to gRPC status codes.
func toStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, errTableNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, o2.ErrIncompatibleBatch):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, o2.ErrInvalidConfig),
		errors.Is(err, expressions.ErrMalformedTree),
		errors.Is(err, expressions.ErrUnsupportedType),
		errors.Is(err, expressions.ErrTypeMismatch),
		errors.Is(err, native.ErrCompile),
		errors.Is(err, native.ErrNonBooleanCondition):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
