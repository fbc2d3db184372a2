package flight

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"golang.org/x/sync/errgroup"

	"github.com/viraaj-s/AliceO2/internal/msgpack"
)

// Exchange sends the batches of rdr to a filter service and calls fn with
// each returned batch. The record passed to fn is released after fn returns.
//
// Example:
//
//	client := flight.NewFlightServiceClient(conn)
//	err := o2flight.Exchange(ctx, client, o2flight.NewCommand(filter), rdr,
//	    func(meta o2flight.BatchMetadata, rec arrow.Record) error {
//	        log.Printf("batch %d: %d of %d rows", meta.Batch, meta.Selected, meta.Rows)
//	        return nil
//	    })
func Exchange(ctx context.Context, client flight.FlightServiceClient, cmd Command, rdr array.RecordReader, fn func(BatchMetadata, arrow.Record) error) error {
	data, err := cmd.MarshalBinary()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := client.DoExchange(ctx)
	if err != nil {
		return fmt.Errorf("open exchange: %w", err)
	}

	eg, ectx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		writer := flight.NewRecordWriter(stream, ipc.WithSchema(rdr.Schema()), ipc.WithAllocator(memory.DefaultAllocator))
		writer.SetFlightDescriptor(&flight.FlightDescriptor{Type: flight.DescriptorCMD, Cmd: data})

		for rdr.Next() {
			if err := ectx.Err(); err != nil {
				writer.Close()
				return err
			}
			if err := writer.Write(rdr.Record()); err != nil {
				writer.Close()
				if errors.Is(err, io.EOF) {
					// The server ended the exchange; its status arrives on the read side.
					return nil
				}
				return fmt.Errorf("send batch: %w", err)
			}
		}
		if err := rdr.Err(); err != nil {
			writer.Close()
			return err
		}
		if err := writer.Close(); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("close writer: %w", err)
		}
		return stream.CloseSend()
	})

	eg.Go(func() error {
		reader, err := flight.NewRecordReader(stream)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		defer reader.Release()

		for reader.Next() {
			var meta BatchMetadata
			if raw := reader.LatestAppMetadata(); len(raw) > 0 {
				if err := msgpack.Decode(raw, &meta); err != nil {
					return fmt.Errorf("decode batch metadata: %w", err)
				}
			}
			if err := fn(meta, reader.Record()); err != nil {
				return err
			}
		}
		if err := reader.Err(); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	})

	return eg.Wait()
}
