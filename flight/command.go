package flight

import (
	"context"
	"fmt"

	o2 "github.com/viraaj-s/AliceO2"
	"github.com/viraaj-s/AliceO2/expressions"
	"github.com/viraaj-s/AliceO2/internal/msgpack"
)

// Command is the DoExchange request carried in the FlightDescriptor.
type Command struct {
	// Filters are applied to every batch; a row is returned when it passes all of them.
	Filters []expressions.NodeDefinition `msgpack:"filters"`

	// Table names a catalog table whose dynamic columns are materialized
	// before filtering. Empty means the batches are filtered as sent.
	Table string `msgpack:"table,omitempty"`

	// SkipIncompatible answers incompatible batches with an empty,
	// skipped batch instead of failing the exchange.
	SkipIncompatible bool `msgpack:"skip_incompatible,omitempty"`
}

// NewCommand builds a command from filters.
func NewCommand(filters ...*expressions.Filter) Command {
	cmd := Command{Filters: make([]expressions.NodeDefinition, len(filters))}
	for i, f := range filters {
		cmd.Filters[i] = expressions.Definition(f.Root())
	}
	return cmd
}

// MarshalBinary encodes the command for a FlightDescriptor.
func (c Command) MarshalBinary() ([]byte, error) {
	return msgpack.Encode(c)
}

// UnmarshalCommand decodes a command from FlightDescriptor bytes.
func UnmarshalCommand(data []byte) (Command, error) {
	var c Command
	if err := msgpack.Decode(data, &c); err != nil {
		return Command{}, fmt.Errorf("decode command: %w", err)
	}
	return c, nil
}

// BatchMetadata is the app metadata attached to every output batch.
type BatchMetadata struct {
	RequestID string `msgpack:"request_id"`
	Batch     int    `msgpack:"batch"`
	Rows      int64  `msgpack:"rows"`
	Selected  int    `msgpack:"selected"`
	Skipped   bool   `msgpack:"skipped,omitempty"`
	Reason    string `msgpack:"reason,omitempty"`
}

// pipeline builds the filter pipeline of one exchange.
func (s *Server) pipeline(ctx context.Context, cmd Command) (*o2.Pipeline, error) {
	filters := make([]*expressions.Filter, len(cmd.Filters))
	for i, d := range cmd.Filters {
		root, err := d.Node()
		if err != nil {
			return nil, fmt.Errorf("filter %d: %w", i, err)
		}
		filters[i] = expressions.NewFilter(root)
	}

	config := o2.Config{
		Filters:          filters,
		Engine:           s.engine,
		SkipIncompatible: cmd.SkipIncompatible,
		Allocator:        s.allocator,
		Logger:           s.logger,
	}

	if cmd.Table != "" {
		if s.catalog == nil {
			return nil, fmt.Errorf("%w: table %s", errTableNotFound, cmd.Table)
		}
		tbl, err := s.catalog.Table(ctx, cmd.Table)
		if err != nil {
			return nil, err
		}
		if tbl == nil {
			return nil, fmt.Errorf("%w: table %s", errTableNotFound, cmd.Table)
		}
		config.Table = tbl
	}

	return o2.NewPipeline(config)
}
