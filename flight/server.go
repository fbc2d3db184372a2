// Package flight serves filter pipelines over Arrow Flight DoExchange.
//
// Protocol:
//   - The client opens DoExchange and sends its batches. The first message
//     carries a CMD FlightDescriptor holding a msgpack-encoded Command.
//   - The server runs the command's filters over every batch and streams
//     back the selected rows, one output batch per input batch. Each output
//     batch carries msgpack-encoded BatchMetadata as app metadata.
//
// The response header "o2-request-id" identifies the exchange in server logs.
package flight

import (
	"log/slog"
	"os"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"google.golang.org/grpc"

	"github.com/viraaj-s/AliceO2/catalog"
	"github.com/viraaj-s/AliceO2/native"
)

// ServerConfig contains configuration for the filter Flight service.
type ServerConfig struct {
	// Catalog resolves the table named by a Command.
	// OPTIONAL: If nil, commands naming a table are rejected.
	Catalog catalog.Catalog

	// Engine compiles and evaluates filters.
	// OPTIONAL: Uses native.NewVectorEngine() if nil.
	// Shared by all exchanges, so it MUST be safe for concurrent use.
	Engine native.Engine

	// Auth validates bearer tokens on every exchange.
	// OPTIONAL: If nil, no authentication (all requests allowed).
	Auth Authenticator

	// Allocator for Arrow memory management.
	// OPTIONAL: Uses memory.DefaultAllocator if nil.
	Allocator memory.Allocator

	// Logger for internal logging.
	// OPTIONAL: Uses slog.Default() if nil.
	Logger *slog.Logger

	// LogLevel sets the logging level of the default logger.
	// OPTIONAL: If Logger is also provided, LogLevel is ignored.
	LogLevel *slog.Level
}

// Server implements the Flight service handlers.
// Embeds BaseFlightServer so every other RPC reports Unimplemented.
type Server struct {
	flight.BaseFlightServer

	catalog   catalog.Catalog
	engine    native.Engine
	allocator memory.Allocator
	logger    *slog.Logger
}

// NewServer creates the Flight service.
func NewServer(config ServerConfig) *Server {
	logger := config.Logger
	if logger == nil {
		if config.LogLevel != nil {
			logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: *config.LogLevel}))
		} else {
			logger = slog.Default()
		}
	}

	s := &Server{
		catalog:   config.Catalog,
		engine:    config.Engine,
		allocator: config.Allocator,
		logger:    logger,
	}
	if s.engine == nil {
		s.engine = native.NewVectorEngine(native.WithLogger(logger))
	}
	if s.allocator == nil {
		s.allocator = memory.DefaultAllocator
	}
	return s
}

// ServerOptions returns the gRPC server options the service needs,
// including the authentication interceptor when Auth is set.
//
// Example:
//
//	grpcServer := grpc.NewServer(flight.ServerOptions(config)...)
//	flight.RegisterFlightServer(grpcServer, flight.NewServer(config))
func ServerOptions(config ServerConfig) []grpc.ServerOption {
	if config.Auth == nil {
		return nil
	}
	return []grpc.ServerOption{grpc.StreamInterceptor(StreamServerInterceptor(config.Auth))}
}

// RegisterFlightServer registers the Flight service on the provided gRPC server.
// This follows the standard gRPC service registration pattern.
func RegisterFlightServer(grpcServer *grpc.Server, flightServer *Server) {
	flight.RegisterFlightServiceServer(grpcServer, flightServer)
}
