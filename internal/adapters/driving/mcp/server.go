package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/custodia-labs/papercache/internal/logger"
)

// DefaultVersion is reported to clients unless WithVersion overrides it.
const DefaultVersion = "dev"

const instructions = `papercache mirrors arXiv papers into a local cache and ranks them by
embedding similarity. Use search_papers for questions about the literature,
get_paper for details, and start_sync followed by backfill to refresh the cache.`

// Server exposes the paper cache to MCP clients.
type Server struct {
	ports   *Ports
	version string
	server  *mcp.Server
	logger  *zap.Logger

	// jobs parents the sync and backfill runs started by tools, so they
	// outlive the request that started them but not the server.
	jobs context.Context
}

// Option configures a Server.
type Option func(*Server)

// WithVersion sets the version advertised during initialisation.
func WithVersion(version string) Option {
	return func(s *Server) {
		if version != "" {
			s.version = version
		}
	}
}

// NewServer registers every tool and resource backed by ports.
func NewServer(ports *Ports, opts ...Option) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	s := &Server{
		ports:   ports,
		version: DefaultVersion,
		logger:  logger.Zap().Named("mcp"),
		jobs:    context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.server = mcp.NewServer(
		&mcp.Implementation{Name: "papercache", Version: s.version},
		&mcp.ServerOptions{Instructions: instructions},
	)
	s.registerTools()
	s.registerResources()

	return s, nil
}

// Run serves JSON-RPC over stdio until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.jobs = ctx
	s.logger.Debug("serving over stdio", zap.String("version", s.version))
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves the streamable HTTP transport on addr until ctx is done.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	s.jobs = ctx
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("http shutdown", zap.Error(err))
		}
	}()

	s.logger.Debug("serving over http", zap.String("addr", addr), zap.String("version", s.version))
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
