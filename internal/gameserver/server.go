// Package gameserver exposes the keeper's game state operations as MCP tools
// for an orchestrating agent: combat sequencing, status effects, dice and
// check resolution, random tables, and bounded resources.
package gameserver

import (
	"context"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/cory-johannsen/keeper/internal/game/check"
	"github.com/cory-johannsen/keeper/internal/game/combat"
	"github.com/cory-johannsen/keeper/internal/game/dice"
	"github.com/cory-johannsen/keeper/internal/game/effect"
	"github.com/cory-johannsen/keeper/internal/game/resource"
	"github.com/cory-johannsen/keeper/internal/game/table"
)

const serverVersion = "0.1.0"

// Deps bundles the services the tool surface fronts.
type Deps struct {
	Sequencer *combat.Sequencer
	Tracker   *effect.Tracker
	Evaluator *check.Evaluator
	Resolver  *table.Resolver
	Ledger    *resource.Ledger
	Roller    *dice.Roller
	Logger    *zap.Logger
}

// Server wires the game services into an MCP server.
type Server struct {
	mcpServer *mcp.Server
	logger    *zap.Logger
}

// New creates a Server with every tool registered.
//
// Precondition: all Deps fields must be non-nil.
func New(name string, deps Deps) *Server {
	mcpServer := mcp.NewServer(&mcp.Implementation{Name: name, Version: serverVersion}, nil)

	registerCombatTools(mcpServer, deps.Sequencer)
	registerEffectTools(mcpServer, deps.Tracker)
	registerResolutionTools(mcpServer, deps.Evaluator, deps.Resolver, deps.Roller)
	registerResourceTools(mcpServer, deps.Ledger)

	return &Server{mcpServer: mcpServer, logger: deps.Logger}
}

// Run serves MCP over the given transport until ctx is cancelled or the
// client disconnects.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.mcpServer.Run(ctx, transport)
}

// ServeStdio runs the server over stdin/stdout until ctx is cancelled or the
// client disconnects.
func (s *Server) ServeStdio(ctx context.Context) error {
	s.logger.Info("serving MCP over stdio")
	if err := s.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("stdio transport: %w", err)
	}
	return nil
}

// ServeHTTP runs the server as a streamable HTTP endpoint on addr.
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcpServer
	}, nil)

	httpServer := &http.Server{Addr: addr, Handler: handler}
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	s.logger.Info("serving MCP over HTTP", zap.String("addr", addr))
	select {
	case <-ctx.Done():
		if err := httpServer.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http transport: %w", err)
		}
		return nil
	}
}
