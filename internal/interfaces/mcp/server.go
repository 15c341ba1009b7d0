// Package mcp exposes the dispatcher as MCP tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/example/bookhub/internal/application/usecases"
	"github.com/example/bookhub/internal/internaltypes"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
)

const instructions = `bookhub books restaurants, hair salons, spas and fitness classes across several booking platforms.
Call list_categories and get_filters first to learn which parameters a category takes, then search_venues,
check_availability and book. Venue ids come from search_venues, list_venues or find_venue_by_domain.`

// Server holds the tool set registered on an MCP server.
type Server struct {
	d     *usecases.Dispatcher
	log   zerolog.Logger
	srv   *server.MCPServer
	tools map[string]server.ServerTool
	names []string
}

func New(d *usecases.Dispatcher, version string, log zerolog.Logger) *Server {
	s := &Server{
		d:     d,
		log:   log.With().Str("component", "mcp").Logger(),
		tools: map[string]server.ServerTool{},
	}
	s.srv = server.NewMCPServer("bookhub", version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)
	tools := s.toolset()
	for _, t := range tools {
		s.tools[t.Tool.Name] = t
		s.names = append(s.names, t.Tool.Name)
	}
	s.srv.AddTools(tools...)
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer { return s.srv }

// ServeStdio serves tools over stdin/stdout until stdin closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.srv)
}

// Handler serves the streamable HTTP transport.
func (s *Server) Handler() http.Handler {
	return server.NewStreamableHTTPServer(s.srv)
}

// ToolNames lists the registered tools in registration order.
func (s *Server) ToolNames() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Call runs a tool handler directly, bypassing the protocol layer.
func (s *Server) Call(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	t, ok := s.tools[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", name)
	}
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return t.Handler(ctx, req)
}

type toolFunc func(ctx context.Context, req mcp.CallToolRequest) (any, error)

// handle wraps fn with request ids, logging and result rendering. Tool
// failures are returned as error results, never as protocol errors.
func (s *Server) handle(name string, fn toolFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := usecases.RequestIDFrom(ctx)
		if id == "" {
			id = uuid.NewString()
			ctx = usecases.WithRequestID(ctx, id)
		}
		start := time.Now()
		out, err := fn(ctx, req)
		log := s.log.With().Str("tool", name).Str("request_id", id).Dur("took", time.Since(start)).Logger()
		if err != nil {
			kind := internaltypes.KindOf(err)
			log.Info().Str("kind", string(kind)).Msg("tool failed")
			return renderError(err), nil
		}
		log.Debug().Msg("tool ok")
		body, err := json.Marshal(out)
		if err != nil {
			log.Error().Err(err).Msg("encode result")
			return renderError(err), nil
		}
		return mcp.NewToolResultText(string(body)), nil
	}
}

type errorPayload struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Kind    string         `json:"kind"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func renderError(err error) *mcp.CallToolResult {
	kind := internaltypes.KindOf(err)
	body := errorBody{Kind: string(kind), Message: err.Error(), Details: internaltypes.DetailsOf(err)}
	if kind == internaltypes.KindInternal {
		body.Message = "internal error"
	}
	b, merr := json.Marshal(errorPayload{Error: body})
	if merr != nil {
		b = []byte(fmt.Sprintf(`{"error":{"kind":%q,"message":%q}}`, kind, body.Message))
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(b))},
		IsError: true,
	}
}
