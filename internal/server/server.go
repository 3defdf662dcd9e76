package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ironsheep/annotation-tools-mcp/internal/assist"
	"github.com/ironsheep/annotation-tools-mcp/internal/session"
)

// Server handles MCP protocol communication. Its Serve loop is the editing
// thread: tool calls and inference deliveries are handled one at a time.
type Server struct {
	session *session.Session
	version string

	// deliveries remembers what happened to finished inference tasks so
	// ai_status can report the shapes they added.
	deliveries map[string]session.Delivery

	// notify writes a notification to the client. It is set by Serve.
	notify func(method string, params interface{})
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// MCPNotification represents an outgoing notification (no ID)
type MCPNotification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// New creates a server driving sess. version is reported in serverInfo.
func New(sess *session.Session, version string) *Server {
	return &Server{
		session:    sess,
		version:    version,
		deliveries: make(map[string]session.Delivery),
		notify:     func(string, interface{}) {},
	}
}

// Run serves MCP on stdin and stdout until stdin closes or ctx ends.
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve reads one JSON-RPC request per line from r and writes responses and
// notifications to w. Inference outcomes are applied between requests.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	encoder := json.NewEncoder(w)
	s.notify = func(method string, params interface{}) {
		n := MCPNotification{JSONRPC: "2.0", Method: method, Params: params}
		if err := encoder.Encode(n); err != nil {
			slog.Error("failed to encode notification", "method", method, "error", err)
		}
	}

	lines := make(chan []byte)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		// Increase buffer size for large requests
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 16*1024*1024)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				scanErr <- nil
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case out := <-s.session.Results():
			s.deliver(s.session.Deliver(out))

		case line, ok := <-lines:
			if !ok {
				if err := <-scanErr; err != nil {
					return fmt.Errorf("scanner error: %w", err)
				}
				return nil
			}
			if len(line) == 0 {
				continue
			}

			var req MCPRequest
			if err := json.Unmarshal(line, &req); err != nil {
				slog.Warn("failed to parse request", "error", err)
				if err := encoder.Encode(s.errorResponse(nil, -32700, "Parse error", err.Error())); err != nil {
					slog.Error("failed to encode response", "error", err)
				}
				continue
			}

			resp := s.handleRequest(ctx, &req)
			if resp != nil {
				if err := encoder.Encode(resp); err != nil {
					slog.Error("failed to encode response", "error", err)
				}
			}
		}
	}
}

// deliver records a delivery and tells the client about it.
func (s *Server) deliver(d session.Delivery) {
	s.deliveries[d.TaskID] = d
	if len(s.deliveries) > assist.DefaultHistory {
		// Forget deliveries of tasks the runner no longer reports.
		for id := range s.deliveries {
			if _, err := s.session.Task(id); err != nil {
				delete(s.deliveries, id)
			}
		}
	}
	level := "info"
	if d.Error != "" {
		level = "warning"
	}
	s.notify("notifications/message", map[string]interface{}{
		"level":  level,
		"logger": "ai_detect",
		"data":   d,
	})
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(ctx context.Context, req *MCPRequest) *MCPResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized", "notifications/cancelled":
		// Client notifications, no response needed
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    -32601,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools":   map[string]interface{}{},
				"logging": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    "annotation-tools-mcp",
				"version": s.version,
			},
		},
	}
}
