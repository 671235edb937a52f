package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/arturoeanton/go-clip-classifier/internal/domain"
	"github.com/arturoeanton/go-clip-classifier/internal/port"
	"github.com/arturoeanton/go-clip-classifier/internal/service"
)

// JSON-RPC error codes.
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

// Server implements the Model Context Protocol (MCP) server.
// It exposes the classifier as tools for external AI agents.
type Server struct {
	classifier *service.ClassifierService
	port       string
}

// NewServer creates a new MCP server.
func NewServer(classifier *service.ClassifierService, port string) *Server {
	return &Server{
		classifier: classifier,
		port:       port,
	}
}

// Tool represents an MCP tool definition.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC error.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string { return e.Message }

// Handler returns the HTTP handler serving the MCP endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", s.handleRPC)
	mux.HandleFunc("/mcp/sse", s.handleSSE)
	return mux
}

// Start begins the MCP server on the configured port.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("MCP server starting", "port", s.port)
	return srv.ListenAndServe()
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, nil, codeParseError, "parse error")
		return
	}

	var result interface{}
	var err error

	switch req.Method {
	case "tools/list":
		result = s.listTools()
	case "tools/call":
		result, err = s.callTool(r.Context(), req.Params)
	case "initialize":
		result = map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"serverInfo": map[string]string{
				"name":    "clip-classifier",
				"version": "1.0.0",
			},
			"capabilities": map[string]interface{}{
				"tools": map[string]bool{"listChanged": false},
			},
		}
	default:
		writeError(w, req.ID, codeMethodNotFound, "method not found")
		return
	}

	if err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) {
			writeError(w, req.ID, rpcErr.Code, rpcErr.Message)
			return
		}
		writeError(w, req.ID, codeInternalError, err.Error())
		return
	}

	writeResult(w, req.ID, result)
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: endpoint\ndata: /mcp\n\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	<-r.Context().Done()
}

func (s *Server) listTools() map[string]interface{} {
	tools := []Tool{
		{
			Name:        "classify_image",
			Description: "Classify an image against a label set with CLIP and return scores, near-duplicates and enrichment",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"image_base64": {"type": "string", "description": "Base64-encoded image bytes"},
					"labels": {"type": "array", "items": {"type": "string"}, "description": "Candidate labels (defaults when omitted)"},
					"theme": {"type": "string", "description": "Theme used for adaptive scoring"},
					"asset_id": {"type": "string", "description": "Caller asset identifier"},
					"nsfw_threshold": {"type": "number", "description": "NSFW decision threshold"},
					"asset_sha256": {"type": "string", "description": "SHA-256 hex of the image, used as its cache key"},
					"similar_threshold": {"type": "number", "description": "Minimum cosine similarity for near-duplicates"},
					"similar_limit": {"type": "integer", "description": "Maximum near-duplicates returned"}
				},
				"required": ["image_base64"]
			}`),
		},
		{
			Name:        "register_feedback",
			Description: "Record whether an image was accepted for a theme",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"image_hash": {"type": "string", "description": "SHA-256 hex of the image"},
					"theme": {"type": "string", "description": "Theme name"},
					"accepted": {"type": "boolean", "description": "Whether the image was accepted"},
					"asset_id": {"type": "string", "description": "Caller asset identifier"}
				},
				"required": ["image_hash", "theme", "accepted"]
			}`),
		},
		{
			Name:        "list_labels",
			Description: "List the default classification labels",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {}
			}`),
		},
	}
	return map[string]interface{}{"tools": tools}
}

func (s *Server) callTool(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var req struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, &RPCError{Code: codeInvalidParams, Message: "invalid params: " + err.Error()}
	}
	if len(req.Arguments) == 0 {
		req.Arguments = json.RawMessage(`{}`)
	}

	switch req.Name {
	case "classify_image":
		var args struct {
			ImageBase64      string   `json:"image_base64"`
			Labels           []string `json:"labels"`
			Theme            string   `json:"theme"`
			AssetID          string   `json:"asset_id"`
			NSFWThreshold    *float64 `json:"nsfw_threshold"`
			AssetSHA256      string   `json:"asset_sha256"`
			SimilarThreshold *float64 `json:"similar_threshold"`
			SimilarLimit     *int     `json:"similar_limit"`
		}
		if err := json.Unmarshal(req.Arguments, &args); err != nil {
			return nil, &RPCError{Code: codeInvalidParams, Message: "invalid arguments: " + err.Error()}
		}
		data, err := base64.StdEncoding.DecodeString(args.ImageBase64)
		if err != nil {
			return nil, &RPCError{Code: codeInvalidParams, Message: "image_base64 is not valid base64"}
		}

		result, err := s.classifier.Classify(ctx, service.ClassifyRequest{
			Image:            data,
			Labels:           args.Labels,
			Theme:            args.Theme,
			AssetID:          args.AssetID,
			NSFWThreshold:    args.NSFWThreshold,
			AssetSHA256:      args.AssetSHA256,
			SimilarThreshold: args.SimilarThreshold,
			SimilarLimit:     args.SimilarLimit,
		})
		if err != nil {
			return nil, toolError(err)
		}
		return textContent(result)

	case "register_feedback":
		var args domain.FeedbackEvent
		if err := json.Unmarshal(req.Arguments, &args); err != nil {
			return nil, &RPCError{Code: codeInvalidParams, Message: "invalid arguments: " + err.Error()}
		}
		if err := s.classifier.RegisterFeedback(ctx, args); err != nil {
			return nil, toolError(err)
		}
		return textContent(map[string]bool{"ok": true})

	case "list_labels":
		return textContent(map[string]interface{}{
			"default_labels": s.classifier.DefaultLabels(),
			"nsfw_threshold": s.classifier.NSFWThreshold(),
		})

	default:
		return nil, &RPCError{Code: codeMethodNotFound, Message: "unknown tool: " + req.Name}
	}
}

// toolError maps validation failures to invalid params.
func toolError(err error) error {
	for _, target := range []error{
		port.ErrEmptyImage, port.ErrInvalidImage, port.ErrEmptyLabels,
		port.ErrInvalidLabels, port.ErrInvalidFeedback,
	} {
		if errors.Is(err, target) {
			return &RPCError{Code: codeInvalidParams, Message: err.Error()}
		}
	}
	return err
}

func textContent(v interface{}) (interface{}, error) {
	text, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return map[string]interface{}{
		"content": []map[string]interface{}{
			{"type": "text", "text": string(text)},
		},
	}, nil
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: result}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func writeError(w http.ResponseWriter, id interface{}, code int, message string) {
	resp := JSONRPCResponse{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: code, Message: message}}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
