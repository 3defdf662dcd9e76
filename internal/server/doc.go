// Package server implements the MCP (Model Context Protocol) server for image
// annotation.
//
// This package provides a JSON-RPC 2.0 server that exposes an annotation
// session through the MCP protocol: shapes can be drawn and edited with
// pointer and key events or with direct shape tools, and detection models can
// propose shapes that are added as single undoable steps.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses and notifications on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Documents:
//   - annotation_open: Open an image or annotation file
//   - annotation_save: Write the labelme-compatible annotation file
//
// Shapes:
//   - shape_list, shape_add, shape_delete, shape_update, shape_vertex
//
// Canvas:
//   - canvas_tool: Choose the edit tool or a drawing tool
//   - canvas_pointer, canvas_key: Pointer and keyboard events
//   - canvas_viewport: Zoom and pan
//   - canvas_state: Mode, selection and gesture preview
//   - hit_test, select_rect: Point and rubber-band queries
//   - shape_clipboard: Copy, paste and duplicate of the selection
//
// History:
//   - edit_undo, edit_redo
//
// Assisted annotation:
//   - ai_models: Configured detection models
//   - ai_detect: Run a model in the background
//   - ai_cancel, ai_status: Manage running tasks
//
// # Threading
//
// The Serve loop is the only goroutine that touches the document. Detection
// runs on background goroutines; when a task finishes the loop validates the
// result against the open document, adds the accepted shapes and sends a
// notifications/message notification with the outcome. Results of cancelled
// tasks, or of tasks started for a different image, add nothing.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// # Usage
//
//	srv := server.New(sess, version)
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
