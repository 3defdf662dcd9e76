package server

import (
	"encoding/json"
	"testing"

	"github.com/ironsheep/annotation-tools-mcp/internal/shape"
)

func toolMap() map[string]Tool {
	m := make(map[string]Tool)
	for _, tool := range GetToolDefinitions() {
		m[tool.Name] = tool
	}
	return m
}

func TestGetToolDefinitions(t *testing.T) {
	tools := GetToolDefinitions()

	if len(tools) == 0 {
		t.Fatal("GetToolDefinitions returned empty slice")
	}

	expectedTools := []string{
		"annotation_open",
		"annotation_save",
		"shape_list",
		"shape_add",
		"shape_delete",
		"shape_update",
		"shape_vertex",
		"canvas_tool",
		"canvas_pointer",
		"canvas_key",
		"canvas_viewport",
		"canvas_state",
		"hit_test",
		"select_rect",
		"shape_clipboard",
		"edit_undo",
		"edit_redo",
		"ai_models",
		"ai_detect",
		"ai_cancel",
		"ai_status",
	}

	m := toolMap()
	for _, name := range expectedTools {
		if _, ok := m[name]; !ok {
			t.Errorf("Expected tool %s not found", name)
		}
	}
	if len(tools) != len(m) {
		t.Errorf("duplicate tool names: %d tools, %d unique", len(tools), len(m))
	}
}

func TestToolDefinitions_Structure(t *testing.T) {
	for _, tool := range GetToolDefinitions() {
		t.Run(tool.Name, func(t *testing.T) {
			if tool.Name == "" {
				t.Error("Tool name is empty")
			}
			if tool.Description == "" {
				t.Error("Tool description is empty")
			}
			if tool.InputSchema == nil {
				t.Fatal("Tool InputSchema is nil")
			}
			if tool.InputSchema["type"] != "object" {
				t.Errorf("InputSchema type: got %v, want 'object'", tool.InputSchema["type"])
			}
			props, ok := tool.InputSchema["properties"].(map[string]interface{})
			if !ok {
				t.Fatal("InputSchema properties should be a map")
			}

			// Every required parameter must be described.
			if required, ok := tool.InputSchema["required"]; ok {
				list, ok := required.([]string)
				if !ok {
					t.Fatal("'required' should be a string slice")
				}
				for _, r := range list {
					if _, ok := props[r]; !ok {
						t.Errorf("required parameter %q has no schema", r)
					}
				}
			}

			if _, err := json.Marshal(tool); err != nil {
				t.Errorf("tool does not marshal: %v", err)
			}
		})
	}
}

func TestToolDefinitions_Required(t *testing.T) {
	wantRequired := map[string][]string{
		"annotation_open": {"path"},
		"shape_add":       {"shape_type", "points", "label"},
		"shape_delete":    {"ids"},
		"shape_update":    {"id"},
		"shape_vertex":    {"id", "op", "index"},
		"canvas_pointer":  {"action", "x", "y"},
		"canvas_key":      {"key"},
		"select_rect":     {"x1", "y1", "x2", "y2"},
		"shape_clipboard": {"action"},
	}

	m := toolMap()
	for name, want := range wantRequired {
		t.Run(name, func(t *testing.T) {
			got, _ := m[name].InputSchema["required"].([]string)
			set := make(map[string]bool, len(got))
			for _, r := range got {
				set[r] = true
			}
			for _, r := range want {
				if !set[r] {
					t.Errorf("should require %q, got %v", r, got)
				}
			}
		})
	}
}

func TestToolDefinitions_DrawableTypes(t *testing.T) {
	// Every shape type offered for drawing must parse, and masks are never
	// offered because they only come from detection.
	for _, name := range []string{"shape_add", "canvas_tool"} {
		tool := toolMap()[name]
		props := tool.InputSchema["properties"].(map[string]interface{})
		key := "shape_type"
		if name == "canvas_tool" {
			key = "tool"
		}
		enum := props[key].(map[string]interface{})["enum"].([]string)
		for _, v := range enum {
			if v == "edit" {
				continue
			}
			typ, err := shape.ParseType(v)
			if err != nil {
				t.Errorf("%s: %q does not parse: %v", name, v, err)
			}
			if typ == shape.TypeMask {
				t.Errorf("%s: masks should not be drawable", name)
			}
		}
	}
}

func TestHandleToolsList(t *testing.T) {
	s := newTestServer(t, &fakeBackend{})
	req := &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
	}

	resp := s.handleToolsList(req)

	if resp == nil {
		t.Fatal("handleToolsList returned nil")
	}
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v", resp.Error)
	}

	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}
	toolsList, ok := result["tools"].([]Tool)
	if !ok {
		t.Fatal("tools should be a slice of Tool")
	}
	if expected := GetToolDefinitions(); len(toolsList) != len(expected) {
		t.Errorf("Tool count: got %d, want %d", len(toolsList), len(expected))
	}
}
