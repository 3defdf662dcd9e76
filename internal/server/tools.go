package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// pointsSchema describes a list of [x, y] pairs in image pixels.
var pointsSchema = map[string]interface{}{
	"type":        "array",
	"description": "Vertices as [x, y] pairs in image pixels",
	"items": map[string]interface{}{
		"type":     "array",
		"items":    map[string]interface{}{"type": "number"},
		"minItems": 2,
		"maxItems": 2,
	},
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Documents
		{
			Name:        "annotation_open",
			Description: "Open an image for annotation, or an existing annotation file. Existing annotations next to the image (same name, .json) are loaded. Shapes with missing fields are skipped and reported. Inference still running for the previous image is cancelled.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to an image or to a .json annotation file",
					},
					"annotation_path": map[string]interface{}{
						"type":        "string",
						"description": "Optional annotation file to read and save to. Defaults to the image path with a .json extension",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "annotation_save",
			Description: "Save the shapes of the open image to its annotation file (labelme-compatible JSON).",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Optional destination. Defaults to the file the annotations were opened from",
					},
				},
			},
		},

		// Shapes
		{
			Name:        "shape_list",
			Description: "List the shapes of the open image in z-order (last is topmost) with their resolved colours.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"ids": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "integer"},
						"description": "Optional shape ids to return",
					},
					"label": map[string]interface{}{
						"type":        "string",
						"description": "Optional label filter",
					},
				},
			},
		},
		{
			Name:        "shape_add",
			Description: "Add a shape. Rectangles take two opposite corners, circles the centre and a rim point, lines two points, points one, polygons at least three. Coordinates are clamped to the image.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"shape_type": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"polygon", "rectangle", "circle", "line", "point", "linestrip"},
						"description": "Shape type",
					},
					"points": pointsSchema,
					"label": map[string]interface{}{
						"type":        "string",
						"description": "Shape label",
					},
					"group_id": map[string]interface{}{
						"type":        "integer",
						"description": "Optional group id; grouped shapes are dragged together",
					},
					"description": map[string]interface{}{
						"type":        "string",
						"description": "Optional free text",
					},
					"line_color": map[string]interface{}{
						"type":        "string",
						"description": "Optional line colour override, #RRGGBB or #RRGGBBAA",
					},
					"fill_color": map[string]interface{}{
						"type":        "string",
						"description": "Optional fill colour override, #RRGGBB or #RRGGBBAA",
					},
					"hidden": map[string]interface{}{
						"type":        "boolean",
						"description": "Create the shape hidden",
					},
					"locked": map[string]interface{}{
						"type":        "boolean",
						"description": "Create the shape locked",
					},
				},
				"required": []string{"shape_type", "points", "label"},
			},
		},
		{
			Name:        "shape_delete",
			Description: "Delete shapes. All of them are removed as one undo step.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"ids": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "integer"},
						"description": "Shape ids to delete",
					},
				},
				"required": []string{"ids"},
			},
		},
		{
			Name:        "shape_update",
			Description: "Change properties of one shape as a single undo step. Omitted properties are left alone. Geometry edits are refused on locked shapes unless the same call unlocks them.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"id": map[string]interface{}{
						"type":        "integer",
						"description": "Shape id",
					},
					"label": map[string]interface{}{
						"type":        "string",
						"description": "New label",
					},
					"description": map[string]interface{}{
						"type":        "string",
						"description": "New description",
					},
					"group_id": map[string]interface{}{
						"type":        "integer",
						"description": "New group id",
					},
					"ungroup": map[string]interface{}{
						"type":        "boolean",
						"description": "Remove the shape from its group",
					},
					"visible": map[string]interface{}{
						"type":        "boolean",
						"description": "Show or hide the shape",
					},
					"locked": map[string]interface{}{
						"type":        "boolean",
						"description": "Lock or unlock the shape",
					},
					"line_color": map[string]interface{}{
						"type":        "string",
						"description": "Line colour override; empty string restores the label colour",
					},
					"fill_color": map[string]interface{}{
						"type":        "string",
						"description": "Fill colour override; empty string restores the label colour",
					},
					"points": pointsSchema,
					"dx": map[string]interface{}{
						"type":        "number",
						"description": "Move the shape by this many pixels horizontally",
					},
					"dy": map[string]interface{}{
						"type":        "number",
						"description": "Move the shape by this many pixels vertically",
					},
				},
				"required": []string{"id"},
			},
		},
		{
			Name:        "shape_vertex",
			Description: "Move, insert or remove one vertex. Removing a vertex that would leave a polygon with fewer than three is refused.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"id": map[string]interface{}{
						"type":        "integer",
						"description": "Shape id",
					},
					"op": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"move", "insert", "remove"},
						"description": "Vertex operation",
					},
					"index": map[string]interface{}{
						"type":        "integer",
						"description": "Vertex index (0-based). Insert places the new vertex at this index",
					},
					"x": map[string]interface{}{
						"type":        "number",
						"description": "X coordinate for move and insert",
					},
					"y": map[string]interface{}{
						"type":        "number",
						"description": "Y coordinate for move and insert",
					},
				},
				"required": []string{"id", "op", "index"},
			},
		},

		// Canvas
		{
			Name:        "canvas_tool",
			Description: "Select the pointer tool: \"edit\" to select and drag shapes, or a shape type to draw new shapes with a preset label.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"tool": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"edit", "polygon", "rectangle", "circle", "line", "point", "linestrip"},
						"description": "Tool name",
					},
					"label": map[string]interface{}{
						"type":        "string",
						"description": "Label for drawn shapes",
					},
				},
				"required": []string{"tool"},
			},
		},
		{
			Name:        "canvas_pointer",
			Description: "Send a pointer event in screen coordinates. Drags only update the preview; one edit is recorded when the gesture completes.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"action": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"down", "move", "up", "click"},
						"description": "Pointer action; click is down followed by up",
					},
					"x": map[string]interface{}{
						"type":        "number",
						"description": "Screen X",
					},
					"y": map[string]interface{}{
						"type":        "number",
						"description": "Screen Y",
					},
					"shift": map[string]interface{}{
						"type":        "boolean",
						"description": "Shift held (add to selection)",
					},
					"ctrl": map[string]interface{}{
						"type":        "boolean",
						"description": "Ctrl held (toggle selection)",
					},
					"pan": map[string]interface{}{
						"type":        "boolean",
						"description": "Middle button or space held: drag the viewport instead of editing",
					},
				},
				"required": []string{"action", "x", "y"},
			},
		},
		{
			Name:        "canvas_key",
			Description: "Send a key: escape cancels the gesture or clears the selection, enter finishes a polygon or line strip, backspace removes the last drawn vertex, delete removes the selected shapes.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"key": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"escape", "enter", "backspace", "delete"},
						"description": "Key name",
					},
				},
				"required": []string{"key"},
			},
		},
		{
			Name:        "canvas_viewport",
			Description: "Set the zoom factor and the screen position of the image origin. Hit tolerances are screen pixels.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"zoom": map[string]interface{}{
						"type":        "number",
						"description": "Zoom factor, greater than 0",
					},
					"pan_x": map[string]interface{}{
						"type":        "number",
						"description": "Screen X of the image origin",
					},
					"pan_y": map[string]interface{}{
						"type":        "number",
						"description": "Screen Y of the image origin",
					},
				},
				"required": []string{"zoom"},
			},
		},
		{
			Name:        "canvas_state",
			Description: "Get the canvas mode, tool, selection, viewport, gesture preview and undo state.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "hit_test",
			Description: "Find the topmost shape, vertex or edge under a screen point.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"x": map[string]interface{}{
						"type":        "number",
						"description": "Screen X",
					},
					"y": map[string]interface{}{
						"type":        "number",
						"description": "Screen Y",
					},
					"purpose": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"edit", "display"},
						"description": "edit skips locked shapes; display includes them. Default edit",
						"default":     "edit",
					},
				},
				"required": []string{"x", "y"},
			},
		},
		{
			Name:        "select_rect",
			Description: "Select the shapes inside (contain) or overlapping (touch) a rectangle in image coordinates.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"x1": map[string]interface{}{
						"type":        "number",
						"description": "First corner X",
					},
					"y1": map[string]interface{}{
						"type":        "number",
						"description": "First corner Y",
					},
					"x2": map[string]interface{}{
						"type":        "number",
						"description": "Opposite corner X",
					},
					"y2": map[string]interface{}{
						"type":        "number",
						"description": "Opposite corner Y",
					},
					"policy": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"contain", "touch"},
						"description": "Selection policy. Defaults to the configured policy",
					},
					"add": map[string]interface{}{
						"type":        "boolean",
						"description": "Add to the current selection instead of replacing it",
					},
				},
				"required": []string{"x1", "y1", "x2", "y2"},
			},
		},
		{
			Name:        "shape_clipboard",
			Description: "Copy the selected shapes, paste the copied shapes, or duplicate the selection. Paste and duplicate add offset copies as one undoable step and select them.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"action": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"copy", "paste", "duplicate"},
						"description": "Clipboard action",
					},
					"ids": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "integer"},
						"description": "Select these shapes first (copy and duplicate)",
					},
				},
				"required": []string{"action"},
			},
		},

		// History
		{
			Name:        "edit_undo",
			Description: "Undo the last edit. Does nothing when there is nothing to undo.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "edit_redo",
			Description: "Redo the last undone edit. Does nothing when there is nothing to redo.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},

		// Assisted annotation
		{
			Name:        "ai_models",
			Description: "List the configured detection models.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "ai_detect",
			Description: "Run a detection model on the open image (or a region) in the background. Proposals above the threshold that do not duplicate existing shapes are added as one undo step when the task finishes; a notification reports the result. Set wait to block until then.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"model": map[string]interface{}{
						"type":        "string",
						"description": "Model id from ai_models. Defaults to the configured default model",
					},
					"x1": map[string]interface{}{
						"type":        "number",
						"description": "Optional region left edge",
					},
					"y1": map[string]interface{}{
						"type":        "number",
						"description": "Optional region top edge",
					},
					"x2": map[string]interface{}{
						"type":        "number",
						"description": "Optional region right edge",
					},
					"y2": map[string]interface{}{
						"type":        "number",
						"description": "Optional region bottom edge",
					},
					"threshold": map[string]interface{}{
						"type":        "number",
						"description": "Confidence threshold (0.0 to 1.0). Defaults to the configured threshold",
					},
					"prompts": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string"},
						"description": "Text prompts for open-vocabulary models",
					},
					"classes": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string"},
						"description": "Only keep these classes",
					},
					"wait": map[string]interface{}{
						"type":        "boolean",
						"description": "Wait for the result instead of returning the task id at once",
					},
				},
			},
		},
		{
			Name:        "ai_cancel",
			Description: "Cancel a running detection task, or all of them. A cancelled task adds no shapes even if its result arrives later.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"task_id": map[string]interface{}{
						"type":        "string",
						"description": "Task id from ai_detect. Omit to cancel every running task",
					},
				},
			},
		},
		{
			Name:        "ai_status",
			Description: "Report detection tasks and the shapes each finished task added.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"task_id": map[string]interface{}{
						"type":        "string",
						"description": "Optional task id. Omit to list every task",
					},
				},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
