package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ironsheep/annotation-tools-mcp/internal/annotation"
	"github.com/ironsheep/annotation-tools-mcp/internal/assist"
	"github.com/ironsheep/annotation-tools-mcp/internal/canvas"
	"github.com/ironsheep/annotation-tools-mcp/internal/geometry"
	"github.com/ironsheep/annotation-tools-mcp/internal/selection"
	"github.com/ironsheep/annotation-tools-mcp/internal/session"
	"github.com/ironsheep/annotation-tools-mcp/internal/shape"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "shape_add", "ai_detect").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}
	if len(params.Arguments) == 0 {
		params.Arguments = json.RawMessage("{}")
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Documents
	case "annotation_open":
		return s.handleAnnotationOpen(args)
	case "annotation_save":
		return s.handleAnnotationSave(args)

	// Shapes
	case "shape_list":
		return s.handleShapeList(args)
	case "shape_add":
		return s.handleShapeAdd(args)
	case "shape_delete":
		return s.handleShapeDelete(args)
	case "shape_update":
		return s.handleShapeUpdate(args)
	case "shape_vertex":
		return s.handleShapeVertex(args)

	// Canvas
	case "canvas_tool":
		return s.handleCanvasTool(args)
	case "canvas_pointer":
		return s.handleCanvasPointer(args)
	case "canvas_key":
		return s.handleCanvasKey(args)
	case "canvas_viewport":
		return s.handleCanvasViewport(args)
	case "canvas_state":
		return s.session.Canvas().State(), nil
	case "hit_test":
		return s.handleHitTest(args)
	case "select_rect":
		return s.handleSelectRect(args)
	case "shape_clipboard":
		return s.handleShapeClipboard(args)

	// History
	case "edit_undo":
		return s.history(s.session.Undo)
	case "edit_redo":
		return s.history(s.session.Redo)

	// Assisted annotation
	case "ai_models":
		return s.handleAIModels()
	case "ai_detect":
		return s.handleAIDetect(ctx, args)
	case "ai_cancel":
		return s.handleAICancel(args)
	case "ai_status":
		return s.handleAIStatus(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func toPoints(pairs [][2]float64) []geometry.Point {
	if pairs == nil {
		return nil
	}
	pts := make([]geometry.Point, len(pairs))
	for i, p := range pairs {
		pts[i] = geometry.Pt(p[0], p[1])
	}
	return pts
}

// === Document Handlers ===

type annotationOpenArgs struct {
	Path           string `json:"path"`
	AnnotationPath string `json:"annotation_path"`
}

func (s *Server) handleAnnotationOpen(args json.RawMessage) (interface{}, error) {
	var a annotationOpenArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, errors.New("path is required")
	}
	return s.session.Open(a.Path, a.AnnotationPath)
}

type annotationSaveArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleAnnotationSave(args json.RawMessage) (interface{}, error) {
	var a annotationSaveArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	path, err := s.session.Save(a.Path)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"path":   path,
		"shapes": s.session.Document().Len(),
	}, nil
}

// === Shape Handlers ===

type shapeListArgs struct {
	IDs   []int  `json:"ids"`
	Label string `json:"label"`
}

func (s *Server) handleShapeList(args json.RawMessage) (interface{}, error) {
	var a shapeListArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	want := make(map[int]bool, len(a.IDs))
	for _, id := range a.IDs {
		want[id] = true
	}
	shapes := []session.ResolvedShape{}
	for _, sh := range s.session.Shapes() {
		if len(want) > 0 && !want[sh.ID] {
			continue
		}
		if a.Label != "" && sh.Label != a.Label {
			continue
		}
		shapes = append(shapes, sh)
	}
	return map[string]interface{}{
		"image":  s.session.Document().Image(),
		"count":  len(shapes),
		"shapes": shapes,
		"dirty":  s.session.Engine().Dirty(),
	}, nil
}

type shapeAddArgs struct {
	Type        string       `json:"shape_type"`
	Points      [][2]float64 `json:"points"`
	Label       string       `json:"label"`
	GroupID     *int         `json:"group_id"`
	Description string       `json:"description"`
	LineColor   string       `json:"line_color"`
	FillColor   string       `json:"fill_color"`
	Hidden      bool         `json:"hidden"`
	Locked      bool         `json:"locked"`
}

func (s *Server) handleShapeAdd(args json.RawMessage) (interface{}, error) {
	var a shapeAddArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	id, err := s.session.AddShape(session.NewShape{
		Type:        a.Type,
		Points:      toPoints(a.Points),
		Label:       a.Label,
		GroupID:     a.GroupID,
		Description: a.Description,
		LineColor:   a.LineColor,
		FillColor:   a.FillColor,
		Hidden:      a.Hidden,
		Locked:      a.Locked,
	})
	if err != nil {
		return nil, err
	}
	sh, _ := s.session.Document().Shape(id)
	return map[string]interface{}{
		"id":    id,
		"shape": sh,
	}, nil
}

type shapeDeleteArgs struct {
	IDs []int `json:"ids"`
}

func (s *Server) handleShapeDelete(args json.RawMessage) (interface{}, error) {
	var a shapeDeleteArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if err := s.session.DeleteShapes(a.IDs...); err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"deleted": a.IDs,
		"shapes":  s.session.Document().Len(),
	}, nil
}

type shapeUpdateArgs struct {
	ID          int          `json:"id"`
	Label       *string      `json:"label"`
	Description *string      `json:"description"`
	GroupID     *int         `json:"group_id"`
	Ungroup     bool         `json:"ungroup"`
	Visible     *bool        `json:"visible"`
	Locked      *bool        `json:"locked"`
	LineColor   *string      `json:"line_color"`
	FillColor   *string      `json:"fill_color"`
	Points      [][2]float64 `json:"points"`
	DX          float64      `json:"dx"`
	DY          float64      `json:"dy"`
}

func (s *Server) handleShapeUpdate(args json.RawMessage) (interface{}, error) {
	var a shapeUpdateArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	u := session.ShapeUpdate{
		Label:       a.Label,
		Description: a.Description,
		GroupID:     a.GroupID,
		Ungroup:     a.Ungroup,
		Visible:     a.Visible,
		Locked:      a.Locked,
		LineColor:   a.LineColor,
		FillColor:   a.FillColor,
		Points:      toPoints(a.Points),
	}
	if a.DX != 0 || a.DY != 0 {
		d := geometry.Pt(a.DX, a.DY)
		u.Move = &d
	}
	err := s.session.UpdateShape(a.ID, u)
	if err != nil && !errors.Is(err, annotation.ErrNoChange) {
		return nil, err
	}
	sh, _ := s.session.Document().Shape(a.ID)
	return map[string]interface{}{
		"changed": err == nil,
		"shape":   sh,
	}, nil
}

type shapeVertexArgs struct {
	ID    int     `json:"id"`
	Op    string  `json:"op"`
	Index int     `json:"index"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

func (s *Server) handleShapeVertex(args json.RawMessage) (interface{}, error) {
	var a shapeVertexArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	err := s.session.EditVertex(a.ID, session.VertexOp(a.Op), a.Index, geometry.Pt(a.X, a.Y))
	if err != nil && !errors.Is(err, annotation.ErrNoChange) {
		return nil, err
	}
	sh, _ := s.session.Document().Shape(a.ID)
	return map[string]interface{}{
		"changed": err == nil,
		"shape":   sh,
	}, nil
}

// === Canvas Handlers ===

type canvasToolArgs struct {
	Tool  string `json:"tool"`
	Label string `json:"label"`
}

func (s *Server) handleCanvasTool(args json.RawMessage) (interface{}, error) {
	var a canvasToolArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	tool := canvas.EditTool()
	if a.Tool != "edit" {
		t, err := shape.ParseType(a.Tool)
		if err != nil {
			return nil, err
		}
		tool = canvas.CreateTool(t, a.Label)
	}
	if err := s.session.Canvas().SetTool(tool); err != nil {
		return nil, err
	}
	return s.session.Canvas().State(), nil
}

type canvasPointerArgs struct {
	Action string  `json:"action"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Shift  bool    `json:"shift"`
	Ctrl   bool    `json:"ctrl"`
	Pan    bool    `json:"pan"`
}

func (s *Server) handleCanvasPointer(args json.RawMessage) (interface{}, error) {
	var a canvasPointerArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if !s.session.IsOpen() {
		return nil, session.ErrNoDocument
	}
	var mods canvas.Modifiers
	if a.Shift {
		mods |= canvas.ModShift
	}
	if a.Ctrl {
		mods |= canvas.ModCtrl
	}
	if a.Pan {
		mods |= canvas.ModPan
	}

	c := s.session.Canvas()
	p := geometry.Pt(a.X, a.Y)
	var err error
	switch a.Action {
	case "down":
		err = c.PointerDown(p, mods)
	case "move":
		err = c.PointerMove(p, mods)
	case "up":
		err = c.PointerUp(p, mods)
	case "click":
		if err = c.PointerDown(p, mods); err == nil {
			err = c.PointerUp(p, mods)
		}
	default:
		return nil, fmt.Errorf("unknown pointer action %q", a.Action)
	}
	if err != nil {
		return nil, err
	}
	return c.State(), nil
}

type canvasKeyArgs struct {
	Key string `json:"key"`
}

func (s *Server) handleCanvasKey(args json.RawMessage) (interface{}, error) {
	var a canvasKeyArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	k, err := canvas.ParseKey(a.Key)
	if err != nil {
		return nil, err
	}
	c := s.session.Canvas()
	if err := c.KeyPress(k); err != nil {
		return nil, err
	}
	return c.State(), nil
}

type canvasViewportArgs struct {
	Zoom float64 `json:"zoom"`
	PanX float64 `json:"pan_x"`
	PanY float64 `json:"pan_y"`
}

func (s *Server) handleCanvasViewport(args json.RawMessage) (interface{}, error) {
	var a canvasViewportArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	c := s.session.Canvas()
	if err := c.SetViewport(a.Zoom, geometry.Pt(a.PanX, a.PanY)); err != nil {
		return nil, err
	}
	return c.State(), nil
}

type hitTestArgs struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Purpose string  `json:"purpose"`
}

func (s *Server) handleHitTest(args json.RawMessage) (interface{}, error) {
	var a hitTestArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	purpose := selection.PurposeEdit
	switch a.Purpose {
	case "", "edit":
	case "display":
		purpose = selection.PurposeDisplay
	default:
		return nil, fmt.Errorf("unknown purpose %q", a.Purpose)
	}

	c := s.session.Canvas()
	screen := geometry.Pt(a.X, a.Y)
	hit, ok := c.HitTest(screen, purpose)
	result := map[string]interface{}{
		"hit":   ok,
		"image": c.ToImage(screen),
	}
	if ok {
		result["target"] = hit
		if sh, found := s.session.Document().Shape(hit.ShapeID); found {
			result["label"] = sh.Label
		}
	}
	return result, nil
}

type selectRectArgs struct {
	X1     float64 `json:"x1"`
	Y1     float64 `json:"y1"`
	X2     float64 `json:"x2"`
	Y2     float64 `json:"y2"`
	Policy string  `json:"policy"`
	Add    bool    `json:"add"`
}

func (s *Server) handleSelectRect(args json.RawMessage) (interface{}, error) {
	var a selectRectArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	c := s.session.Canvas()
	policy := c.Options().Policy
	if a.Policy != "" {
		p, err := selection.ParsePolicy(a.Policy)
		if err != nil {
			return nil, err
		}
		policy = p
	}

	band := geometry.RectFromPoints(geometry.Pt(a.X1, a.Y1), geometry.Pt(a.X2, a.Y2))
	ids := c.Index().SelectRect(band, policy, selection.PurposeEdit)
	if a.Add {
		ids = append(c.Selection(), ids...)
	}
	if err := c.SetSelection(ids); err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"policy":   policy,
		"selected": c.Selection(),
	}, nil
}

type shapeClipboardArgs struct {
	Action string `json:"action"`
	IDs    []int  `json:"ids"`
}

func (s *Server) handleShapeClipboard(args json.RawMessage) (interface{}, error) {
	var a shapeClipboardArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if !s.session.IsOpen() {
		return nil, session.ErrNoDocument
	}
	c := s.session.Canvas()
	if len(a.IDs) > 0 {
		if err := c.SetSelection(a.IDs); err != nil {
			return nil, err
		}
	}

	switch a.Action {
	case "copy":
		n, err := c.Copy()
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"copied": n}, nil
	case "paste", "duplicate":
		paste := c.Paste
		if a.Action == "duplicate" {
			paste = c.Duplicate
		}
		ids, err := paste()
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"added":    ids,
			"selected": c.Selection(),
			"can_undo": s.session.Engine().CanUndo(),
		}, nil
	}
	return nil, fmt.Errorf("unknown clipboard action %q", a.Action)
}

// === History Handlers ===

func (s *Server) history(step func() (string, bool)) (interface{}, error) {
	desc, ok := step()
	e := s.session.Engine()
	return map[string]interface{}{
		"done":        ok,
		"description": desc,
		"can_undo":    e.CanUndo(),
		"can_redo":    e.CanRedo(),
		"shapes":      s.session.Document().Len(),
	}, nil
}

// === Assisted Annotation Handlers ===

func (s *Server) handleAIModels() (interface{}, error) {
	return map[string]interface{}{
		"models":  s.session.Models(),
		"default": s.session.Config().Inference.DefaultModel,
	}, nil
}

type aiDetectArgs struct {
	Model     string   `json:"model"`
	X1        *float64 `json:"x1"`
	Y1        *float64 `json:"y1"`
	X2        *float64 `json:"x2"`
	Y2        *float64 `json:"y2"`
	Threshold *float64 `json:"threshold"`
	Prompts   []string `json:"prompts"`
	Classes   []string `json:"classes"`
	Wait      bool     `json:"wait"`
}

func (a aiDetectArgs) region() (*geometry.Rect, error) {
	n := 0
	for _, v := range []*float64{a.X1, a.Y1, a.X2, a.Y2} {
		if v != nil {
			n++
		}
	}
	switch n {
	case 0:
		return nil, nil
	case 4:
		r := geometry.RectFromPoints(geometry.Pt(*a.X1, *a.Y1), geometry.Pt(*a.X2, *a.Y2))
		return &r, nil
	}
	return nil, errors.New("a region needs all of x1, y1, x2 and y2")
}

func (s *Server) handleAIDetect(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a aiDetectArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	region, err := a.region()
	if err != nil {
		return nil, err
	}
	id, err := s.session.Detect(session.DetectRequest{
		Model:     a.Model,
		Region:    region,
		Threshold: a.Threshold,
		Prompts:   a.Prompts,
		Classes:   a.Classes,
	})
	if err != nil {
		return nil, err
	}
	if !a.Wait {
		return map[string]interface{}{
			"task_id": id,
			"status":  assist.StatusRunning,
		}, nil
	}

	// The task has its own timeout; the extra second covers delivery.
	ctx, cancel := context.WithTimeout(ctx, s.session.Config().Inference.Timeout+time.Second)
	defer cancel()
	return s.await(ctx, id)
}

// await applies outcomes until task id has been delivered.
func (s *Server) await(ctx context.Context, id string) (session.Delivery, error) {
	for {
		select {
		case out := <-s.session.Results():
			d := s.session.Deliver(out)
			s.deliver(d)
			if d.TaskID == id {
				return d, nil
			}
		case <-ctx.Done():
			s.session.Cancel(id)
			return session.Delivery{}, fmt.Errorf("waiting for task %s: %w", id, ctx.Err())
		}
	}
}

type aiTaskArgs struct {
	TaskID string `json:"task_id"`
}

func (s *Server) handleAICancel(args json.RawMessage) (interface{}, error) {
	var a aiTaskArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.TaskID == "" {
		return map[string]interface{}{"cancelled": s.session.CancelAll()}, nil
	}
	if _, err := s.session.Task(a.TaskID); err != nil {
		return nil, err
	}
	n := 0
	if s.session.Cancel(a.TaskID) {
		n = 1
	}
	return map[string]interface{}{"cancelled": n}, nil
}

// taskReport is a task with the outcome of its delivery, when it has one.
type taskReport struct {
	assist.Info
	Delivery *session.Delivery `json:"delivery,omitempty"`
}

func (s *Server) report(info assist.Info) taskReport {
	r := taskReport{Info: info}
	if d, ok := s.deliveries[info.ID]; ok {
		r.Delivery = &d
	}
	return r
}

func (s *Server) handleAIStatus(args json.RawMessage) (interface{}, error) {
	var a aiTaskArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.TaskID != "" {
		info, err := s.session.Task(a.TaskID)
		if err != nil {
			return nil, err
		}
		return s.report(info), nil
	}
	tasks := s.session.Tasks()
	reports := make([]taskReport, len(tasks))
	for i, info := range tasks {
		reports[i] = s.report(info)
	}
	return map[string]interface{}{"tasks": reports}, nil
}
