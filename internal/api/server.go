// Package api handles HTTP and WebSocket API endpoints
package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/thereceipt/label-engine/internal/command"
	"github.com/thereceipt/label-engine/internal/editor"
	"github.com/thereceipt/label-engine/internal/engine"
	"github.com/thereceipt/label-engine/internal/export"
	"github.com/thereceipt/label-engine/internal/jobs"
	"github.com/thereceipt/label-engine/pkg/labelformat"
)

// Server is the API server
type Server struct {
	router   *gin.Engine
	engine   *engine.Engine
	executor *command.Executor
	upgrader websocket.Upgrader
	log      *slog.Logger

	// Serializes multi-step session requests
	sessionMu sync.Mutex

	clients   map[*WSClient]bool
	clientsMu sync.RWMutex
}

// NewServer creates a new API server
func NewServer(e *engine.Engine, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	server := &Server{
		router:   router,
		engine:   e,
		executor: command.NewExecutor(e),
		log:      logger,
		clients:  make(map[*WSClient]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	server.setupRoutes()
	e.Subscribe(server.broadcast)

	return server
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/templates", s.handleGetTemplates)
	s.router.POST("/templates", s.handleAddTemplate)
	s.router.GET("/templates/:id", s.handleGetTemplate)
	s.router.POST("/templates/:id/name", s.handleSetTemplateName)
	s.router.DELETE("/templates/:id", s.handleRemoveTemplate)

	session := s.router.Group("/session")
	session.GET("", s.handleGetSession)
	session.POST("/load", s.handleLoadSession)
	session.POST("/objects", s.handleAddObject)
	session.PATCH("/objects/:id", s.handleModifyObject)
	session.DELETE("/objects/:id", s.handleRemoveObject)
	session.POST("/objects/:id/:action", s.handleObjectAction)
	session.POST("/undo", s.handleUndo)
	session.POST("/redo", s.handleRedo)
	session.POST("/save", s.handleSaveSession)
	session.PUT("/records", s.handleSetRecords)
	session.GET("/preview", s.handlePreview)

	s.router.POST("/exports", s.handleCreateExport)
	s.router.GET("/exports", s.handleGetExports)
	s.router.GET("/exports/:id", s.handleGetExport)
	s.router.POST("/exports/:id/cancel", s.handleCancelExport)
	s.router.GET("/exports/:id/download", s.handleDownloadExport)
	s.router.DELETE("/exports/completed", s.handleClearExports)

	s.router.POST("/command", s.handleCommand)
	s.router.GET("/ws", s.handleWebSocket)

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
}

// templateSource is a template given inline, by path or by URL
type templateSource struct {
	Template *labelformat.Template `json:"template"`
	Path     string                `json:"path"`
	URL      string                `json:"url"`
}

func (src templateSource) load() (*labelformat.Template, error) {
	switch {
	case src.URL != "":
		return engine.ReadTemplate(src.URL)
	case src.Path != "":
		return engine.ReadTemplate(src.Path)
	case src.Template != nil:
		labelformat.Normalize(src.Template)
		return src.Template, nil
	default:
		return nil, errors.New("template, path, or url is required")
	}
}

func (s *Server) handleGetTemplates(c *gin.Context) {
	c.JSON(200, gin.H{"templates": s.engine.Registry.GetAll()})
}

func (s *Server) handleAddTemplate(c *gin.Context) {
	var req templateSource
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	tpl, err := req.load()
	if err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	entry, err := s.engine.AddTemplate(tpl)
	if err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	c.JSON(200, gin.H{"success": true, "template": entry})
}

func (s *Server) handleGetTemplate(c *gin.Context) {
	id := c.Param("id")
	entry := s.engine.Registry.GetEntry(id)
	if entry == nil {
		c.JSON(404, gin.H{"error": "template not found"})
		return
	}

	tpl, err := s.engine.Registry.Get(id)
	if err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}

	c.JSON(200, gin.H{"entry": entry, "template": tpl})
}

func (s *Server) handleSetTemplateName(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "name is required"})
		return
	}

	if err := s.engine.Registry.SetName(c.Param("id"), req.Name); err != nil {
		c.JSON(404, gin.H{"error": err.Error()})
		return
	}

	c.JSON(200, gin.H{"success": true})
}

func (s *Server) handleRemoveTemplate(c *gin.Context) {
	if !s.engine.RemoveTemplate(c.Param("id")) {
		c.JSON(404, gin.H{"error": "template not found"})
		return
	}
	c.JSON(200, gin.H{"success": true})
}

func (s *Server) sessionResponse() gin.H {
	return gin.H{
		"session":  s.engine.Session.Status(),
		"template": s.engine.Session.Template(),
	}
}

func (s *Server) handleGetSession(c *gin.Context) {
	c.JSON(200, s.sessionResponse())
}

func (s *Server) handleLoadSession(c *gin.Context) {
	var req struct {
		templateSource
		ID string `json:"id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	if req.ID != "" {
		if s.engine.Registry.GetEntry(req.ID) == nil {
			c.JSON(404, gin.H{"error": "template not found"})
			return
		}
		if err := s.engine.OpenTemplate(req.ID); err != nil {
			c.JSON(500, gin.H{"error": err.Error()})
			return
		}
	} else {
		tpl, err := req.load()
		if err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		if err := s.engine.LoadTemplate(tpl); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
	}

	c.JSON(200, s.sessionResponse())
}

func (s *Server) handleAddObject(c *gin.Context) {
	var obj labelformat.Object
	if err := c.ShouldBindJSON(&obj); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	id, err := s.engine.Session.Add(obj)
	if err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	c.JSON(200, gin.H{"success": true, "object_id": id})
}

func (s *Server) handleModifyObject(c *gin.Context) {
	var patch editor.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	id := c.Param("id")
	if _, ok := s.engine.Session.Object(id); !ok {
		c.JSON(404, gin.H{"error": "object not found"})
		return
	}
	if err := s.engine.Session.Modify(id, patch); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	obj, _ := s.engine.Session.Object(id)
	c.JSON(200, gin.H{"success": true, "object": obj})
}

func (s *Server) handleRemoveObject(c *gin.Context) {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	if err := s.engine.Session.Remove(c.Param("id")); err != nil {
		c.JSON(404, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, gin.H{"success": true})
}

func (s *Server) handleObjectAction(c *gin.Context) {
	id, action := c.Param("id"), c.Param("action")

	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	if _, ok := s.engine.Session.Object(id); !ok {
		c.JSON(404, gin.H{"error": "object not found"})
		return
	}

	session := s.engine.Session
	var err error
	resp := gin.H{"success": true}

	switch action {
	case "front":
		err = session.BringToFront(id)
	case "back":
		err = session.SendToBack(id)
	case "duplicate":
		var newID string
		newID, err = session.Duplicate(id)
		resp["object_id"] = newID
	case "upper", "lower":
		err = session.ChangeCase(id, action)
	default:
		c.JSON(400, gin.H{"error": fmt.Sprintf("unknown action: %s", action)})
		return
	}

	if err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, resp)
}

func (s *Server) handleUndo(c *gin.Context) {
	s.handleHistory(c, s.engine.Session.Undo)
}

func (s *Server) handleRedo(c *gin.Context) {
	s.handleHistory(c, s.engine.Session.Redo)
}

func (s *Server) handleHistory(c *gin.Context, step func() (bool, error)) {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	moved, err := step()
	if err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}

	resp := s.sessionResponse()
	resp["moved"] = moved
	c.JSON(200, resp)
}

func (s *Server) handleSaveSession(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	// The body is optional
	_ = c.ShouldBindJSON(&req)

	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	entry, err := s.engine.SaveSession(req.Name)
	if err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, gin.H{"success": true, "template": entry})
}

func (s *Server) handleSetRecords(c *gin.Context) {
	var req struct {
		Records        []labelformat.Record `json:"records"`
		Path           string               `json:"path"`
		QRColumn       string               `json:"qr_column"`
		FilenameColumn string               `json:"filename_column"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	columns := []string{}
	if req.Path != "" {
		set, err := s.engine.LoadRecords(req.Path)
		if err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		columns = set.Columns
	} else {
		s.engine.SetRecords(req.Records)
	}
	if req.QRColumn != "" || req.FilenameColumn != "" {
		s.engine.Session.SetColumns(req.QRColumn, req.FilenameColumn)
	}

	c.JSON(200, gin.H{
		"success": true,
		"records": len(s.engine.Session.Records()),
		"columns": columns,
	})
}

func (s *Server) handlePreview(c *gin.Context) {
	width, _ := strconv.Atoi(c.Query("width"))

	data, err := s.engine.Preview(width)
	if err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	c.Data(200, "image/png", data)
}

func (s *Server) handleCreateExport(c *gin.Context) {
	var req engine.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	id, err := s.engine.SubmitExport(req)
	if err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	c.JSON(202, gin.H{"success": true, "job_id": id})
}

func (s *Server) handleGetExports(c *gin.Context) {
	c.JSON(200, gin.H{"jobs": s.engine.Queue.GetAllJobs()})
}

func (s *Server) handleGetExport(c *gin.Context) {
	job := s.engine.Queue.GetJob(c.Param("id"))
	if job == nil {
		c.JSON(404, gin.H{"error": "job not found"})
		return
	}
	c.JSON(200, job)
}

func (s *Server) handleCancelExport(c *gin.Context) {
	if err := s.engine.Queue.Cancel(c.Param("id")); err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			c.JSON(404, gin.H{"error": err.Error()})
			return
		}
		c.JSON(409, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, gin.H{"success": true})
}

func (s *Server) handleDownloadExport(c *gin.Context) {
	out, err := s.engine.Queue.Output(c.Param("id"))
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			c.JSON(404, gin.H{"error": err.Error()})
			return
		}
		c.JSON(409, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.FileName))
	c.Data(200, export.ContentType(out.FileName), out.Data)
}

func (s *Server) handleClearExports(c *gin.Context) {
	n := s.engine.Queue.ClearCompleted()
	c.JSON(200, gin.H{"success": true, "cleared": n})
}

// handleCommand handles command execution requests
func (s *Server) handleCommand(c *gin.Context) {
	var req struct {
		Command string `json:"command" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "command is required"})
		return
	}

	s.sessionMu.Lock()
	result := s.executor.Execute(req.Command)
	s.sessionMu.Unlock()

	if !result.Success {
		c.JSON(400, gin.H{
			"success": false,
			"error":   result.Error,
		})
		return
	}

	response := gin.H{"success": true}
	if result.Message != "" {
		response["message"] = result.Message
	}
	for k, v := range result.Data {
		response[k] = v
	}
	c.JSON(200, response)
}

// Run starts the API server
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
