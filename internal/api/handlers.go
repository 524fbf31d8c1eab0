package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vodgrab/vodgrab/internal/catalog"
	"github.com/vodgrab/vodgrab/internal/download"
	"github.com/vodgrab/vodgrab/internal/model"
	"github.com/vodgrab/vodgrab/internal/platform"
)

// TaskFactory builds a download task for a descriptor. The server owns the
// wiring of resolvers and fetchers; handlers only hand over user input.
type TaskFactory func(descriptor model.ContentDescriptor, setup model.TaskSetup) *download.Task

type APIHandler struct {
	Catalog   *catalog.Client
	Scheduler *download.Scheduler
	NewTask   TaskFactory
}

type CreateTaskRequest struct {
	Kind         string `json:"kind" binding:"required"`
	ID           string `json:"id" binding:"required"`
	Title        string `json:"title"`
	Quality      string `json:"quality"`
	UnmuteVideo  bool   `json:"unmute_video"`
	UpdateTrack  bool   `json:"update_track"`
	MetadataOnly bool   `json:"metadata_only"`
	Priority     int    `json:"priority"`
}

type PriorityRequest struct {
	Priority int `json:"priority"`
}

type MaxConcurrentRequest struct {
	MaxConcurrent int `json:"max_concurrent" binding:"required"`
}

func RegisterHandlers(r *gin.Engine, cat *catalog.Client, sched *download.Scheduler, newTask TaskFactory) {
	h := &APIHandler{Catalog: cat, Scheduler: sched, NewTask: newTask}

	r.GET("/api/channels/:login", h.getChannel)
	r.GET("/api/channels/:login/videos", h.getChannelVideos)
	r.GET("/api/channels/:login/clips", h.getChannelClips)
	r.GET("/api/videos/:id", h.getVideo)
	r.GET("/api/clips/:slug", h.getClip)

	r.POST("/api/tasks", h.createTask)
	r.GET("/api/tasks", h.listTasks)
	r.GET("/api/tasks/:id", h.getTask)
	r.POST("/api/tasks/:id/pause", h.pauseTask)
	r.POST("/api/tasks/:id/resume", h.resumeTask)
	r.POST("/api/tasks/:id/cancel", h.cancelTask)
	r.POST("/api/tasks/:id/skip-waiting", h.skipWaiting)
	r.POST("/api/tasks/:id/reveal", h.revealTask)
	r.POST("/api/tasks/:id/open", h.openTask)
	r.PUT("/api/tasks/:id/priority", h.setPriority)

	r.PUT("/api/settings/max-concurrent", h.setMaxConcurrent)
}

// catalogStatus maps catalog error kinds onto HTTP status codes
func catalogStatus(err error) int {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrAuthorization):
		return http.StatusUnauthorized
	case errors.Is(err, catalog.ErrIntegrity):
		return http.StatusForbidden
	default:
		return http.StatusBadGateway
	}
}

func (h *APIHandler) getChannel(c *gin.Context) {
	channel, err := h.Catalog.GetChannel(c.Request.Context(), "", c.Param("login"))
	if err != nil {
		c.JSON(catalogStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, channel)
}

func (h *APIHandler) getVideo(c *gin.Context) {
	video, err := h.Catalog.GetVideo(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(catalogStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, video)
}

func (h *APIHandler) getClip(c *gin.Context) {
	clip, err := h.Catalog.GetClip(c.Request.Context(), c.Param("slug"))
	if err != nil {
		c.JSON(catalogStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, clip)
}

func (h *APIHandler) getChannelVideos(c *gin.Context) {
	limit, cursor := listParams(c)
	list, err := h.Catalog.GetChannelVideos(c.Request.Context(), c.Param("login"), limit, cursor)
	if err != nil {
		c.JSON(catalogStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *APIHandler) getChannelClips(c *gin.Context) {
	limit, cursor := listParams(c)
	list, err := h.Catalog.GetChannelClips(c.Request.Context(), c.Param("login"), limit, cursor)
	if err != nil {
		c.JSON(catalogStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, list)
}

func listParams(c *gin.Context) (int, string) {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		limit = 20
	}
	return limit, c.Query("cursor")
}

func (h *APIHandler) createTask(c *gin.Context) {
	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	kind := model.ContentKind(req.Kind)
	switch kind {
	case model.KindChannel, model.KindVideo, model.KindClip:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown content kind: " + req.Kind})
		return
	}

	descriptor := model.ContentDescriptor{
		Kind:             kind,
		ID:               req.ID,
		Title:            req.Title,
		RequestedQuality: req.Quality,
	}
	setup := model.NewTaskSetup(descriptor, req.UnmuteVideo, req.UpdateTrack, req.Priority)

	task := h.NewTask(descriptor, setup)
	if req.MetadataOnly {
		task.Status.SetDownloadSkip()
	}
	h.Scheduler.Enqueue(task)

	snapshot, _ := h.Scheduler.Snapshot(task.ID)
	c.JSON(http.StatusCreated, snapshot)
}

func (h *APIHandler) listTasks(c *gin.Context) {
	c.JSON(http.StatusOK, h.Scheduler.Snapshots())
}

func (h *APIHandler) getTask(c *gin.Context) {
	snapshot, ok := h.Scheduler.Snapshot(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (h *APIHandler) pauseTask(c *gin.Context) {
	if err := h.Scheduler.Pause(c.Param("id")); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *APIHandler) resumeTask(c *gin.Context) {
	if err := h.Scheduler.Resume(c.Param("id")); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *APIHandler) cancelTask(c *gin.Context) {
	if err := h.Scheduler.Cancel(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *APIHandler) skipWaiting(c *gin.Context) {
	if err := h.Scheduler.SkipWaiting(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// deliveredOutput returns a finished task's output path, or responds with
// the appropriate error status
func (h *APIHandler) deliveredOutput(c *gin.Context) (string, bool) {
	snapshot, ok := h.Scheduler.Snapshot(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return "", false
	}
	if snapshot.OutputPath == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "task has no delivered output"})
		return "", false
	}
	return snapshot.OutputPath, true
}

func (h *APIHandler) revealTask(c *gin.Context) {
	outputPath, ok := h.deliveredOutput(c)
	if !ok {
		return
	}
	if err := platform.OpenFileInManager(outputPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *APIHandler) openTask(c *gin.Context) {
	outputPath, ok := h.deliveredOutput(c)
	if !ok {
		return
	}
	if err := platform.OpenFileWithDefaultApp(outputPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *APIHandler) setPriority(c *gin.Context) {
	var req PriorityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.Scheduler.SetPriority(c.Param("id"), req.Priority); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *APIHandler) setMaxConcurrent(c *gin.Context) {
	var req MaxConcurrentRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.MaxConcurrent < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	h.Scheduler.SetMaxConcurrent(req.MaxConcurrent)
	c.Status(http.StatusNoContent)
}
