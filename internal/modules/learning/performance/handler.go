package performance

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/adforge/core/internal/middleware"
	"github.com/adforge/core/internal/pkg/response"
	"github.com/adforge/core/internal/pkg/taskqueue"
)

// Handler exposes the performance-reporting endpoint. Recording is
// asynchronous: the CRUD layer fires metrics at us and moves on, so the
// endpoint acknowledges with a task id and does the work in the background.
type Handler struct {
	svc    *Service
	tasks  *taskqueue.Service
	logger *zap.Logger
}

func NewHandler(svc *Service, tasks *taskqueue.Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, tasks: tasks, logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/performance", h.report)
}

type reportRequest struct {
	ContentID   string                 `json:"contentId" binding:"required"`
	Platform    string                 `json:"platform" binding:"required"`
	Language    string                 `json:"language" binding:"required"`
	ContentType string                 `json:"contentType" binding:"required"`
	Content     string                 `json:"content" binding:"required"`
	Metrics     Metrics                `json:"metrics" binding:"required"`
	RawMetrics  map[string]interface{} `json:"rawMetrics"`
}

func (h *Handler) report(c *gin.Context) {
	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	in := RecordInput{
		ContentID:   req.ContentID,
		UserID:      middleware.UserID(c),
		Platform:    req.Platform,
		Language:    req.Language,
		ContentType: req.ContentType,
		Content:     req.Content,
		Metrics:     req.Metrics,
		RawMetrics:  req.RawMetrics,
	}

	task, created, err := h.tasks.Enqueue(c.Request.Context(), "performance_record", in, req.ContentID)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if !created {
		// An identical report is already in flight; hand back its task.
		response.Accepted(c, gin.H{"taskId": task.ID, "status": task.Status})
		return
	}

	go h.execute(task.ID, in)

	response.Accepted(c, gin.H{"taskId": task.ID, "status": task.Status})
}

func (h *Handler) execute(taskID string, in RecordInput) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	_ = h.tasks.UpdateStatus(ctx, taskID, taskqueue.TaskRunning, nil, "")

	record, err := h.svc.Record(ctx, in)
	if err != nil {
		h.logger.Error("record performance",
			zap.String("task", taskID),
			zap.String("content_id", in.ContentID),
			zap.Error(err),
		)
		_ = h.tasks.UpdateStatus(ctx, taskID, taskqueue.TaskFailed, nil, err.Error())
		return
	}

	_ = h.tasks.UpdateStatus(ctx, taskID, taskqueue.TaskCompleted, gin.H{
		"recordId":         record.ID,
		"performanceScore": record.PerformanceScore,
		"degradedFeatures": record.DegradedFeatures,
	}, "")
}
