package credits

import (
	"github.com/gin-gonic/gin"

	"github.com/adforge/core/internal/middleware"
	"github.com/adforge/core/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/credits/status", h.status)
}

func (h *Handler) status(c *gin.Context) {
	status, err := h.svc.AccountStatus(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, status)
}
