package campaign

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/adforge/core/internal/middleware"
	"github.com/adforge/core/internal/pkg/pagination"
	"github.com/adforge/core/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/campaigns/:id", h.get)
	rg.GET("/campaigns/:id/assets", h.listAssets)
}

func (h *Handler) get(c *gin.Context) {
	campaign, err := h.svc.Get(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if errors.Is(err, ErrCampaignNotFound) {
		response.NotFound(c)
		return
	}
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, campaign)
}

func (h *Handler) listAssets(c *gin.Context) {
	q := pagination.FromContext(c)
	includeSuperseded := c.Query("all") == "1"

	assets, total, err := h.svc.ListAssets(
		c.Request.Context(), c.Param("id"), middleware.UserID(c), q, includeSuperseded)
	if errors.Is(err, ErrCampaignNotFound) {
		response.NotFound(c)
		return
	}
	if err != nil {
		response.InternalError(c, err)
		return
	}

	totalPage := int((total + int64(q.Size) - 1) / int64(q.Size))
	response.Paged(c, assets, response.Pagination{
		Total:       total,
		CurrentPage: q.Page,
		TotalPage:   totalPage,
		Size:        q.Size,
		HasNextPage: q.Page < totalPage,
	})
}
