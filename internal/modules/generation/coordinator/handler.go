package coordinator

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/adforge/core/internal/middleware"
	"github.com/adforge/core/internal/modules/billing/credits"
	"github.com/adforge/core/internal/modules/generation/fallback"
	"github.com/adforge/core/internal/modules/generation/provider"
	"github.com/adforge/core/internal/modules/storage/hosting"
	"github.com/adforge/core/internal/pkg/response"
)

type Handler struct {
	svc    *Service
	logger *zap.Logger
}

func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/generate", h.generate)
}

type generateRequest struct {
	CampaignID   string `json:"campaignId" binding:"required"`
	MediaKind    string `json:"mediaKind" binding:"required,oneof=text image video"`
	Prompt       string `json:"prompt" binding:"required"`
	Style        string `json:"style"`
	Platform     string `json:"platform" binding:"required"`
	Language     string `json:"language" binding:"required"`
	ReferenceURL string `json:"referenceUrl"`
}

func (h *Handler) generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.svc.Generate(c.Request.Context(), GenerateInput{
		UserID:       middleware.UserID(c),
		CampaignID:   req.CampaignID,
		MediaKind:    provider.Kind(req.MediaKind),
		Prompt:       req.Prompt,
		Style:        req.Style,
		Platform:     req.Platform,
		Language:     req.Language,
		ReferenceURL: req.ReferenceURL,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, result)
}

// respondError maps pipeline failures onto the status codes the CRUD layer
// branches on: 402 upsell, 502 retry later, 507 page the on-call.
func (h *Handler) respondError(c *gin.Context, err error) {
	var exhausted *fallback.ExhaustedError

	switch {
	case errors.Is(err, credits.ErrInsufficientCredits):
		response.PaymentRequired(c, "insufficient credits for this generation")
	case errors.As(err, &exhausted):
		c.AbortWithStatusJSON(502, gin.H{
			"ok":       0,
			"code":     502,
			"message":  exhausted.Error(),
			"attempts": exhausted.Attempts,
		})
	case errors.Is(err, fallback.ErrAllProvidersExhausted):
		response.BadGateway(c, err.Error())
	case errors.Is(err, hosting.ErrHostingExhausted):
		response.InsufficientStorage(c, err.Error())
	default:
		h.logger.Error("generation failed", zap.Error(err))
		response.InternalError(c, err)
	}
}
