package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-rewards-api/internal/dto"
	"github.com/noah-isme/campus-rewards-api/internal/models"
	"github.com/noah-isme/campus-rewards-api/internal/service"
	appErrors "github.com/noah-isme/campus-rewards-api/pkg/errors"
	"github.com/noah-isme/campus-rewards-api/pkg/response"
)

type completedService interface {
	ListCompleted(ctx context.Context, actor *models.JWTClaims) ([]models.CompletedDetail, error)
	ExportCompleted(ctx context.Context, actor *models.JWTClaims, format string) (*service.ExportFile, error)
}

// CompletedHandler exposes the archive of approved assignments.
type CompletedHandler struct {
	service completedService
}

// NewCompletedHandler builds a new handler.
func NewCompletedHandler(service completedService) *CompletedHandler {
	return &CompletedHandler{service: service}
}

// List godoc
// @Summary List completed assignments for the caller
// @Tags Completed
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /completed [get]
func (h *CompletedHandler) List(c *gin.Context) {
	items, err := h.service.ListCompleted(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, items)
}

// Export godoc
// @Summary Export completed assignments
// @Tags Completed
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Success 200 {file} binary
// @Router /completed/export [get]
func (h *CompletedHandler) Export(c *gin.Context) {
	var query dto.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	file, err := h.service.ExportCompleted(c.Request.Context(), claimsFromContext(c), query.Format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", file.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Content)
}
