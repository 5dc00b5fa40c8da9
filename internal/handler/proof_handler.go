package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-rewards-api/internal/models"
	"github.com/noah-isme/campus-rewards-api/internal/service"
	appErrors "github.com/noah-isme/campus-rewards-api/pkg/errors"
	"github.com/noah-isme/campus-rewards-api/pkg/response"
)

type proofDownloader interface {
	Download(ctx context.Context, actor *models.JWTClaims, token string) (*service.ProofDownload, error)
}

// ProofHandler streams proofs behind signed tokens.
type ProofHandler struct {
	service proofDownloader
}

// NewProofHandler builds a new handler.
func NewProofHandler(service proofDownloader) *ProofHandler {
	return &ProofHandler{service: service}
}

// Download godoc
// @Summary Download a proof via signed token
// @Tags Approvals
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Router /proofs/download [get]
func (h *ProofHandler) Download(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	result, err := h.service.Download(c.Request.Context(), claimsFromContext(c), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, result.MimeType, result.Content)
}
