package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-rewards-api/internal/dto"
	"github.com/noah-isme/campus-rewards-api/internal/models"
	appErrors "github.com/noah-isme/campus-rewards-api/pkg/errors"
	"github.com/noah-isme/campus-rewards-api/pkg/response"
)

type policyService interface {
	Current(ctx context.Context) (*models.RewardPolicy, error)
	Update(ctx context.Context, actor *models.JWTClaims, req dto.UpdatePolicyRequest) (*models.RewardPolicy, error)
}

// PolicyHandler exposes the reward policy.
type PolicyHandler struct {
	service policyService
}

// NewPolicyHandler builds a new handler.
func NewPolicyHandler(service policyService) *PolicyHandler {
	return &PolicyHandler{service: service}
}

// Get godoc
// @Summary Get the reward policy
// @Tags Policy
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /policy [get]
func (h *PolicyHandler) Get(c *gin.Context) {
	policy, err := h.service.Current(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, policy)
}

// Update godoc
// @Summary Update the reward base multiplier
// @Tags Policy
// @Accept json
// @Produce json
// @Param payload body dto.UpdatePolicyRequest true "Policy payload"
// @Success 200 {object} response.Envelope
// @Router /policy [put]
func (h *PolicyHandler) Update(c *gin.Context) {
	var req dto.UpdatePolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid policy payload"))
		return
	}
	policy, err := h.service.Update(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, policy)
}
