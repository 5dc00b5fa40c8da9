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

type rewardService interface {
	CreateReward(ctx context.Context, actor *models.JWTClaims, req dto.CreateRewardRequest) (*models.Reward, error)
	List(ctx context.Context, actor *models.JWTClaims) ([]models.Reward, error)
	Claim(ctx context.Context, actor *models.JWTClaims, rewardID string, req dto.ClaimRewardRequest) (*models.RewardClaim, error)
	ListClaims(ctx context.Context, actor *models.JWTClaims) ([]models.RewardClaimDetail, error)
}

// RewardHandler exposes the reward catalog and redemption.
type RewardHandler struct {
	service rewardService
}

// NewRewardHandler builds a new handler.
func NewRewardHandler(service rewardService) *RewardHandler {
	return &RewardHandler{service: service}
}

// List godoc
// @Summary List rewards
// @Tags Rewards
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /rewards [get]
func (h *RewardHandler) List(c *gin.Context) {
	rewards, err := h.service.List(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, rewards)
}

// Create godoc
// @Summary Create a reward
// @Tags Rewards
// @Accept json
// @Produce json
// @Param payload body dto.CreateRewardRequest true "Reward payload"
// @Success 201 {object} response.Envelope
// @Router /rewards [post]
func (h *RewardHandler) Create(c *gin.Context) {
	var req dto.CreateRewardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reward payload"))
		return
	}
	reward, err := h.service.CreateReward(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, reward)
}

// Claim godoc
// @Summary Claim a reward
// @Tags Rewards
// @Accept json
// @Produce json
// @Param id path string true "Reward ID"
// @Param payload body dto.ClaimRewardRequest true "Transfer authorization"
// @Success 201 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Failure 504 {object} response.Envelope
// @Router /rewards/{id}/claim [post]
func (h *RewardHandler) Claim(c *gin.Context) {
	var req dto.ClaimRewardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid claim payload"))
		return
	}
	claim, err := h.service.Claim(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, claim)
}

// Claims godoc
// @Summary List the student's reward claims
// @Tags Rewards
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /rewards/claims [get]
func (h *RewardHandler) Claims(c *gin.Context) {
	claims, err := h.service.ListClaims(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, claims)
}
