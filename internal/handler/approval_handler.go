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

type approvalService interface {
	Approve(ctx context.Context, actor *models.JWTClaims, req dto.ReviewRequest) (*models.CompletedAssignment, error)
	Reject(ctx context.Context, actor *models.JWTClaims, req dto.ReviewRequest) (*models.Assignment, error)
}

type reviewQueue interface {
	ListPending(ctx context.Context, actor *models.JWTClaims) ([]models.AssignmentDetail, error)
	ListRejected(ctx context.Context, actor *models.JWTClaims) ([]models.AssignmentDetail, error)
}

type proofLinker interface {
	SignedURL(ctx context.Context, actor *models.JWTClaims, query dto.ProofURLQuery) (*models.ProofLink, error)
}

// ApprovalHandler exposes the faculty review workflow.
type ApprovalHandler struct {
	service approvalService
	queue   reviewQueue
	proofs  proofLinker
}

// NewApprovalHandler builds a new handler.
func NewApprovalHandler(service approvalService, queue reviewQueue, proofs proofLinker) *ApprovalHandler {
	return &ApprovalHandler{service: service, queue: queue, proofs: proofs}
}

// Pending godoc
// @Summary List submissions awaiting review
// @Tags Approvals
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /approvals/pending [get]
func (h *ApprovalHandler) Pending(c *gin.Context) {
	items, err := h.queue.ListPending(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, items)
}

// Rejected godoc
// @Summary List rejected assignments
// @Tags Approvals
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /approvals/rejected [get]
func (h *ApprovalHandler) Rejected(c *gin.Context) {
	items, err := h.queue.ListRejected(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, items)
}

// Approve godoc
// @Summary Approve a submission and pay the reward
// @Tags Approvals
// @Accept json
// @Produce json
// @Param payload body dto.ReviewRequest true "Review decision"
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Failure 504 {object} response.Envelope
// @Router /approvals/approve [post]
func (h *ApprovalHandler) Approve(c *gin.Context) {
	req, ok := bindReview(c)
	if !ok {
		return
	}
	completed, err := h.service.Approve(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, completed)
}

// Reject godoc
// @Summary Reject a submission
// @Tags Approvals
// @Accept json
// @Produce json
// @Param payload body dto.ReviewRequest true "Review decision"
// @Success 200 {object} response.Envelope
// @Router /approvals/reject [post]
func (h *ApprovalHandler) Reject(c *gin.Context) {
	req, ok := bindReview(c)
	if !ok {
		return
	}
	assignment, err := h.service.Reject(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment)
}

// ProofURL godoc
// @Summary Issue a signed download link for a submitted proof
// @Tags Approvals
// @Produce json
// @Param student_id query string true "Student ID"
// @Param task_id query string true "Task ID"
// @Success 200 {object} response.Envelope
// @Router /approvals/proof-url [get]
func (h *ApprovalHandler) ProofURL(c *gin.Context) {
	var query dto.ProofURLQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	link, err := h.proofs.SignedURL(c.Request.Context(), claimsFromContext(c), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link)
}

func bindReview(c *gin.Context) (dto.ReviewRequest, bool) {
	var req dto.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload"))
		return req, false
	}
	return req, true
}
