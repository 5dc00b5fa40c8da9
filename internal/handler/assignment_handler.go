package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-rewards-api/internal/dto"
	"github.com/noah-isme/campus-rewards-api/internal/models"
	"github.com/noah-isme/campus-rewards-api/internal/service"
	appErrors "github.com/noah-isme/campus-rewards-api/pkg/errors"
	"github.com/noah-isme/campus-rewards-api/pkg/response"
)

type assignmentService interface {
	Accept(ctx context.Context, actor *models.JWTClaims, req dto.AcceptTaskRequest) (*models.Assignment, error)
	SubmitProof(ctx context.Context, actor *models.JWTClaims, taskID string, upload *service.ProofUpload) (*models.Assignment, error)
	ResubmitProof(ctx context.Context, actor *models.JWTClaims, taskID string, upload *service.ProofUpload) (*models.Assignment, error)
}

type studentAssignmentLister interface {
	ListByStudent(ctx context.Context, actor *models.JWTClaims, state string) ([]models.AssignmentDetail, error)
}

// AssignmentHandler exposes the student side of the assignment lifecycle.
type AssignmentHandler struct {
	service assignmentService
	queries studentAssignmentLister
}

// NewAssignmentHandler builds a new handler.
func NewAssignmentHandler(service assignmentService, queries studentAssignmentLister) *AssignmentHandler {
	return &AssignmentHandler{service: service, queries: queries}
}

// Accept godoc
// @Summary Accept a task
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body dto.AcceptTaskRequest true "Task to accept"
// @Success 201 {object} response.Envelope
// @Router /assignments [post]
func (h *AssignmentHandler) Accept(c *gin.Context) {
	var req dto.AcceptTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid accept payload"))
		return
	}
	assignment, err := h.service.Accept(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// SubmitProof godoc
// @Summary Submit proof for an accepted task
// @Tags Assignments
// @Accept multipart/form-data
// @Produce json
// @Param taskId path string true "Task ID"
// @Param file formData file true "Proof document"
// @Success 200 {object} response.Envelope
// @Router /assignments/{taskId}/proof [post]
func (h *AssignmentHandler) SubmitProof(c *gin.Context) {
	h.withProof(c, h.service.SubmitProof)
}

// ResubmitProof godoc
// @Summary Replace the proof of a rejected task
// @Tags Assignments
// @Accept multipart/form-data
// @Produce json
// @Param taskId path string true "Task ID"
// @Param file formData file true "Proof document"
// @Success 200 {object} response.Envelope
// @Router /assignments/{taskId}/proof [put]
func (h *AssignmentHandler) ResubmitProof(c *gin.Context) {
	h.withProof(c, h.service.ResubmitProof)
}

func (h *AssignmentHandler) withProof(c *gin.Context, submit func(context.Context, *models.JWTClaims, string, *service.ProofUpload) (*models.Assignment, error)) {
	upload, closeFile, err := proofFromForm(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeFile()

	assignment, err := submit(c.Request.Context(), claimsFromContext(c), c.Param("taskId"), upload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment)
}

// List godoc
// @Summary List the student's working assignments
// @Tags Assignments
// @Produce json
// @Param state query string false "ACCEPTED, SUBMITTED or REJECTED"
// @Success 200 {object} response.Envelope
// @Router /assignments [get]
func (h *AssignmentHandler) List(c *gin.Context) {
	var filter dto.AssignmentFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid filter"))
		return
	}
	items, err := h.queries.ListByStudent(c.Request.Context(), claimsFromContext(c), filter.State)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, items)
}
