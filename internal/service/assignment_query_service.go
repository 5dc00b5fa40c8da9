package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-rewards-api/internal/models"
	appErrors "github.com/noah-isme/campus-rewards-api/pkg/errors"
	"github.com/noah-isme/campus-rewards-api/pkg/export"
)

type assignmentQueryRepository interface {
	ListByStudent(ctx context.Context, studentID string, state models.AssignmentState) ([]models.AssignmentDetail, error)
	ListPendingForFaculty(ctx context.Context, facultyID string) ([]models.AssignmentDetail, error)
	ListRejectedForFaculty(ctx context.Context, facultyID string) ([]models.AssignmentDetail, error)
	ListCompleted(ctx context.Context, filter models.CompletedFilter) ([]models.CompletedDetail, error)
}

type datasetRenderer interface {
	Render(f export.Format, data export.Dataset, title string) ([]byte, error)
}

// ExportFile is a rendered export ready to download.
type ExportFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

// AssignmentQueryService serves the read-side projections of the lifecycle.
type AssignmentQueryService struct {
	repo     assignmentQueryRepository
	renderer datasetRenderer
	logger   *zap.Logger
}

// NewAssignmentQueryService constructs the query service.
func NewAssignmentQueryService(repo assignmentQueryRepository, renderer datasetRenderer, logger *zap.Logger) *AssignmentQueryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if renderer == nil {
		renderer = export.NewRenderer()
	}
	return &AssignmentQueryService{repo: repo, renderer: renderer, logger: logger}
}

// ListByStudent returns the caller's working assignments, optionally narrowed to one state.
func (s *AssignmentQueryService) ListByStudent(ctx context.Context, actor *models.JWTClaims, state string) ([]models.AssignmentDetail, error) {
	if err := requireRole(actor, models.RoleStudent); err != nil {
		return nil, err
	}
	filter := models.AssignmentState(strings.ToUpper(strings.TrimSpace(state)))
	if filter != "" && !filter.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "state must be one of ACCEPTED, SUBMITTED, REJECTED")
	}
	items, err := s.repo.ListByStudent(ctx, actor.UserID, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return items, nil
}

// ListPending returns submissions awaiting the calling faculty member's review.
func (s *AssignmentQueryService) ListPending(ctx context.Context, actor *models.JWTClaims) ([]models.AssignmentDetail, error) {
	if err := requireRole(actor, models.RoleFaculty); err != nil {
		return nil, err
	}
	items, err := s.repo.ListPendingForFaculty(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending approvals")
	}
	return items, nil
}

// ListRejected returns the calling faculty member's rejected assignments.
func (s *AssignmentQueryService) ListRejected(ctx context.Context, actor *models.JWTClaims) ([]models.AssignmentDetail, error) {
	if err := requireRole(actor, models.RoleFaculty); err != nil {
		return nil, err
	}
	items, err := s.repo.ListRejectedForFaculty(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list rejected assignments")
	}
	return items, nil
}

// ListCompleted scopes completed assignments to the caller: approved by faculty or earned by a student.
func (s *AssignmentQueryService) ListCompleted(ctx context.Context, actor *models.JWTClaims) ([]models.CompletedDetail, error) {
	if err := requireRole(actor, models.RoleFaculty, models.RoleStudent); err != nil {
		return nil, err
	}
	filter := models.CompletedFilter{}
	if actor.Role == models.RoleFaculty {
		filter.FacultyID = actor.UserID
	} else {
		filter.StudentID = actor.UserID
	}
	items, err := s.repo.ListCompleted(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list completed assignments")
	}
	return items, nil
}

// ExportCompleted renders the calling faculty member's completed assignments.
func (s *AssignmentQueryService) ExportCompleted(ctx context.Context, actor *models.JWTClaims, format string) (*ExportFile, error) {
	if err := requireRole(actor, models.RoleFaculty); err != nil {
		return nil, err
	}
	f, err := export.ParseFormat(format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "format must be csv or pdf")
	}
	items, err := s.repo.ListCompleted(ctx, models.CompletedFilter{FacultyID: actor.UserID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list completed assignments")
	}

	content, err := s.renderer.Render(f, completedDataset(items), "Completed Assignments")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	s.logger.Info("completed assignments exported",
		zap.String("faculty_id", actor.UserID),
		zap.String("format", string(f)),
		zap.Int("rows", len(items)),
	)
	return &ExportFile{
		Filename:    fmt.Sprintf("completed_%s.%s", time.Now().UTC().Format("20060102_150405"), f),
		ContentType: f.ContentType(),
		Content:     content,
	}, nil
}

func completedDataset(items []models.CompletedDetail) export.Dataset {
	headers := []string{"Task", "Category", "Student", "Branch", "Reward", "Slot", "Approval Reason", "Transaction", "Approved At"}
	rows := make([]map[string]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, map[string]string{
			"Task":            item.TaskName,
			"Category":        item.TaskCategory,
			"Student":         item.StudentName,
			"Branch":          item.StudentBranch,
			"Reward":          item.RewardValue.StringFixed(2),
			"Slot":            fmt.Sprintf("%d", item.SlotNumber),
			"Approval Reason": item.ApprovalReason,
			"Transaction":     item.TransactionRef,
			"Approved At":     item.ApprovedAt.Format(time.RFC3339),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}
