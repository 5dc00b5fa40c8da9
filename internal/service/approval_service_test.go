package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-rewards-api/internal/dto"
	"github.com/noah-isme/campus-rewards-api/internal/models"
	appErrors "github.com/noah-isme/campus-rewards-api/pkg/errors"
	"github.com/noah-isme/campus-rewards-api/pkg/payment"
)

func submittedCampus(t *testing.T) *campus {
	t.Helper()
	c := newCampus()
	seedTask(c, "t1", 3)
	c.db.addStudent(models.Student{ID: "s1", FullName: "Ana", Branch: "CSE", PayoutAddress: "wallet-s1"})
	ctx := context.Background()
	student := claimsFor(models.RoleStudent, "s1")
	_, err := c.assignments.Accept(ctx, student, dto.AcceptTaskRequest{TaskID: "t1"})
	require.NoError(t, err)
	_, err = c.assignments.SubmitProof(ctx, student, "t1", newProofUpload(pngHeader))
	require.NoError(t, err)
	return c
}

func TestApprovalLifecycleRejectResubmitApprove(t *testing.T) {
	c := submittedCampus(t)
	ctx := context.Background()
	student := claimsFor(models.RoleStudent, "s1")
	faculty := claimsFor(models.RoleFaculty, "faculty-1")
	assert.Equal(t, 2, c.db.slotsLeft("t1"))

	rejected, err := c.approvals.Reject(ctx, faculty, dto.ReviewRequest{StudentID: "s1", TaskID: "t1", Reason: "blurry photo"})
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentStateRejected, rejected.State())
	assert.Equal(t, "blurry photo", derefString(rejected.RejectionReason))
	assert.Equal(t, 2, c.db.slotsLeft("t1"))

	_, err = c.assignments.ResubmitProof(ctx, student, "t1", newProofUpload(pngHeader))
	require.NoError(t, err)

	completed, err := c.approvals.Approve(ctx, faculty, dto.ReviewRequest{StudentID: "s1", TaskID: "t1", Reason: "looks good"})
	require.NoError(t, err)
	assert.Equal(t, "looks good", completed.ApprovalReason)
	assert.Equal(t, "blurry photo", derefString(completed.RejectionReason))
	assert.Equal(t, "tx-1", completed.TransactionRef)
	assert.True(t, completed.RewardValue.Equal(decimal.RequireFromString("19.44")))

	calls := c.gateway.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "treasury", calls[0].Source)
	assert.Equal(t, "wallet-s1", calls[0].Destination)

	_, live := c.db.assignment("s1", "t1")
	assert.False(t, live)
	assert.Equal(t, 1, c.db.completedCount())
	assert.Equal(t, 2, c.db.slotsLeft("t1"))

	attempt, _ := c.db.payment("task:s1:t1")
	assert.NotNil(t, attempt.SettledAt)
	assert.Equal(t, []string{models.AuditActionTaskReject, models.AuditActionTaskResubmit, models.AuditActionTaskApprove}, c.audit.actions())

	_, err = c.assignments.Accept(ctx, student, dto.AcceptTaskRequest{TaskID: "t1"})
	assert.ErrorIs(t, err, appErrors.ErrAlreadyCompleted)
}

func TestApprovalServiceReviewValidation(t *testing.T) {
	c := submittedCampus(t)
	ctx := context.Background()

	_, err := c.approvals.Approve(ctx, claimsFor(models.RoleFaculty, "faculty-1"), dto.ReviewRequest{StudentID: "s1", TaskID: "t1", Reason: "  "})
	assert.ErrorIs(t, err, appErrors.ErrReasonRequired)

	_, err = c.approvals.Reject(ctx, claimsFor(models.RoleStudent, "s1"), dto.ReviewRequest{StudentID: "s1", TaskID: "t1", Reason: "no"})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = c.approvals.Approve(ctx, claimsFor(models.RoleFaculty, "faculty-2"), dto.ReviewRequest{StudentID: "s1", TaskID: "t1", Reason: "ok"})
	assert.ErrorIs(t, err, appErrors.ErrAssignmentNotFound)

	_, err = c.approvals.Approve(ctx, nil, dto.ReviewRequest{StudentID: "s1", TaskID: "t1", Reason: "ok"})
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
	assert.Empty(t, c.gateway.calls())
}

func TestApprovalServiceRequiresSubmission(t *testing.T) {
	c := newCampus()
	seedTask(c, "t1", 1)
	c.db.addStudent(models.Student{ID: "s1", PayoutAddress: "wallet-s1"})
	ctx := context.Background()
	_, err := c.assignments.Accept(ctx, claimsFor(models.RoleStudent, "s1"), dto.AcceptTaskRequest{TaskID: "t1"})
	require.NoError(t, err)

	_, err = c.approvals.Approve(ctx, claimsFor(models.RoleFaculty, "faculty-1"), dto.ReviewRequest{StudentID: "s1", TaskID: "t1", Reason: "ok"})
	assert.ErrorIs(t, err, appErrors.ErrNotSubmitted)
	_, err = c.approvals.Reject(ctx, claimsFor(models.RoleFaculty, "faculty-1"), dto.ReviewRequest{StudentID: "s1", TaskID: "t1", Reason: "no"})
	assert.ErrorIs(t, err, appErrors.ErrNotSubmitted)
	assert.Empty(t, c.gateway.calls())
}

func TestApprovalServicePaymentFailureLeavesAssignment(t *testing.T) {
	c := submittedCampus(t)
	c.gateway.next = []error{fmt.Errorf("%w: destination frozen", payment.ErrTransferFailed)}
	faculty := claimsFor(models.RoleFaculty, "faculty-1")
	review := dto.ReviewRequest{StudentID: "s1", TaskID: "t1", Reason: "looks good"}

	_, err := c.approvals.Approve(context.Background(), faculty, review)
	assert.ErrorIs(t, err, appErrors.ErrPaymentFailed)

	current, live := c.db.assignment("s1", "t1")
	require.True(t, live)
	assert.Equal(t, models.AssignmentStateSubmitted, current.State())
	assert.Zero(t, c.db.completedCount())

	completed, err := c.approvals.Approve(context.Background(), faculty, review)
	require.NoError(t, err)
	assert.NotEmpty(t, completed.TransactionRef)
	assert.Len(t, c.gateway.calls(), 2)
}

func TestApprovalServiceUnknownPaymentBlocksReview(t *testing.T) {
	c := submittedCampus(t)
	c.gateway.next = []error{fmt.Errorf("%w: upstream status 503", payment.ErrStatusUnknown)}
	faculty := claimsFor(models.RoleFaculty, "faculty-1")
	ctx := context.Background()

	_, err := c.approvals.Approve(ctx, faculty, dto.ReviewRequest{StudentID: "s1", TaskID: "t1", Reason: "looks good"})
	assert.ErrorIs(t, err, appErrors.ErrPaymentStatusUnknown)

	_, err = c.approvals.Reject(ctx, faculty, dto.ReviewRequest{StudentID: "s1", TaskID: "t1", Reason: "changed my mind"})
	assert.ErrorIs(t, err, appErrors.ErrPaymentStatusUnknown)

	_, err = c.approvals.Approve(ctx, faculty, dto.ReviewRequest{StudentID: "s1", TaskID: "t1", Reason: "looks good"})
	assert.ErrorIs(t, err, appErrors.ErrPaymentStatusUnknown)
	assert.Len(t, c.gateway.calls(), 1)

	current, live := c.db.assignment("s1", "t1")
	require.True(t, live)
	assert.Equal(t, models.AssignmentStateSubmitted, current.State())
}

func TestApprovalServiceConcurrentApprovePaysOnce(t *testing.T) {
	c := submittedCampus(t)
	faculty := claimsFor(models.RoleFaculty, "faculty-1")

	var approved, duplicate int32
	wg := conc.NewWaitGroup()
	for i := 0; i < 5; i++ {
		wg.Go(func() {
			_, err := c.approvals.Approve(context.Background(), faculty, dto.ReviewRequest{StudentID: "s1", TaskID: "t1", Reason: "looks good"})
			switch {
			case err == nil:
				atomic.AddInt32(&approved, 1)
			case errors.Is(err, appErrors.ErrAlreadyCompleted):
				atomic.AddInt32(&duplicate, 1)
			default:
				assert.NoError(t, err)
			}
		})
	}
	wg.Wait()

	assert.Equal(t, int32(1), approved)
	assert.Equal(t, int32(4), duplicate)
	assert.Len(t, c.gateway.calls(), 1)
	assert.Equal(t, 1, c.db.completedCount())
}

func TestApprovalServiceMissingPayoutAddress(t *testing.T) {
	c := submittedCampus(t)
	c.db.addStudent(models.Student{ID: "s1", FullName: "Ana"})

	_, err := c.approvals.Approve(context.Background(), claimsFor(models.RoleFaculty, "faculty-1"), dto.ReviewRequest{StudentID: "s1", TaskID: "t1", Reason: "ok"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Empty(t, c.gateway.calls())
}
