package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-rewards-api/internal/middleware"
	"github.com/noah-isme/campus-rewards-api/internal/models"
)

// Handlers bundles every HTTP handler mounted under the API prefix.
type Handlers struct {
	Tasks       *TaskHandler
	Assignments *AssignmentHandler
	Approvals   *ApprovalHandler
	Completed   *CompletedHandler
	Rewards     *RewardHandler
	Policy      *PolicyHandler
	Proofs      *ProofHandler
}

// RegisterRoutes mounts the API on group. auth must populate middleware.ContextUserKey.
func RegisterRoutes(group *gin.RouterGroup, h Handlers, auth gin.HandlerFunc) {
	admin := middleware.RequireRoles(models.RoleAdmin)
	faculty := middleware.RequireRoles(models.RoleFaculty)
	student := middleware.RequireRoles(models.RoleStudent)
	anyRole := middleware.RequireRoles(models.RoleAdmin, models.RoleFaculty, models.RoleStudent)

	secured := group.Group("", auth)

	tasks := secured.Group("/tasks")
	tasks.POST("", faculty, h.Tasks.Create)
	tasks.GET("/eligible", student, h.Tasks.ListEligible)
	tasks.GET("/mine", faculty, h.Tasks.ListMine)

	assignments := secured.Group("/assignments", student)
	assignments.POST("", h.Assignments.Accept)
	assignments.GET("", h.Assignments.List)
	assignments.POST("/:taskId/proof", h.Assignments.SubmitProof)
	assignments.PUT("/:taskId/proof", h.Assignments.ResubmitProof)

	approvals := secured.Group("/approvals", faculty)
	approvals.GET("/pending", h.Approvals.Pending)
	approvals.GET("/rejected", h.Approvals.Rejected)
	approvals.POST("/approve", h.Approvals.Approve)
	approvals.POST("/reject", h.Approvals.Reject)
	approvals.GET("/proof-url", h.Approvals.ProofURL)

	completed := secured.Group("/completed")
	completed.GET("", middleware.RequireRoles(models.RoleFaculty, models.RoleStudent), h.Completed.List)
	completed.GET("/export", faculty, h.Completed.Export)

	rewards := secured.Group("/rewards")
	rewards.GET("", anyRole, h.Rewards.List)
	rewards.POST("", admin, h.Rewards.Create)
	rewards.GET("/claims", student, h.Rewards.Claims)
	rewards.POST("/:id/claim", student, h.Rewards.Claim)

	policy := secured.Group("/policy")
	policy.GET("", anyRole, h.Policy.Get)
	policy.PUT("", admin, h.Policy.Update)

	secured.GET("/proofs/download", faculty, h.Proofs.Download)
}
