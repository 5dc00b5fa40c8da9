package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-rewards-api/internal/models"
	appErrors "github.com/noah-isme/campus-rewards-api/pkg/errors"
)

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// requireRole rejects a missing principal or one outside roles.
func requireRole(actor *models.JWTClaims, roles ...models.UserRole) error {
	if actor == nil || actor.UserID == "" {
		return appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	if !actor.HasRole(roles...) {
		return appErrors.Clone(appErrors.ErrForbidden, "insufficient role for this operation")
	}
	return nil
}

func validationError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

// auditEntry describes one best-effort audit record.
type auditEntry struct {
	Actor      *models.JWTClaims
	Action     string
	Resource   string
	ResourceID string
	Old        interface{}
	New        interface{}
	Source     string
}

func recordAudit(ctx context.Context, audit auditLogger, logger *zap.Logger, entry auditEntry) {
	if audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     userIDPtr(entry.Actor),
		Action:     entry.Action,
		Resource:   entry.Resource,
		ResourceID: strPtr(entry.ResourceID),
		IPAddress:  "system",
		UserAgent:  entry.Source,
	}
	if entry.Old != nil {
		log.OldValues, _ = json.Marshal(entry.Old)
	}
	if entry.New != nil {
		log.NewValues, _ = json.Marshal(entry.New)
	}
	if err := audit.CreateAuditLog(context.WithoutCancel(ctx), log); err != nil {
		logger.Warn("failed to record audit log",
			zap.String("action", entry.Action),
			zap.String("resource_id", entry.ResourceID),
			zap.Error(err),
		)
	}
}

func userIDPtr(actor *models.JWTClaims) *string {
	if actor == nil || actor.UserID == "" {
		return nil
	}
	id := actor.UserID
	return &id
}

func strPtr(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
