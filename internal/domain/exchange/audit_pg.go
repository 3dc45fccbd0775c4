package exchange

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hl7bridge/hl7bridge/internal/platform/middleware"
)

// auditLogPG persists audit entries to the audit_log table.
type auditLogPG struct{ pool *pgxpool.Pool }

func NewAuditLogPG(pool *pgxpool.Pool) middleware.AuditRecorder {
	return &auditLogPG{pool: pool}
}

func (a *auditLogPG) RecordAccess(entry middleware.AuditEntry) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := a.pool.Exec(ctx, `
		INSERT INTO audit_log (user_id, user_roles, action, message_type, control_id,
			path, method, remote_ip, user_agent, request_id, status_code, occurred_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		entry.UserID, entry.UserRoles, entry.Action, entry.MessageType, entry.ControlID,
		entry.Path, entry.Method, entry.IPAddress, entry.UserAgent, entry.RequestID,
		entry.StatusCode, entry.Timestamp)
	return err
}
