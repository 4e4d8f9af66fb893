// Package notification delivers invitation notices. Email delivery is not
// wired; the logging notifier records dispatches for development.
package notification

import (
	"context"

	"go.uber.org/zap"

	"github.com/arklim/workspace-directory/internal/core/domain"
	"github.com/arklim/workspace-directory/internal/core/port"
	"github.com/arklim/workspace-directory/internal/infra/logger"
)

// LoggingNotifier records invitation dispatches without delivering them. The
// token inside the link is redacted.
type LoggingNotifier struct {
	logger *zap.Logger
}

func NewLoggingNotifier(log *zap.Logger) *LoggingNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &LoggingNotifier{logger: log}
}

func (n *LoggingNotifier) SendInvitation(ctx context.Context, notice domain.InvitationNotice) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n.logger.Info("dispatch invitation",
		zap.String("invitation_id", notice.InvitationID),
		zap.String("email", logger.MaskEmail(notice.Email)),
		zap.String("tenant_id", notice.TenantID),
		zap.String("role_id", notice.RoleID),
		zap.String("invited_by", notice.InvitedBy),
		zap.String("link", logger.RedactInviteLink(notice.Link)),
		zap.Time("expires_at", notice.ExpiresAt),
	)
	return nil
}

var _ port.InvitationNotifier = (*LoggingNotifier)(nil)
