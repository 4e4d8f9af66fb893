package usecase

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/arklim/workspace-directory/internal/core/domain"
)

// ListManagedUsers returns the composites visible to the actor in enumeration order.
// A superuser sees every account; anyone else sees themselves plus every account
// sharing at least one tenant. An unknown actor sees nothing.
func (s *DirectoryService) ListManagedUsers(ctx context.Context, actorID string) (users []domain.UserComposite, err error) {
	ctx, span := s.startSpan(ctx, "ListManagedUsers", attribute.String("actor.id", actorID))
	defer func() { s.finish(span, "list_managed_users", err) }()

	actor, err := s.findAccount(ctx, actorID)
	if err != nil {
		return nil, err
	}
	users = []domain.UserComposite{}
	if actor == nil {
		return users, nil
	}

	superuser := actor.IsSuperuser()
	cursor := ""
	skipped := 0
	for {
		page, err := s.accounts.ListAccounts(ctx, domain.PageRequest{Cursor: cursor, Limit: s.pageSize})
		if err != nil {
			return nil, fmt.Errorf("list accounts: %w", err)
		}

		for _, candidate := range page.Accounts {
			if !superuser && candidate.ID != actor.ID && !actor.SharesTenantWith(candidate) {
				continue
			}
			composite, ok, err := s.loadComposite(ctx, candidate)
			if err != nil {
				return nil, err
			}
			if !ok {
				skipped++
				continue
			}
			users = append(users, composite)
		}

		if page.NextCursor == "" || page.NextCursor == cursor {
			break
		}
		cursor = page.NextCursor
	}

	if skipped > 0 {
		s.logger.Debug("skipped partial account records", zap.Int("count", skipped))
	}
	span.SetAttributes(attribute.Int("users.visible", len(users)))
	return users, nil
}
