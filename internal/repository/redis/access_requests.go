package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arklim/workspace-directory/internal/core/domain"
	"github.com/arklim/workspace-directory/internal/core/port"
	"github.com/arklim/workspace-directory/internal/repository"
)

// AccessRequestRepository keeps pending access requests as JSON entries in a
// per-scope list. An id index guards against recording the same request twice.
type AccessRequestRepository struct {
	client    *redis.Client
	keyPrefix string
}

func NewAccessRequestRepository(client *redis.Client, keyPrefix string) *AccessRequestRepository {
	if keyPrefix == "" {
		keyPrefix = "access_requests"
	}
	return &AccessRequestRepository{client: client, keyPrefix: keyPrefix}
}

type accessRequestRecord struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Scope     string `json:"scope"`
	Reason    string `json:"reason,omitempty"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"created_at"`
}

func (r *AccessRequestRepository) CreateAccessRequest(ctx context.Context, request domain.AccessRequest) error {
	payload, err := json.Marshal(accessRequestRecord{
		ID:        request.ID,
		UserID:    request.UserID,
		Scope:     request.Scope,
		Reason:    request.Reason,
		Status:    string(request.Status),
		CreatedAt: request.CreatedAt.UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("marshal access request: %w", err)
	}

	claimed, err := r.client.HSetNX(ctx, r.indexKey(), request.ID, request.Scope).Result()
	if err != nil {
		return fmt.Errorf("redis hsetnx: %w", err)
	}
	if !claimed {
		return repository.ErrDuplicate
	}

	if err := r.client.RPush(ctx, r.scopeKey(request.Scope), payload).Err(); err != nil {
		_ = r.client.HDel(ctx, r.indexKey(), request.ID).Err()
		return fmt.Errorf("redis rpush: %w", err)
	}
	return nil
}

func (r *AccessRequestRepository) ListAccessRequestsByScope(ctx context.Context, scope string) ([]domain.AccessRequest, error) {
	values, err := r.client.LRange(ctx, r.scopeKey(scope), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange: %w", err)
	}

	requests := make([]domain.AccessRequest, 0, len(values))
	for _, value := range values {
		var record accessRequestRecord
		if err := json.Unmarshal([]byte(value), &record); err != nil {
			return nil, fmt.Errorf("decode access request: %w", err)
		}
		requests = append(requests, domain.AccessRequest{
			ID:        record.ID,
			UserID:    record.UserID,
			Scope:     record.Scope,
			Reason:    record.Reason,
			Status:    domain.AccessRequestStatus(record.Status),
			CreatedAt: time.Unix(0, record.CreatedAt).UTC(),
		})
	}
	return requests, nil
}

func (r *AccessRequestRepository) indexKey() string {
	return r.keyPrefix + ":ids"
}

func (r *AccessRequestRepository) scopeKey(scope string) string {
	return r.keyPrefix + ":scope:" + scope
}

var _ port.AccessRequestStore = (*AccessRequestRepository)(nil)
