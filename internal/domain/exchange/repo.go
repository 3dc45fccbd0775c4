package exchange

import (
	"context"

	"github.com/google/uuid"
)

type MessageRepository interface {
	Create(ctx context.Context, m *MessageRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*MessageRecord, error)
	GetByControlID(ctx context.Context, controlID string) (*MessageRecord, error)
	List(ctx context.Context, params map[string]string, limit, offset int) ([]*MessageRecord, int, error)
}
