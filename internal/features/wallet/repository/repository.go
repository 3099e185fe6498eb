package repository

import (
	"context"
	"errors"

	"tipjar-backend/internal/features/wallet/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error

	// ResolveUsername maps a username (without @, any case) to a user id.
	ResolveUsername(ctx context.Context, username string) (int64, error)
	// DropUsername removes a stale reverse-index entry after a rename.
	DropUsername(ctx context.Context, username string) error
}

// StateRepository persists at most one ConversationState per user.
// Get returns (nil, nil) when no flow is pending; Set overwrites whatever is
// there; Clear is idempotent.
type StateRepository interface {
	Get(ctx context.Context, userID int64) (*models.ConversationState, error)
	Set(ctx context.Context, userID int64, state *models.ConversationState) error
	Clear(ctx context.Context, userID int64) error
}

// GroupLanguageRepository stores the admin-chosen language per group chat.
// Get returns "" when no preference is set.
type GroupLanguageRepository interface {
	Get(ctx context.Context, chatID int64) (string, error)
	Set(ctx context.Context, chatID int64, language string) error
}

type PendingTransferRepository interface {
	Put(ctx context.Context, transfer *models.PendingTransfer) error
	Delete(ctx context.Context, ref string) error
}
