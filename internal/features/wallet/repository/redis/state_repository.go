package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"tipjar-backend/internal/features/wallet/models"
	"tipjar-backend/internal/features/wallet/repository"
)

type stateRepository struct {
	client *redis.Client
}

func NewStateRepository(client *redis.Client) repository.StateRepository {
	return &stateRepository{
		client: client,
	}
}

func stateKey(userID int64) string {
	return fmt.Sprintf("state:%d", userID)
}

func (r *stateRepository) Get(ctx context.Context, userID int64) (*models.ConversationState, error) {
	stateJSON, err := r.client.Get(ctx, stateKey(userID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var state models.ConversationState
	if err := json.Unmarshal(stateJSON, &state); err != nil {
		return nil, err
	}

	return &state, nil
}

func (r *stateRepository) Set(ctx context.Context, userID int64, state *models.ConversationState) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, stateKey(userID), stateJSON, 0).Err()
}

func (r *stateRepository) Clear(ctx context.Context, userID int64) error {
	return r.client.Del(ctx, stateKey(userID)).Err()
}

type groupLanguageRepository struct {
	client *redis.Client
}

func NewGroupLanguageRepository(client *redis.Client) repository.GroupLanguageRepository {
	return &groupLanguageRepository{
		client: client,
	}
}

func chatLangKey(chatID int64) string {
	return fmt.Sprintf("chatlang:%d", chatID)
}

func (r *groupLanguageRepository) Get(ctx context.Context, chatID int64) (string, error) {
	lang, err := r.client.Get(ctx, chatLangKey(chatID)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil
		}
		return "", err
	}
	return lang, nil
}

func (r *groupLanguageRepository) Set(ctx context.Context, chatID int64, language string) error {
	return r.client.Set(ctx, chatLangKey(chatID), language, 0).Err()
}

type pendingTransferRepository struct {
	client *redis.Client
}

func NewPendingTransferRepository(client *redis.Client) repository.PendingTransferRepository {
	return &pendingTransferRepository{
		client: client,
	}
}

func pendingKey(ref string) string {
	return "pending:" + ref
}

func (r *pendingTransferRepository) Put(ctx context.Context, transfer *models.PendingTransfer) error {
	transferJSON, err := json.Marshal(transfer)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, pendingKey(transfer.Ref), transferJSON, 0).Err()
}

func (r *pendingTransferRepository) Delete(ctx context.Context, ref string) error {
	return r.client.Del(ctx, pendingKey(ref)).Err()
}
