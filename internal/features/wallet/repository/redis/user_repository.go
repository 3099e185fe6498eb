package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"tipjar-backend/internal/features/wallet/models"
	"tipjar-backend/internal/features/wallet/repository"
)

type userRepository struct {
	client *redis.Client
}

func NewUserRepository(client *redis.Client) repository.UserRepository {
	return &userRepository{
		client: client,
	}
}

func userKey(id int64) string {
	return fmt.Sprintf("user:%d", id)
}

func usernameKey(username string) string {
	return "username:@" + strings.ToLower(strings.TrimPrefix(username, "@"))
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	userJSON, err := r.client.Get(ctx, userKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	var user models.User
	if err := json.Unmarshal(userJSON, &user); err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return r.save(ctx, user)
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now()
	return r.save(ctx, user)
}

// save writes the record and refreshes the username reverse index in one
// round trip. Stale index entries for a previous username are dropped by the
// caller via DropUsername.
func (r *userRepository) save(ctx context.Context, user *models.User) error {
	userJSON, err := json.Marshal(user)
	if err != nil {
		return err
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, userKey(user.ID), userJSON, 0)
	if user.Username != "" {
		pipe.Set(ctx, usernameKey(user.Username), user.ID, 0)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (r *userRepository) ResolveUsername(ctx context.Context, username string) (int64, error) {
	raw, err := r.client.Get(ctx, usernameKey(username)).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, repository.ErrNotFound
		}
		return 0, err
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt username index for %q: %w", username, err)
	}
	return id, nil
}

func (r *userRepository) DropUsername(ctx context.Context, username string) error {
	return r.client.Del(ctx, usernameKey(username)).Err()
}
