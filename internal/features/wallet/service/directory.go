package service

import (
	"context"
	"errors"
	"strings"

	"tipjar-backend/internal/common/logger"
	"tipjar-backend/internal/features/wallet/models"
	"tipjar-backend/internal/features/wallet/repository"
)

// WalletCreator produces fresh custodial key material.
type WalletCreator interface {
	CreateWallet() (*models.Wallet, error)
}

// Directory owns the user and wallet lifecycle: fetch-or-create, username
// drift, one-wallet-per-user, disclaimer acceptance and username resolution.
type Directory struct {
	users   repository.UserRepository
	wallets WalletCreator
}

func NewDirectory(users repository.UserRepository, wallets WalletCreator) *Directory {
	return &Directory{
		users:   users,
		wallets: wallets,
	}
}

// EnsureUser fetches or creates the user record and keeps the stored
// username in sync with the one seen on the wire.
func (d *Directory) EnsureUser(ctx context.Context, id int64, username string) (*models.User, error) {
	user, err := d.users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		user = models.NewUser(id, username)
		if err := d.users.Create(ctx, user); err != nil {
			return nil, err
		}
		logger.Info().Int64("user_id", id).Msg("User created")
		return user, nil
	}
	if err != nil {
		return nil, err
	}

	return user, d.refreshUsername(ctx, user, username)
}

// Find returns the user record, or ErrNotFound when there is none. The
// stored username is refreshed as a side effect so the reverse index stays
// current on every event, not only on /start.
func (d *Directory) Find(ctx context.Context, id int64, username string) (*models.User, error) {
	user, err := d.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return user, d.refreshUsername(ctx, user, username)
}

func (d *Directory) refreshUsername(ctx context.Context, user *models.User, username string) error {
	if username == "" || user.Username == username {
		return nil
	}

	previous := user.Username
	user.Username = username
	if err := d.users.Update(ctx, user); err != nil {
		return err
	}
	if previous != "" {
		if err := d.users.DropUsername(ctx, previous); err != nil {
			return err
		}
	}
	logger.Debug().Int64("user_id", user.ID).Msg("Username refreshed")
	return nil
}

// EnsureWallet attaches a freshly created wallet to the user if they do not
// have one yet. Idempotent: an existing wallet is never replaced.
func (d *Directory) EnsureWallet(ctx context.Context, user *models.User) error {
	if user.Wallet != nil {
		return nil
	}

	wallet, err := d.wallets.CreateWallet()
	if err != nil {
		return err
	}

	user.Wallet = wallet
	if err := d.users.Update(ctx, user); err != nil {
		return err
	}
	logger.Info().Int64("user_id", user.ID).Str("address", wallet.Address).Msg("Wallet created")
	return nil
}

// AcceptDisclaimer records the acceptance timestamp.
func (d *Directory) AcceptDisclaimer(ctx context.Context, user *models.User) error {
	if user.AcceptedDisclaimer() {
		return nil
	}
	user.AcceptDisclaimer()
	return d.users.Update(ctx, user)
}

// ResolveUsername maps @username (case-insensitive) to the full user record.
func (d *Directory) ResolveUsername(ctx context.Context, username string) (*models.User, error) {
	username = strings.TrimPrefix(username, "@")
	if username == "" {
		return nil, repository.ErrNotFound
	}

	id, err := d.users.ResolveUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return d.users.GetByID(ctx, id)
}
