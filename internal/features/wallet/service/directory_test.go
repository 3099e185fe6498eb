package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tipjar-backend/internal/features/wallet/models"
	"tipjar-backend/internal/features/wallet/repository"
)

type stubUsers struct {
	byID    map[int64]*models.User
	byName  map[string]int64
	updates int
}

func newStubUsers() *stubUsers {
	return &stubUsers{byID: make(map[int64]*models.User), byName: make(map[string]int64)}
}

func (s *stubUsers) GetByID(ctx context.Context, id int64) (*models.User, error) {
	user, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *stubUsers) Create(ctx context.Context, user *models.User) error {
	return s.store(user)
}

func (s *stubUsers) Update(ctx context.Context, user *models.User) error {
	s.updates++
	return s.store(user)
}

func (s *stubUsers) store(user *models.User) error {
	copied := *user
	s.byID[user.ID] = &copied
	if user.Username != "" {
		s.byName[strings.ToLower(user.Username)] = user.ID
	}
	return nil
}

func (s *stubUsers) ResolveUsername(ctx context.Context, username string) (int64, error) {
	id, ok := s.byName[strings.ToLower(username)]
	if !ok {
		return 0, repository.ErrNotFound
	}
	return id, nil
}

func (s *stubUsers) DropUsername(ctx context.Context, username string) error {
	delete(s.byName, strings.ToLower(username))
	return nil
}

type stubCreator struct {
	created int
	err     error
}

func (c *stubCreator) CreateWallet() (*models.Wallet, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.created++
	return &models.Wallet{
		Address:    fmt.Sprintf("DAG0addr%d", c.created),
		PublicKey:  "pub",
		PrivateKey: "priv",
	}, nil
}

func TestEnsureUserCreatesOnce(t *testing.T) {
	ctx := context.Background()
	users := newStubUsers()
	d := NewDirectory(users, &stubCreator{})

	first, err := d.EnsureUser(ctx, 1, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", first.Username)

	second, err := d.EnsureUser(ctx, 1, "alice")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, users.byID, 1)
}

func TestEnsureUserRefreshesUsername(t *testing.T) {
	ctx := context.Background()
	users := newStubUsers()
	d := NewDirectory(users, &stubCreator{})

	_, err := d.EnsureUser(ctx, 1, "alice")
	require.NoError(t, err)

	user, err := d.EnsureUser(ctx, 1, "alicia")
	require.NoError(t, err)
	assert.Equal(t, "alicia", user.Username)

	_, err = users.ResolveUsername(ctx, "alice")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	id, err := users.ResolveUsername(ctx, "alicia")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestFindSkipsRefreshForEmptyUsername(t *testing.T) {
	ctx := context.Background()
	users := newStubUsers()
	d := NewDirectory(users, &stubCreator{})

	_, err := d.EnsureUser(ctx, 1, "alice")
	require.NoError(t, err)
	updatesBefore := users.updates

	// Callback queries carry no username; the stored one must survive.
	user, err := d.Find(ctx, 1, "")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, updatesBefore, users.updates)
}

func TestFindUnknownUser(t *testing.T) {
	d := NewDirectory(newStubUsers(), &stubCreator{})
	_, err := d.Find(context.Background(), 404, "ghost")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestEnsureWalletIsIdempotent(t *testing.T) {
	ctx := context.Background()
	users := newStubUsers()
	creator := &stubCreator{}
	d := NewDirectory(users, creator)

	user, err := d.EnsureUser(ctx, 1, "alice")
	require.NoError(t, err)

	require.NoError(t, d.EnsureWallet(ctx, user))
	address := user.Wallet.Address

	require.NoError(t, d.EnsureWallet(ctx, user))
	assert.Equal(t, address, user.Wallet.Address, "an existing wallet is never replaced")
	assert.Equal(t, 1, creator.created)
}

func TestEnsureWalletCreatorFailure(t *testing.T) {
	ctx := context.Background()
	users := newStubUsers()
	d := NewDirectory(users, &stubCreator{err: assert.AnError})

	user, err := d.EnsureUser(ctx, 1, "alice")
	require.NoError(t, err)

	require.Error(t, d.EnsureWallet(ctx, user))
	assert.Nil(t, user.Wallet)

	stored, err := users.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, stored.Wallet, "a failed creation must not persist a partial wallet")
}

func TestAcceptDisclaimerOnlyOnce(t *testing.T) {
	ctx := context.Background()
	users := newStubUsers()
	d := NewDirectory(users, &stubCreator{})

	user, err := d.EnsureUser(ctx, 1, "alice")
	require.NoError(t, err)

	require.NoError(t, d.AcceptDisclaimer(ctx, user))
	require.True(t, user.AcceptedDisclaimer())
	firstAccepted := *user.DisclaimerAcceptedAt

	require.NoError(t, d.AcceptDisclaimer(ctx, user))
	assert.Equal(t, firstAccepted, *user.DisclaimerAcceptedAt, "re-acceptance must not move the timestamp")
}

func TestResolveUsername(t *testing.T) {
	ctx := context.Background()
	users := newStubUsers()
	d := NewDirectory(users, &stubCreator{})

	_, err := d.EnsureUser(ctx, 7, "Bob")
	require.NoError(t, err)

	for _, input := range []string{"bob", "@bob", "@BOB"} {
		user, err := d.ResolveUsername(ctx, input)
		require.NoError(t, err, "input %q", input)
		assert.Equal(t, int64(7), user.ID)
	}

	_, err = d.ResolveUsername(ctx, "@")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = d.ResolveUsername(ctx, "@ghost")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
