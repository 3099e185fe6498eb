package bot

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"tipjar-backend/internal/features/wallet/models"
	"tipjar-backend/internal/features/wallet/repository"
	"tipjar-backend/internal/features/wallet/service"
	"tipjar-backend/internal/i18n"
	"tipjar-backend/internal/platform/telegram"
)

type sentMessage struct {
	chatID int64
	text   string
	rows   [][]telegram.Button
}

type editedMessage struct {
	chatID    int64
	messageID int
	text      string
	rows      [][]telegram.Button
}

type fakeGateway struct {
	texts    []sentMessage
	inlines  []sentMessage
	menus    []sentMessage
	edits    []editedMessage
	statuses map[int64]string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{statuses: make(map[int64]string)}
}

func (g *fakeGateway) SendText(chatID int64, text string) error {
	g.texts = append(g.texts, sentMessage{chatID: chatID, text: text})
	return nil
}

func (g *fakeGateway) SendKeyboard(chatID int64, text string, rows [][]string) error {
	g.menus = append(g.menus, sentMessage{chatID: chatID, text: text})
	return nil
}

func (g *fakeGateway) SendInline(chatID int64, text string, rows [][]telegram.Button) error {
	g.inlines = append(g.inlines, sentMessage{chatID: chatID, text: text, rows: rows})
	return nil
}

func (g *fakeGateway) EditMessage(chatID int64, messageID int, text string, rows [][]telegram.Button) error {
	g.edits = append(g.edits, editedMessage{chatID: chatID, messageID: messageID, text: text, rows: rows})
	return nil
}

func (g *fakeGateway) MemberStatus(chatID, userID int64) (string, error) {
	if status, ok := g.statuses[userID]; ok {
		return status, nil
	}
	return "member", nil
}

func (g *fakeGateway) lastText(t *testing.T) sentMessage {
	t.Helper()
	require.NotEmpty(t, g.texts)
	return g.texts[len(g.texts)-1]
}

func (g *fakeGateway) lastEdit(t *testing.T) editedMessage {
	t.Helper()
	require.NotEmpty(t, g.edits)
	return g.edits[len(g.edits)-1]
}

type transferCall struct {
	source      string
	destination string
	amount      decimal.Decimal
}

type fakeLedger struct {
	balance     decimal.Decimal
	balanceErr  error
	validFn     func(string) bool
	transferErr error
	transfers   []transferCall
}

func newFakeLedger(balance string) *fakeLedger {
	return &fakeLedger{
		balance: decimal.RequireFromString(balance),
		validFn: func(s string) bool { return s != "" },
	}
}

func (l *fakeLedger) GetBalance(ctx context.Context, wallet *models.Wallet) (decimal.Decimal, error) {
	if l.balanceErr != nil {
		return decimal.Zero, l.balanceErr
	}
	return l.balance, nil
}

func (l *fakeLedger) ValidateAddress(address string) bool {
	return l.validFn(address)
}

func (l *fakeLedger) Transfer(ctx context.Context, wallet *models.Wallet, destination string, amount decimal.Decimal) (string, error) {
	if l.transferErr != nil {
		return "", l.transferErr
	}
	l.transfers = append(l.transfers, transferCall{
		source:      wallet.Address,
		destination: destination,
		amount:      amount,
	})
	return fmt.Sprintf("tx-%d", len(l.transfers)), nil
}

type memUsers struct {
	byID   map[int64]*models.User
	byName map[string]int64
}

func newMemUsers() *memUsers {
	return &memUsers{byID: make(map[int64]*models.User), byName: make(map[string]int64)}
}

func (m *memUsers) GetByID(ctx context.Context, id int64) (*models.User, error) {
	user, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (m *memUsers) Create(ctx context.Context, user *models.User) error {
	return m.save(user)
}

func (m *memUsers) Update(ctx context.Context, user *models.User) error {
	return m.save(user)
}

func (m *memUsers) save(user *models.User) error {
	copied := *user
	m.byID[user.ID] = &copied
	if user.Username != "" {
		m.byName[strings.ToLower(user.Username)] = user.ID
	}
	return nil
}

func (m *memUsers) ResolveUsername(ctx context.Context, username string) (int64, error) {
	id, ok := m.byName[strings.ToLower(strings.TrimPrefix(username, "@"))]
	if !ok {
		return 0, repository.ErrNotFound
	}
	return id, nil
}

func (m *memUsers) DropUsername(ctx context.Context, username string) error {
	delete(m.byName, strings.ToLower(strings.TrimPrefix(username, "@")))
	return nil
}

type memStates struct {
	states map[int64]*models.ConversationState
}

func newMemStates() *memStates {
	return &memStates{states: make(map[int64]*models.ConversationState)}
}

func (m *memStates) Get(ctx context.Context, userID int64) (*models.ConversationState, error) {
	state, ok := m.states[userID]
	if !ok {
		return nil, nil
	}
	copied := *state
	if state.Withdrawal != nil {
		w := *state.Withdrawal
		copied.Withdrawal = &w
	}
	if state.Tip != nil {
		tip := *state.Tip
		copied.Tip = &tip
	}
	return &copied, nil
}

func (m *memStates) Set(ctx context.Context, userID int64, state *models.ConversationState) error {
	m.states[userID] = state
	return nil
}

func (m *memStates) Clear(ctx context.Context, userID int64) error {
	delete(m.states, userID)
	return nil
}

type memGroups struct {
	langs map[int64]string
}

func newMemGroups() *memGroups {
	return &memGroups{langs: make(map[int64]string)}
}

func (m *memGroups) Get(ctx context.Context, chatID int64) (string, error) {
	return m.langs[chatID], nil
}

func (m *memGroups) Set(ctx context.Context, chatID int64, language string) error {
	m.langs[chatID] = language
	return nil
}

type memPending struct {
	records map[string]*models.PendingTransfer
}

func newMemPending() *memPending {
	return &memPending{records: make(map[string]*models.PendingTransfer)}
}

func (m *memPending) Put(ctx context.Context, transfer *models.PendingTransfer) error {
	m.records[transfer.Ref] = transfer
	return nil
}

func (m *memPending) Delete(ctx context.Context, ref string) error {
	delete(m.records, ref)
	return nil
}

type fakeWalletCreator struct {
	created int
}

func (f *fakeWalletCreator) CreateWallet() (*models.Wallet, error) {
	f.created++
	return &models.Wallet{
		Address:    fmt.Sprintf("DAG0wallet%d", f.created),
		PublicKey:  fmt.Sprintf("pub%d", f.created),
		PrivateKey: fmt.Sprintf("priv%d", f.created),
	}, nil
}

// rig wires an engine and router over in-memory collaborators.
type rig struct {
	gateway   *fakeGateway
	ledger    *fakeLedger
	users     *memUsers
	states    *memStates
	groups    *memGroups
	pending   *memPending
	creator   *fakeWalletCreator
	directory *service.Directory
	engine    *Engine
	router    *Router
	catalog   *i18n.Catalog
}

func newRig(t *testing.T) *rig {
	t.Helper()

	catalog, err := i18n.Load("en")
	require.NoError(t, err)

	r := &rig{
		gateway: newFakeGateway(),
		ledger:  newFakeLedger("10.00000000"),
		users:   newMemUsers(),
		states:  newMemStates(),
		groups:  newMemGroups(),
		pending: newMemPending(),
		creator: &fakeWalletCreator{},
		catalog: catalog,
	}
	r.directory = service.NewDirectory(r.users, r.creator)
	r.engine = NewEngine(r.directory, r.states, r.pending, r.gateway, r.ledger, catalog)
	r.router = NewRouter(r.engine, r.directory, r.states, r.groups, r.gateway, r.ledger, catalog, "tipjarbot")
	return r
}

// seedUser registers a user with a wallet and an accepted disclaimer.
func (r *rig) seedUser(t *testing.T, id int64, username string) *models.User {
	t.Helper()
	user := models.NewUser(id, username)
	user.Wallet = &models.Wallet{
		Address:    fmt.Sprintf("DAG0seed%d", id),
		PublicKey:  fmt.Sprintf("pub-seed%d", id),
		PrivateKey: fmt.Sprintf("priv-seed%d", id),
	}
	user.AcceptDisclaimer()
	require.NoError(t, r.users.Create(context.Background(), user))
	return user
}
