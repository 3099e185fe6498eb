package bot

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	apperrors "tipjar-backend/internal/common/errors"
	"tipjar-backend/internal/features/wallet/models"
	"tipjar-backend/internal/features/wallet/repository"
	"tipjar-backend/internal/features/wallet/service"
	"tipjar-backend/internal/i18n"
)

// Router classifies one inbound Telegram update — command, free-text flow
// continuation, or callback — and dispatches it to a stateless handler or to
// the flow engine.
type Router struct {
	engine    *Engine
	directory *service.Directory
	states    repository.StateRepository
	groups    repository.GroupLanguageRepository
	gateway   Gateway
	ledger    Ledger
	catalog   *i18n.Catalog
	botName   string
}

func NewRouter(
	engine *Engine,
	directory *service.Directory,
	states repository.StateRepository,
	groups repository.GroupLanguageRepository,
	gateway Gateway,
	ledger Ledger,
	catalog *i18n.Catalog,
	botName string,
) *Router {
	return &Router{
		engine:    engine,
		directory: directory,
		states:    states,
		groups:    groups,
		gateway:   gateway,
		ledger:    ledger,
		catalog:   catalog,
		botName:   botName,
	}
}

func (r *Router) HandleUpdate(ctx context.Context, update *tgbotapi.Update) error {
	switch {
	case update.CallbackQuery != nil:
		return r.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		return r.handleMessage(ctx, update.Message)
	}
	return nil
}

func (r *Router) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil || msg.From.IsBot {
		return nil
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return nil
	}

	userID := msg.From.ID
	username := msg.From.UserName
	lang := r.language(ctx, msg.From.LanguageCode, msg.Chat)

	command, ignore := r.command(lang, text)
	if ignore {
		return nil
	}

	switch command {
	case "/start":
		return r.handleStart(ctx, userID, username, lang)
	case "/balance":
		return r.handleBalance(ctx, userID, username, lang)
	case "/deposit":
		return r.handleDeposit(ctx, userID, username, lang)
	case "/withdraw":
		return r.handleWithdraw(ctx, userID, username, lang)
	case "/tip":
		return r.handleTip(ctx, userID, username, lang, msg.Chat.ID, text)
	case "/help":
		return r.handleHelp(ctx, userID, lang)
	case "/disclaimer":
		return r.handleDisclaimer(ctx, userID, lang)
	case "/language":
		return r.handleLanguage(ctx, userID, lang, msg.Chat, text)
	}

	// Not a command: either continues the pending flow or earns the
	// unknown-command hint.
	user, err := r.directory.Find(ctx, userID, username)
	if errors.Is(err, repository.ErrNotFound) {
		return r.gateway.SendText(userID, r.catalog.String(lang, "errors.wallet_missing", nil))
	}
	if err != nil {
		return apperrors.NewStoreError("getUser", err).WithUserID(userID)
	}
	return r.engine.Continue(ctx, user, lang, text)
}

// command canonicalizes the message text: slash commands have an optional
// @botname suffix in groups, and the localized reply-keyboard labels double
// as commands. The second result reports a command addressed to another bot.
func (r *Router) command(lang, text string) (string, bool) {
	if strings.HasPrefix(text, "/") {
		cmd := strings.Fields(text)[0]
		if at := strings.Index(cmd, "@"); at > 0 {
			if !strings.EqualFold(cmd[at+1:], r.botName) {
				return "", true
			}
			cmd = cmd[:at]
		}
		switch cmd {
		case "/start", "/balance", "/deposit", "/withdraw", "/tip", "/help", "/disclaimer", "/language":
			return cmd, false
		}
		return "", false
	}

	for _, l := range []string{lang, r.catalog.DefaultLanguage()} {
		switch text {
		case r.catalog.String(l, "buttons.menu.balance", nil):
			return "/balance", false
		case r.catalog.String(l, "buttons.menu.deposit", nil):
			return "/deposit", false
		case r.catalog.String(l, "buttons.menu.withdraw", nil):
			return "/withdraw", false
		case r.catalog.String(l, "buttons.menu.help", nil):
			return "/help", false
		}
	}
	return "", false
}

func (r *Router) handleStart(ctx context.Context, userID int64, username, lang string) error {
	user, err := r.directory.EnsureUser(ctx, userID, username)
	if err != nil {
		return apperrors.NewStoreError("ensureUser", err).WithUserID(userID)
	}
	if err := r.directory.EnsureWallet(ctx, user); err != nil {
		return err
	}
	if err := r.states.Clear(ctx, userID); err != nil {
		return apperrors.NewStoreError("clearState", err).WithUserID(userID)
	}

	return r.gateway.SendKeyboard(userID,
		r.catalog.String(lang, "welcome", map[string]string{"username": user.Username}),
		replyMenu(r.catalog, lang))
}

func (r *Router) handleBalance(ctx context.Context, userID int64, username, lang string) error {
	user, err := r.requireWalletUser(ctx, userID, username, lang)
	if user == nil {
		return err
	}
	if err := r.states.Clear(ctx, userID); err != nil {
		return apperrors.NewStoreError("clearState", err).WithUserID(userID)
	}

	balance, err := r.ledger.GetBalance(ctx, user.Wallet)
	if err != nil {
		_ = r.gateway.SendText(userID, r.catalog.String(lang, "errors.transient", nil))
		return err
	}
	return r.gateway.SendText(userID, r.catalog.String(lang, "balance.text", map[string]string{
		"balance": balance.String(),
	}))
}

func (r *Router) handleDeposit(ctx context.Context, userID int64, username, lang string) error {
	user, err := r.requireWalletUser(ctx, userID, username, lang)
	if user == nil {
		return err
	}
	if err := r.states.Clear(ctx, userID); err != nil {
		return apperrors.NewStoreError("clearState", err).WithUserID(userID)
	}
	if !user.AcceptedDisclaimer() {
		return r.sendDisclaimer(userID, lang)
	}

	return r.gateway.SendText(userID, r.catalog.String(lang, "deposit.text", map[string]string{
		"wallet_address": user.Wallet.Address,
	}))
}

func (r *Router) handleWithdraw(ctx context.Context, userID int64, username, lang string) error {
	user, err := r.requireWalletUser(ctx, userID, username, lang)
	if user == nil {
		return err
	}
	if !user.AcceptedDisclaimer() {
		return r.sendDisclaimer(userID, lang)
	}
	return r.engine.StartWithdrawal(ctx, user, lang)
}

func (r *Router) handleTip(ctx context.Context, userID int64, username, lang string, chatID int64, text string) error {
	user, err := r.requireWalletUser(ctx, userID, username, lang)
	if user == nil {
		return err
	}
	if !user.AcceptedDisclaimer() {
		return r.sendDisclaimer(userID, lang)
	}
	return r.engine.StartTip(ctx, user, lang, chatID, text)
}

func (r *Router) handleHelp(ctx context.Context, userID int64, lang string) error {
	if err := r.states.Clear(ctx, userID); err != nil {
		return apperrors.NewStoreError("clearState", err).WithUserID(userID)
	}
	return r.gateway.SendInline(userID,
		r.catalog.String(lang, "help.title", nil),
		helpButtons(r.catalog, lang))
}

func (r *Router) handleDisclaimer(ctx context.Context, userID int64, lang string) error {
	if err := r.states.Clear(ctx, userID); err != nil {
		return apperrors.NewStoreError("clearState", err).WithUserID(userID)
	}
	return r.sendDisclaimer(userID, lang)
}

// handleLanguage stores a group language preference, admin-only.
func (r *Router) handleLanguage(ctx context.Context, userID int64, lang string, chat *tgbotapi.Chat, text string) error {
	if chat == nil || !(chat.IsGroup() || chat.IsSuperGroup()) {
		return r.gateway.SendText(userID, r.catalog.String(lang, "errors.unknown_command", nil))
	}

	status, err := r.gateway.MemberStatus(chat.ID, userID)
	if err != nil {
		return err
	}
	if status != "creator" && status != "administrator" {
		return r.gateway.SendText(chat.ID, r.catalog.String(lang, "language.admin_only", nil))
	}

	fields := strings.Fields(text)
	if len(fields) < 2 || !r.catalog.Has(fields[1]) {
		requested := ""
		if len(fields) > 1 {
			requested = fields[1]
		}
		return r.gateway.SendText(chat.ID, r.catalog.String(lang, "language.unknown", map[string]string{
			"language":  requested,
			"available": strings.Join(r.catalog.Languages(), ", "),
		}))
	}

	if err := r.groups.Set(ctx, chat.ID, fields[1]); err != nil {
		return apperrors.NewStoreError("saveGroupLanguage", err).WithUserID(userID)
	}
	return r.gateway.SendText(chat.ID, r.catalog.String(fields[1], "language.updated", map[string]string{
		"language": fields[1],
	}))
}

func (r *Router) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb.From == nil || cb.Message == nil {
		return nil
	}
	userID := cb.From.ID
	chatID := cb.Message.Chat.ID
	messageID := cb.Message.MessageID
	lang := r.language(ctx, cb.From.LanguageCode, cb.Message.Chat)

	data := strings.TrimPrefix(cb.Data, "buttons.")
	dot := strings.Index(data, ".")
	if dot <= 0 {
		return nil
	}
	section, subject := data[:dot], data[dot+1:]

	switch section {
	case "withdrawal":
		switch subject {
		case "confirm":
			return r.engine.ConfirmWithdrawal(ctx, userID, chatID, messageID, lang)
		case "decline":
			return r.engine.Decline(ctx, models.FlowWithdrawal, userID, chatID, messageID, lang)
		}
	case "tip":
		switch subject {
		case "confirm":
			return r.engine.ConfirmTip(ctx, userID, chatID, messageID, lang)
		case "decline":
			return r.engine.Decline(ctx, models.FlowTip, userID, chatID, messageID, lang)
		}
	case "disclaimer":
		return r.handleDisclaimerCallback(ctx, userID, chatID, messageID, lang, subject, cb.From.UserName)
	case "help":
		if subject == "return" {
			return r.gateway.EditMessage(chatID, messageID,
				r.catalog.String(lang, "help.title", nil),
				helpButtons(r.catalog, lang))
		}
	}

	// Unknown pairs resolve to a translated informational page with a
	// return button.
	return r.gateway.EditMessage(chatID, messageID,
		r.catalog.String(lang, section+"."+subject, nil),
		returnButton(r.catalog, lang, section))
}

func (r *Router) handleDisclaimerCallback(ctx context.Context, userID, chatID int64, messageID int, lang, subject, username string) error {
	if subject != "accept" {
		return r.gateway.EditMessage(chatID, messageID, r.catalog.String(lang, "disclaimer.declined", nil), nil)
	}

	user, err := r.directory.Find(ctx, userID, username)
	if errors.Is(err, repository.ErrNotFound) {
		return r.gateway.EditMessage(chatID, messageID, r.catalog.String(lang, "errors.wallet_missing", nil), nil)
	}
	if err != nil {
		return apperrors.NewStoreError("getUser", err).WithUserID(userID)
	}
	if err := r.directory.AcceptDisclaimer(ctx, user); err != nil {
		return apperrors.NewStoreError("saveUser", err).WithUserID(userID)
	}
	return r.gateway.EditMessage(chatID, messageID, r.catalog.String(lang, "disclaimer.finished", nil), nil)
}

func (r *Router) sendDisclaimer(userID int64, lang string) error {
	return r.gateway.SendInline(userID,
		r.catalog.String(lang, "disclaimer.text", nil),
		disclaimerButtons(r.catalog, lang))
}

// requireWalletUser resolves the invoking user and insists on an existing
// wallet. A missing user or wallet is a terminal reply, not an error.
func (r *Router) requireWalletUser(ctx context.Context, userID int64, username, lang string) (*models.User, error) {
	user, err := r.directory.Find(ctx, userID, username)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && user.Wallet == nil) {
		return nil, r.gateway.SendText(userID, r.catalog.String(lang, "errors.wallet_missing", nil))
	}
	if err != nil {
		return nil, apperrors.NewStoreError("getUser", err).WithUserID(userID)
	}
	return user, nil
}

// language resolves the reply language: group preference for group chats,
// then the sender's own language when a catalog exists for it, then the
// configured default.
func (r *Router) language(ctx context.Context, code string, chat *tgbotapi.Chat) string {
	if chat != nil && (chat.IsGroup() || chat.IsSuperGroup()) {
		if pref, err := r.groups.Get(ctx, chat.ID); err == nil && pref != "" {
			return pref
		}
	}
	if code != "" && r.catalog.Has(code) {
		return code
	}
	return r.catalog.DefaultLanguage()
}
