package bot

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "tipjar-backend/internal/common/errors"
	"tipjar-backend/internal/common/logger"
	"tipjar-backend/internal/features/wallet/models"
	"tipjar-backend/internal/features/wallet/repository"
	"tipjar-backend/internal/features/wallet/service"
	"tipjar-backend/internal/i18n"
)

// amountPrecision is the maximum number of decimal places an amount may
// carry, matching the ledger's native precision.
const amountPrecision = 8

// Engine owns the withdrawal and tip state machines. Every inbound event
// advances the persisted state by at most one step and emits exactly one
// outbound message or edit.
type Engine struct {
	directory *service.Directory
	states    repository.StateRepository
	pending   repository.PendingTransferRepository
	gateway   Gateway
	ledger    Ledger
	catalog   *i18n.Catalog
}

func NewEngine(
	directory *service.Directory,
	states repository.StateRepository,
	pending repository.PendingTransferRepository,
	gateway Gateway,
	ledger Ledger,
	catalog *i18n.Catalog,
) *Engine {
	return &Engine{
		directory: directory,
		states:    states,
		pending:   pending,
		gateway:   gateway,
		ledger:    ledger,
		catalog:   catalog,
	}
}

// StartWithdrawal opens a fresh withdrawal flow, discarding whatever flow
// was pending, and prompts for the amount.
func (e *Engine) StartWithdrawal(ctx context.Context, user *models.User, lang string) error {
	if err := e.states.Set(ctx, user.ID, models.NewWithdrawalState()); err != nil {
		return apperrors.NewStoreError("setState", err).WithUserID(user.ID)
	}
	return e.gateway.SendText(user.ID, e.catalog.String(lang, "withdrawal.amount", nil))
}

// Continue feeds one free-text message into the pending flow. With no flow
// pending the text is not a flow step and gets the unknown-command hint.
func (e *Engine) Continue(ctx context.Context, user *models.User, lang, text string) error {
	state, err := e.states.Get(ctx, user.ID)
	if err != nil {
		return apperrors.NewStoreError("getState", err).WithUserID(user.ID)
	}
	if state == nil {
		return e.gateway.SendText(user.ID, e.catalog.String(lang, "errors.unknown_command", nil))
	}

	switch state.Flow {
	case models.FlowWithdrawal:
		if state.Withdrawal == nil {
			_ = e.states.Clear(ctx, user.ID)
			return apperrors.NewInvariantError("withdrawal state without withdrawal fields").WithUserID(user.ID)
		}
		switch state.Withdrawal.Step {
		case models.StepAmount:
			return e.withdrawalAmount(ctx, user, lang, text, state)
		case models.StepDestination:
			return e.withdrawalDestination(ctx, user, lang, text, state)
		case models.StepConfirm:
			// Confirmation is callback-only, free text never executes it.
			return e.gateway.SendText(user.ID, e.catalog.String(lang, "errors.use_buttons", nil))
		}
		_ = e.states.Clear(ctx, user.ID)
		return apperrors.NewInvariantError("withdrawal state with unknown step").WithUserID(user.ID)
	case models.FlowTip:
		return e.gateway.SendText(user.ID, e.catalog.String(lang, "errors.use_buttons", nil))
	}

	_ = e.states.Clear(ctx, user.ID)
	return apperrors.NewInvariantError("conversation state with unknown flow").WithUserID(user.ID)
}

func (e *Engine) withdrawalAmount(ctx context.Context, user *models.User, lang, text string, state *models.ConversationState) error {
	amount, ok := parseAmount(text)
	if !ok {
		// Invalid input keeps the flow on the same step.
		return e.gateway.SendText(user.ID, e.catalog.String(lang, "withdrawal.errors.invalid_amount", nil))
	}

	// Balance is checked live at validation time, not cached from entry.
	balance, err := e.ledger.GetBalance(ctx, user.Wallet)
	if err != nil {
		// State untouched: the same amount can simply be resubmitted.
		_ = e.gateway.SendText(user.ID, e.catalog.String(lang, "errors.transient", nil))
		return err
	}
	if amount.GreaterThan(balance) {
		// Insufficient balance aborts the whole flow.
		if err := e.states.Clear(ctx, user.ID); err != nil {
			return apperrors.NewStoreError("clearState", err).WithUserID(user.ID)
		}
		return e.gateway.SendText(user.ID, e.catalog.String(lang, "withdrawal.errors.insufficient_balance", map[string]string{
			"balance": balance.String(),
			"amount":  amount.String(),
		}))
	}

	state.Withdrawal.Amount = amount
	state.Withdrawal.Step = models.StepDestination
	if err := e.states.Set(ctx, user.ID, state); err != nil {
		return apperrors.NewStoreError("setState", err).WithUserID(user.ID)
	}
	return e.gateway.SendText(user.ID, e.catalog.String(lang, "withdrawal.destination", map[string]string{
		"amount": amount.String(),
	}))
}

func (e *Engine) withdrawalDestination(ctx context.Context, user *models.User, lang, text string, state *models.ConversationState) error {
	destination := strings.TrimSpace(text)
	if destination == user.Wallet.Address {
		return e.gateway.SendText(user.ID, e.catalog.String(lang, "withdrawal.errors.own_wallet", nil))
	}
	if !e.ledger.ValidateAddress(destination) {
		return e.gateway.SendText(user.ID, e.catalog.String(lang, "withdrawal.errors.invalid_destination", nil))
	}

	state.Withdrawal.Destination = destination
	state.Withdrawal.Step = models.StepConfirm
	if err := e.states.Set(ctx, user.ID, state); err != nil {
		return apperrors.NewStoreError("setState", err).WithUserID(user.ID)
	}
	return e.gateway.SendInline(user.ID,
		e.catalog.String(lang, "withdrawal.confirm", map[string]string{
			"amount":      state.Withdrawal.Amount.String(),
			"destination": destination,
		}),
		confirmButtons(e.catalog, lang, "withdrawal"))
}

// StartTip collects target and amount from a single message
// (/tip @username amount[ DAG]) and, when everything checks out, parks the
// flow in its confirm state.
func (e *Engine) StartTip(ctx context.Context, user *models.User, lang string, originChatID int64, text string) error {
	target, amount, ok := parseTipCommand(text)
	if !ok {
		return e.gateway.SendText(user.ID, e.catalog.String(lang, "tip.usage", nil))
	}
	if !amount.IsPositive() || !amount.Equal(amount.Truncate(amountPrecision)) {
		return e.gateway.SendText(user.ID, e.catalog.String(lang, "tip.errors.invalid_amount", nil))
	}
	if strings.EqualFold(target, user.Username) {
		return e.gateway.SendText(user.ID, e.catalog.String(lang, "tip.errors.self_tip", nil))
	}

	recipient, err := e.directory.ResolveUsername(ctx, target)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && recipient.Wallet == nil) {
		return e.notifyNoRecipientWallet(user, lang, originChatID, target)
	}
	if err != nil {
		return apperrors.NewStoreError("resolveUsername", err).WithUserID(user.ID)
	}
	if recipient.ID == user.ID {
		return e.gateway.SendText(user.ID, e.catalog.String(lang, "tip.errors.self_tip", nil))
	}

	balance, err := e.ledger.GetBalance(ctx, user.Wallet)
	if err != nil {
		_ = e.gateway.SendText(user.ID, e.catalog.String(lang, "errors.transient", nil))
		return err
	}
	if amount.GreaterThan(balance) {
		return e.gateway.SendText(user.ID, e.catalog.String(lang, "tip.errors.insufficient_balance", map[string]string{
			"balance": balance.String(),
			"amount":  amount.String(),
		}))
	}

	state := models.NewTipState(&models.TipState{
		Amount:            amount,
		RecipientID:       recipient.ID,
		RecipientUsername: recipient.Username,
		OriginChatID:      originChatID,
		SenderUsername:    user.Username,
	})
	if err := e.states.Set(ctx, user.ID, state); err != nil {
		return apperrors.NewStoreError("setState", err).WithUserID(user.ID)
	}
	return e.gateway.SendInline(user.ID,
		e.catalog.String(lang, "tip.confirm", map[string]string{
			"recipient": recipient.Username,
			"amount":    amount.String(),
		}),
		confirmButtons(e.catalog, lang, "tip"))
}

// notifyNoRecipientWallet tells the sender, and separately the origin chat,
// that the target has no wallet yet. No state is left behind.
func (e *Engine) notifyNoRecipientWallet(user *models.User, lang string, originChatID int64, target string) error {
	text := e.catalog.String(lang, "tip.no_wallet", map[string]string{
		"recipient": strings.TrimPrefix(target, "@"),
	})
	if err := e.gateway.SendText(user.ID, text); err != nil {
		return err
	}
	if originChatID != user.ID {
		return e.gateway.SendText(originChatID, text)
	}
	return nil
}

// ConfirmWithdrawal executes a withdrawal on its confirm callback. The state
// is cleared before the transfer is submitted so a duplicate delivery of the
// same callback finds no state and becomes a no-op.
func (e *Engine) ConfirmWithdrawal(ctx context.Context, userID, chatID int64, messageID int, lang string) error {
	state, err := e.states.Get(ctx, userID)
	if err != nil {
		return apperrors.NewStoreError("getState", err).WithUserID(userID)
	}
	if state == nil || state.Flow != models.FlowWithdrawal {
		return e.gateway.EditMessage(chatID, messageID, e.catalog.String(lang, "errors.nothing_pending", nil), nil)
	}

	w := state.Withdrawal
	if w == nil || w.Step != models.StepConfirm || !w.Amount.IsPositive() || w.Destination == "" {
		// The machine was entered inconsistently. Fatal for this request,
		// never a user-facing retry.
		_ = e.states.Clear(ctx, userID)
		_ = e.gateway.EditMessage(chatID, messageID, e.catalog.String(lang, "errors.transient", nil), nil)
		return apperrors.NewInvariantError("withdrawal confirm with incomplete state").WithUserID(userID)
	}

	user, err := e.confirmUser(ctx, userID, chatID, messageID, lang)
	if user == nil {
		return err
	}

	if err := e.states.Clear(ctx, userID); err != nil {
		return apperrors.NewStoreError("clearState", err).WithUserID(userID)
	}

	tx, err := e.executeTransfer(ctx, user, w.Destination, w.Amount, models.FlowWithdrawal)
	if err != nil {
		_ = e.gateway.EditMessage(chatID, messageID, e.catalog.String(lang, "errors.transient", nil), nil)
		return err
	}

	return e.gateway.EditMessage(chatID, messageID, e.catalog.String(lang, "withdrawal.confirmed", map[string]string{
		"amount":      w.Amount.String(),
		"destination": w.Destination,
		"tx":          tx,
	}), nil)
}

// ConfirmTip executes a tip on its confirm callback and announces it back in
// the chat where the tip was initiated.
func (e *Engine) ConfirmTip(ctx context.Context, userID, chatID int64, messageID int, lang string) error {
	state, err := e.states.Get(ctx, userID)
	if err != nil {
		return apperrors.NewStoreError("getState", err).WithUserID(userID)
	}
	if state == nil || state.Flow != models.FlowTip {
		return e.gateway.EditMessage(chatID, messageID, e.catalog.String(lang, "errors.nothing_pending", nil), nil)
	}

	t := state.Tip
	if t == nil || !t.Amount.IsPositive() || t.RecipientID == 0 {
		_ = e.states.Clear(ctx, userID)
		_ = e.gateway.EditMessage(chatID, messageID, e.catalog.String(lang, "errors.transient", nil), nil)
		return apperrors.NewInvariantError("tip confirm with incomplete state").WithUserID(userID)
	}

	user, err := e.confirmUser(ctx, userID, chatID, messageID, lang)
	if user == nil {
		return err
	}

	recipient, err := e.directory.Find(ctx, t.RecipientID, "")
	if errors.Is(err, repository.ErrNotFound) || (err == nil && recipient.Wallet == nil) {
		// Wallets are never removed, so a vanished recipient means the
		// machine was entered inconsistently.
		_ = e.states.Clear(ctx, userID)
		_ = e.gateway.EditMessage(chatID, messageID, e.catalog.String(lang, "errors.transient", nil), nil)
		return apperrors.NewInvariantError("tip recipient vanished before confirm").WithUserID(userID)
	}
	if err != nil {
		return apperrors.NewStoreError("getUser", err).WithUserID(userID)
	}

	if err := e.states.Clear(ctx, userID); err != nil {
		return apperrors.NewStoreError("clearState", err).WithUserID(userID)
	}

	tx, err := e.executeTransfer(ctx, user, recipient.Wallet.Address, t.Amount, models.FlowTip)
	if err != nil {
		_ = e.gateway.EditMessage(chatID, messageID, e.catalog.String(lang, "errors.transient", nil), nil)
		return err
	}

	if err := e.gateway.EditMessage(chatID, messageID, e.catalog.String(lang, "tip.confirmed", map[string]string{
		"recipient": t.RecipientUsername,
		"amount":    t.Amount.String(),
		"tx":        tx,
	}), nil); err != nil {
		return err
	}

	// The public announcement in the origin chat is part of the contract.
	return e.gateway.SendText(t.OriginChatID, e.catalog.String(lang, "tip.announcement", map[string]string{
		"sender":    t.SenderUsername,
		"recipient": t.RecipientUsername,
		"amount":    t.Amount.String(),
	}))
}

// Decline cancels the pending flow of the given kind. Clearing first keeps a
// duplicate decline harmless.
func (e *Engine) Decline(ctx context.Context, flow models.Flow, userID, chatID int64, messageID int, lang string) error {
	state, err := e.states.Get(ctx, userID)
	if err != nil {
		return apperrors.NewStoreError("getState", err).WithUserID(userID)
	}
	if state == nil || state.Flow != flow {
		return e.gateway.EditMessage(chatID, messageID, e.catalog.String(lang, "errors.nothing_pending", nil), nil)
	}
	if err := e.states.Clear(ctx, userID); err != nil {
		return apperrors.NewStoreError("clearState", err).WithUserID(userID)
	}
	return e.gateway.EditMessage(chatID, messageID, e.catalog.String(lang, string(flow)+".declined", nil), nil)
}

func (e *Engine) confirmUser(ctx context.Context, userID, chatID int64, messageID int, lang string) (*models.User, error) {
	user, err := e.directory.Find(ctx, userID, "")
	if errors.Is(err, repository.ErrNotFound) || (err == nil && user.Wallet == nil) {
		_ = e.states.Clear(ctx, userID)
		_ = e.gateway.EditMessage(chatID, messageID, e.catalog.String(lang, "errors.wallet_missing", nil), nil)
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewStoreError("getUser", err).WithUserID(userID)
	}
	return user, nil
}

// executeTransfer writes the durable pending record, submits the transfer,
// and deletes the record once the outcome is known. On failure the record
// stays behind: the ledger may have accepted the transfer before the error,
// and reconciliation gets to decide.
func (e *Engine) executeTransfer(ctx context.Context, user *models.User, destination string, amount decimal.Decimal, flow models.Flow) (string, error) {
	ref := uuid.NewString()
	record := &models.PendingTransfer{
		Ref:         ref,
		UserID:      user.ID,
		Flow:        flow,
		Destination: destination,
		Amount:      amount,
		CreatedAt:   time.Now(),
	}
	if err := e.pending.Put(ctx, record); err != nil {
		return "", apperrors.NewStoreError("putPendingTransfer", err).WithUserID(user.ID)
	}

	tx, err := e.ledger.Transfer(ctx, user.Wallet, destination, amount)
	if err != nil {
		logger.Warn().Int64("user_id", user.ID).Str("ref", ref).Err(err).
			Msg("Transfer failed, pending record kept for reconciliation")
		return "", err
	}

	if err := e.pending.Delete(ctx, ref); err != nil {
		logger.Warn().Int64("user_id", user.ID).Str("ref", ref).Err(err).
			Msg("Could not delete settled pending transfer")
	}

	logger.Info().Int64("user_id", user.ID).Str("flow", string(flow)).
		Str("tx", tx).Str("amount", amount.String()).Msg("Transfer submitted")
	return tx, nil
}

func parseAmount(text string) (decimal.Decimal, bool) {
	amount, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil {
		return decimal.Zero, false
	}
	if !amount.IsPositive() || !amount.Equal(amount.Truncate(amountPrecision)) {
		return decimal.Zero, false
	}
	return amount, true
}

// parseTipCommand splits "/tip @username amount[ DAG]".
func parseTipCommand(text string) (string, decimal.Decimal, bool) {
	fields := strings.Fields(text)
	if len(fields) < 3 || len(fields) > 4 {
		return "", decimal.Zero, false
	}
	if len(fields) == 4 && !strings.EqualFold(fields[3], "DAG") {
		return "", decimal.Zero, false
	}

	target := fields[1]
	if !strings.HasPrefix(target, "@") || len(target) < 2 {
		return "", decimal.Zero, false
	}

	amount, err := decimal.NewFromString(fields[2])
	if err != nil {
		return "", decimal.Zero, false
	}
	return strings.TrimPrefix(target, "@"), amount, true
}
