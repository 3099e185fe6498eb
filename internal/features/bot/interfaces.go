package bot

import (
	"context"

	"github.com/shopspring/decimal"

	"tipjar-backend/internal/features/wallet/models"
	"tipjar-backend/internal/platform/telegram"
)

// Gateway is the slice of the chat transport the router and flow engine
// need: sending, editing, and membership checks.
type Gateway interface {
	SendText(chatID int64, text string) error
	SendKeyboard(chatID int64, text string, rows [][]string) error
	SendInline(chatID int64, text string, rows [][]telegram.Button) error
	EditMessage(chatID int64, messageID int, text string, rows [][]telegram.Button) error
	MemberStatus(chatID, userID int64) (string, error)
}

// Ledger is the slice of the ledger client the flows need. Balance reads are
// always live; Transfer submits exactly one transfer and returns its
// reference.
type Ledger interface {
	GetBalance(ctx context.Context, wallet *models.Wallet) (decimal.Decimal, error)
	ValidateAddress(address string) bool
	Transfer(ctx context.Context, wallet *models.Wallet, destination string, amount decimal.Decimal) (string, error)
}
