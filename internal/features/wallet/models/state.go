package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Flow string

const (
	FlowWithdrawal Flow = "withdrawal"
	FlowTip        Flow = "tip"
)

type WithdrawalStep string

const (
	StepAmount      WithdrawalStep = "amount"
	StepDestination WithdrawalStep = "destination"
	StepConfirm     WithdrawalStep = "confirm"
)

// WithdrawalState carries the progress of one withdrawal. Amount is zero
// until the amount step has passed, Destination empty until the destination
// step has passed.
type WithdrawalState struct {
	Step        WithdrawalStep  `json:"step"`
	Amount      decimal.Decimal `json:"amount"`
	Destination string          `json:"destination,omitempty"`
}

// TipState only exists in its confirm stage: target and amount are collected
// from a single message, so there are no intermediate steps to track.
type TipState struct {
	Amount            decimal.Decimal `json:"amount"`
	RecipientID       int64           `json:"recipient_id"`
	RecipientUsername string          `json:"recipient_username"`
	OriginChatID      int64           `json:"origin_chat_id"`
	SenderUsername    string          `json:"sender_username"`
}

// ConversationState is the single pending-flow record per user. The Flow tag
// selects which variant is populated; each variant carries only the fields
// its flow needs.
type ConversationState struct {
	Flow       Flow             `json:"flow"`
	Withdrawal *WithdrawalState `json:"withdrawal,omitempty"`
	Tip        *TipState        `json:"tip,omitempty"`
}

func NewWithdrawalState() *ConversationState {
	return &ConversationState{
		Flow:       FlowWithdrawal,
		Withdrawal: &WithdrawalState{Step: StepAmount},
	}
}

func NewTipState(tip *TipState) *ConversationState {
	return &ConversationState{Flow: FlowTip, Tip: tip}
}

// PendingTransfer is the durable record written before a transfer is
// submitted to the ledger. It closes the window between "submit" and
// "report": a crash in between leaves the record behind for reconciliation.
type PendingTransfer struct {
	Ref         string          `json:"ref"`
	UserID      int64           `json:"user_id"`
	Flow        Flow            `json:"flow"`
	Destination string          `json:"destination"`
	Amount      decimal.Decimal `json:"amount"`
	CreatedAt   time.Time       `json:"created_at"`
}
