package model

import "time"

// Action kinds recorded in the journal.
const (
	ActionWithdraw = "withdraw"
	ActionSwap     = "swap"
	ActionMint     = "mint"
)

// ActionRecord is a journal entry for a confirmed on-chain action.
type ActionRecord struct {
	TickID      string    `json:"tick_id"`
	Kind        string    `json:"kind"`
	TxHash      string    `json:"tx_hash"`
	BlockNumber uint64    `json:"block_number"`
	PositionID  string    `json:"position_id,omitempty"`
	TickLower   int32     `json:"tick_lower"`
	TickUpper   int32     `json:"tick_upper"`
	Amount0     string    `json:"amount0"`
	Amount1     string    `json:"amount1"`
	RecordedAt  time.Time `json:"recorded_at"`
}
