package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TxStatus tracks a submitted transaction through confirmation.
type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxConfirmed TxStatus = "confirmed"
	TxFailed    TxStatus = "failed"
)

// SubmittedTx is the outcome of a transaction submission.
type SubmittedTx struct {
	Hash        common.Hash
	Nonce       uint64
	GasUsed     uint64
	BlockNumber uint64
	Status      TxStatus
	SubmittedAt time.Time
	ConfirmedAt time.Time
}
