package model

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// AccountUpdate is a raw account notification for a tracked pool.
type AccountUpdate struct {
	Pool       solana.PublicKey
	Data       []byte
	Slot       uint64
	ReceivedAt time.Time
}
