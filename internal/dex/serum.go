package dex

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"poolOracle/internal/model"
)

var (
	accountHeadPadding = []byte("serum")
	accountTailPadding = []byte("padding")
)

// Order book account flags.
const (
	FlagInitialized uint64 = 1 << iota
	FlagMarket
	FlagOpenOrders
	FlagRequestQueue
	FlagEventQueue
	FlagBids
	FlagAsks
	FlagDisabled
	FlagClosed
	FlagPermissioned
	FlagCrankAuthorityRequired

	knownFlags = FlagCrankAuthorityRequired<<1 - 1
)

// Inner (padding-stripped) layout sizes.
const (
	MarketStateV1Size   = 376
	MarketStateV2Size   = MarketStateV1Size + 3*solana.PublicKeyLength + 992
	OpenOrdersSize      = 3216
	EventQueueHeaderLen = 32
	EventSize           = 88
)

// Event flags.
const (
	EventFill         uint8 = 0x01
	EventOut          uint8 = 0x02
	EventBid          uint8 = 0x04
	EventMaker        uint8 = 0x08
	EventReleaseFunds uint8 = 0x10
)

// stripPadding validates the head and tail markers of an order book account
// and returns the word-aligned payload between them.
func stripPadding(data []byte) ([]byte, error) {
	minLen := len(accountHeadPadding) + len(accountTailPadding)
	if len(data) < minLen {
		return nil, fmt.Errorf("%w: account length %d is too small to contain padding", model.ErrPaddingMismatch, len(data))
	}
	if !bytes.Equal(data[:len(accountHeadPadding)], accountHeadPadding) {
		return nil, fmt.Errorf("%w: head padding", model.ErrPaddingMismatch)
	}
	if !bytes.Equal(data[len(data)-len(accountTailPadding):], accountTailPadding) {
		return nil, fmt.Errorf("%w: tail padding", model.ErrPaddingMismatch)
	}

	inner := data[len(accountHeadPadding) : len(data)-len(accountTailPadding)]
	if len(inner)%8 != 0 {
		return nil, fmt.Errorf("%w: payload length %d is not word aligned", model.ErrDecode, len(inner))
	}
	return inner, nil
}

// MarketState is the V1 market layout. V2 markets carry the same fields
// followed by authority keys and reserved space.
type MarketState struct {
	AccountFlags           uint64
	OwnAddress             solana.PublicKey
	VaultSignerNonce       uint64
	CoinMint               solana.PublicKey
	PcMint                 solana.PublicKey
	CoinVault              solana.PublicKey
	CoinDepositsTotal      uint64
	CoinFeesAccrued        uint64
	PcVault                solana.PublicKey
	PcDepositsTotal        uint64
	PcFeesAccrued          uint64
	PcDustThreshold        uint64
	RequestQueue           solana.PublicKey
	EventQueue             solana.PublicKey
	Bids                   solana.PublicKey
	Asks                   solana.PublicKey
	CoinLotSize            uint64
	PcLotSize              uint64
	FeeRateBps             uint64
	ReferrerRebatesAccrued uint64
	Permissioned           bool
}

// DecodeMarketState parses a full market account, padding included.
func DecodeMarketState(data []byte) (MarketState, error) {
	inner, err := stripPadding(data)
	if err != nil {
		return MarketState{}, err
	}
	if len(inner) < 8 {
		return MarketState{}, fmt.Errorf("%w: market payload is empty", model.ErrDecode)
	}

	flags := binary.LittleEndian.Uint64(inner[:8])
	permissioned := flags&FlagPermissioned != 0
	want := MarketStateV1Size
	if permissioned {
		want = MarketStateV2Size
	}
	if len(inner) < want {
		return MarketState{}, fmt.Errorf("%w: market payload length %d, want at least %d", model.ErrDecode, len(inner), want)
	}

	c := newCursor(inner[:MarketStateV1Size])
	m := MarketState{Permissioned: permissioned}
	m.AccountFlags = c.u64()
	m.OwnAddress = c.pubkey()
	m.VaultSignerNonce = c.u64()
	m.CoinMint = c.pubkey()
	m.PcMint = c.pubkey()
	m.CoinVault = c.pubkey()
	m.CoinDepositsTotal = c.u64()
	m.CoinFeesAccrued = c.u64()
	m.PcVault = c.pubkey()
	m.PcDepositsTotal = c.u64()
	m.PcFeesAccrued = c.u64()
	m.PcDustThreshold = c.u64()
	m.RequestQueue = c.pubkey()
	m.EventQueue = c.pubkey()
	m.Bids = c.pubkey()
	m.Asks = c.pubkey()
	m.CoinLotSize = c.u64()
	m.PcLotSize = c.u64()
	m.FeeRateBps = c.u64()
	m.ReferrerRebatesAccrued = c.u64()
	if err := c.finish("market state"); err != nil {
		return MarketState{}, err
	}

	if err := checkMarketFlags(m.AccountFlags); err != nil {
		return MarketState{}, err
	}
	return m, nil
}

// checkMarketFlags accepts initialized markets, optionally permissioned,
// and tolerates the disabled bit.
func checkMarketFlags(flags uint64) error {
	if flags&^knownFlags != 0 {
		return fmt.Errorf("%w: unknown market flag bits %#x", model.ErrFlagMismatch, flags&^knownFlags)
	}
	required := FlagInitialized | FlagMarket
	if flags&FlagPermissioned != 0 {
		required |= FlagPermissioned
	}
	if flags != required && flags != required|FlagDisabled {
		return fmt.Errorf("%w: market flags %#x", model.ErrFlagMismatch, flags)
	}
	return nil
}

// OpenOrders holds the balances of an open orders account.
type OpenOrders struct {
	AccountFlags    uint64
	Market          solana.PublicKey
	Owner           solana.PublicKey
	NativeCoinFree  uint64
	NativeCoinTotal uint64
	NativePcFree    uint64
	NativePcTotal   uint64
}

// DecodeOpenOrders parses an open orders account, padding included.
func DecodeOpenOrders(data []byte) (OpenOrders, error) {
	inner, err := stripPadding(data)
	if err != nil {
		return OpenOrders{}, err
	}
	if len(inner) < OpenOrdersSize {
		return OpenOrders{}, fmt.Errorf("%w: open orders payload length %d, want at least %d", model.ErrDecode, len(inner), OpenOrdersSize)
	}

	c := newCursor(inner[:72+32])
	o := OpenOrders{}
	o.AccountFlags = c.u64()
	o.Market = c.pubkey()
	o.Owner = c.pubkey()
	o.NativeCoinFree = c.u64()
	o.NativeCoinTotal = c.u64()
	o.NativePcFree = c.u64()
	o.NativePcTotal = c.u64()
	if err := c.finish("open orders"); err != nil {
		return OpenOrders{}, err
	}

	required := FlagInitialized | FlagOpenOrders
	if o.AccountFlags&required != required || o.AccountFlags&FlagClosed != 0 {
		return OpenOrders{}, fmt.Errorf("%w: open orders flags %#x", model.ErrFlagMismatch, o.AccountFlags)
	}
	return o, nil
}

// Event is one entry of a market event queue.
type Event struct {
	Flags             uint8
	OwnerSlot         uint8
	NativeQtyReleased uint64
	NativeQtyPaid     uint64
	NativeFeeOrRebate uint64
	Owner             solana.PublicKey
}

func (e Event) IsFill() bool  { return e.Flags&EventFill != 0 }
func (e Event) IsBid() bool   { return e.Flags&EventBid != 0 }
func (e Event) IsMaker() bool { return e.Flags&EventMaker != 0 }

// EventQueue is a decoded ring buffer of market events.
type EventQueue struct {
	AccountFlags uint64
	Head         uint64
	Count        uint64
	SeqNum       uint64
	ring         []byte
	capacity     uint64
}

// DecodeEventQueue parses an event queue account, padding included. Events
// are decoded lazily by Each.
func DecodeEventQueue(data []byte) (*EventQueue, error) {
	inner, err := stripPadding(data)
	if err != nil {
		return nil, err
	}
	if len(inner) < EventQueueHeaderLen {
		return nil, fmt.Errorf("%w: event queue payload length %d", model.ErrDecode, len(inner))
	}

	c := newCursor(inner[:EventQueueHeaderLen])
	q := &EventQueue{}
	q.AccountFlags = c.u64()
	q.Head = c.u64()
	q.Count = c.u64()
	q.SeqNum = c.u64()
	if err := c.finish("event queue header"); err != nil {
		return nil, err
	}

	required := FlagInitialized | FlagEventQueue
	if q.AccountFlags&required != required {
		return nil, fmt.Errorf("%w: event queue flags %#x", model.ErrFlagMismatch, q.AccountFlags)
	}

	q.ring = inner[EventQueueHeaderLen:]
	q.capacity = uint64(len(q.ring) / EventSize)
	if q.Count > q.capacity {
		return nil, fmt.Errorf("%w: event queue count %d exceeds capacity %d", model.ErrDecode, q.Count, q.capacity)
	}
	if q.Count > 0 && q.Head >= q.capacity {
		return nil, fmt.Errorf("%w: event queue head %d out of range", model.ErrDecode, q.Head)
	}
	return q, nil
}

// Each calls fn for every queued event in ring order.
func (q *EventQueue) Each(fn func(Event) error) error {
	for i := uint64(0); i < q.Count; i++ {
		idx := (q.Head + i) % q.capacity
		ev, err := decodeEvent(q.ring[idx*EventSize : (idx+1)*EventSize])
		if err != nil {
			return err
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
	return nil
}

func decodeEvent(raw []byte) (Event, error) {
	c := newCursor(raw)
	ev := Event{}
	ev.Flags = c.u8()
	ev.OwnerSlot = c.u8()
	c.skip(6) // fee tier, padding
	ev.NativeQtyReleased = c.u64()
	ev.NativeQtyPaid = c.u64()
	ev.NativeFeeOrRebate = c.u64()
	c.skip(16) // order id
	ev.Owner = c.pubkey()
	c.skip(8) // client order id
	if err := c.finish("event"); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// DecodeTokenAmount returns the amount of an SPL token account.
func DecodeTokenAmount(data []byte) (uint64, error) {
	const tokenAccountSize = 165
	if len(data) < tokenAccountSize {
		return 0, fmt.Errorf("%w: token account length %d, want at least %d", model.ErrDecode, len(data), tokenAccountSize)
	}
	c := newCursor(data[:tokenAccountSize])
	c.skip(64) // mint, owner
	amount := c.u64()
	c.skip(36) // delegate
	state := c.u8()
	c.skip(56)
	if err := c.finish("token account"); err != nil {
		return 0, err
	}
	if state == 0 {
		return 0, fmt.Errorf("%w: token account is not initialized", model.ErrDecode)
	}
	return amount, nil
}
