// Package dextest builds raw on-chain account layouts and provides an
// in-memory account fetcher for tests.
package dextest

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"

	"poolOracle/internal/dex"
	"poolOracle/internal/model"
)

var (
	AmmProgram    = solana.MustPublicKeyFromBase58("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8")
	MarketProgram = solana.MustPublicKeyFromBase58("srmqPvymJeFKQ4zGQed1GFppgkRHL9kaELCbyksJtPX")
)

// Key returns a deterministic key filled with seed.
func Key(seed byte) solana.PublicKey {
	return solana.PublicKeyFromBytes(bytes.Repeat([]byte{seed}, solana.PublicKeyLength))
}

// Accounts is an in-memory dex.AccountFetcher.
type Accounts struct {
	mu    sync.Mutex
	data  map[solana.PublicKey][]byte
	fails map[solana.PublicKey]error
	calls int
}

func NewAccounts() *Accounts {
	return &Accounts{
		data:  make(map[solana.PublicKey][]byte),
		fails: make(map[solana.PublicKey]error),
	}
}

func (a *Accounts) Set(addr solana.PublicKey, data []byte) {
	a.mu.Lock()
	a.data[addr] = data
	a.mu.Unlock()
}

func (a *Accounts) Delete(addr solana.PublicKey) {
	a.mu.Lock()
	delete(a.data, addr)
	a.mu.Unlock()
}

// Fail makes every fetch that touches addr return err.
func (a *Accounts) Fail(addr solana.PublicKey, err error) {
	a.mu.Lock()
	a.fails[addr] = err
	a.mu.Unlock()
}

// Calls returns the number of fetch calls served.
func (a *Accounts) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func (a *Accounts) GetAccount(_ context.Context, addr solana.PublicKey) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	return a.lookup(addr)
}

func (a *Accounts) GetMultipleAccounts(_ context.Context, addrs []solana.PublicKey) ([][]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	out := make([][]byte, 0, len(addrs))
	for _, addr := range addrs {
		data, err := a.lookup(addr)
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, nil
}

func (a *Accounts) lookup(addr solana.PublicKey) ([]byte, error) {
	if err, ok := a.fails[addr]; ok {
		return nil, err
	}
	data, ok := a.data[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrAccountNotFound, addr)
	}
	return append([]byte(nil), data...), nil
}

var _ dex.AccountFetcher = (*Accounts)(nil)

// AmmInfo describes the pool fields tests care about.
type AmmInfo struct {
	Status             uint64
	Nonce              uint64
	CoinDecimals       uint64
	PcDecimals         uint64
	CoinLotSize        uint64
	PcLotSize          uint64
	TradeFeeNumerator  uint64
	TradeFeeDenom      uint64
	SwapFeeNumerator   uint64
	SwapFeeDenominator uint64
	NeedTakePnlCoin    uint64
	NeedTakePnlPc      uint64
	CoinVault          solana.PublicKey
	PcVault            solana.PublicKey
	CoinMint           solana.PublicKey
	PcMint             solana.PublicKey
	LpMint             solana.PublicKey
	OpenOrders         solana.PublicKey
	Market             solana.PublicKey
	MarketProgram      solana.PublicKey
	TargetOrders       solana.PublicKey
	AmmOwner           solana.PublicKey
	LpAmount           uint64
}

// Bytes lays out the pool as an AMM v4 account.
func (a AmmInfo) Bytes() []byte {
	buf := make([]byte, dex.AmmInfoSize)
	putU64(buf, 0, a.Status)
	putU64(buf, 8, a.Nonce)
	putU64(buf, 32, a.CoinDecimals)
	putU64(buf, 40, a.PcDecimals)
	putU64(buf, 88, a.CoinLotSize)
	putU64(buf, 96, a.PcLotSize)
	putU64(buf, 144, a.TradeFeeNumerator)
	putU64(buf, 152, a.TradeFeeDenom)
	putU64(buf, 176, a.SwapFeeNumerator)
	putU64(buf, 184, a.SwapFeeDenominator)
	putU64(buf, 192, a.NeedTakePnlCoin)
	putU64(buf, 200, a.NeedTakePnlPc)
	for i, key := range []solana.PublicKey{
		a.CoinVault, a.PcVault, a.CoinMint, a.PcMint, a.LpMint,
		a.OpenOrders, a.Market, a.MarketProgram, a.TargetOrders,
	} {
		copy(buf[336+i*32:], key[:])
	}
	copy(buf[688:], a.AmmOwner[:])
	putU64(buf, 720, a.LpAmount)
	return buf
}

// Market describes a market account. Flags defaults to an initialized market.
type Market struct {
	Flags            uint64
	OwnAddress       solana.PublicKey
	VaultSignerNonce uint64
	CoinMint         solana.PublicKey
	PcMint           solana.PublicKey
	CoinVault        solana.PublicKey
	PcVault          solana.PublicKey
	RequestQueue     solana.PublicKey
	EventQueue       solana.PublicKey
	Bids             solana.PublicKey
	Asks             solana.PublicKey
	CoinLotSize      uint64
	PcLotSize        uint64
}

// Inner returns the padding-stripped market payload.
func (m Market) Inner() []byte {
	flags := m.Flags
	if flags == 0 {
		flags = dex.FlagInitialized | dex.FlagMarket
	}
	size := dex.MarketStateV1Size
	if flags&dex.FlagPermissioned != 0 {
		size = dex.MarketStateV2Size
	}
	buf := make([]byte, size)
	putU64(buf, 0, flags)
	copy(buf[8:], m.OwnAddress[:])
	putU64(buf, 40, m.VaultSignerNonce)
	copy(buf[48:], m.CoinMint[:])
	copy(buf[80:], m.PcMint[:])
	copy(buf[112:], m.CoinVault[:])
	copy(buf[160:], m.PcVault[:])
	copy(buf[216:], m.RequestQueue[:])
	copy(buf[248:], m.EventQueue[:])
	copy(buf[280:], m.Bids[:])
	copy(buf[312:], m.Asks[:])
	putU64(buf, 344, m.CoinLotSize)
	putU64(buf, 352, m.PcLotSize)
	return buf
}

func (m Market) Bytes() []byte {
	return Pad(m.Inner())
}

// Pad frames an inner payload with the order book padding markers.
func Pad(inner []byte) []byte {
	out := make([]byte, 0, len(inner)+12)
	out = append(out, "serum"...)
	out = append(out, inner...)
	return append(out, "padding"...)
}

// VaultSignerNonce finds the first nonce that yields a valid vault signer.
func VaultSignerNonce(market, program solana.PublicKey) uint64 {
	for nonce := uint64(0); nonce < 1024; nonce++ {
		if _, err := dex.VaultSignerKey(nonce, market, program); err == nil {
			return nonce
		}
	}
	panic("no vault signer nonce found")
}

// AmmNonce finds the first nonce that yields a valid amm authority.
func AmmNonce(program solana.PublicKey) uint64 {
	for nonce := 255; nonce >= 0; nonce-- {
		if _, err := dex.AmmAuthority(program, uint8(nonce)); err == nil {
			return uint64(nonce)
		}
	}
	panic("no amm nonce found")
}

// OpenOrders describes an open orders account.
type OpenOrders struct {
	Flags           uint64
	Market          solana.PublicKey
	Owner           solana.PublicKey
	NativeCoinFree  uint64
	NativeCoinTotal uint64
	NativePcFree    uint64
	NativePcTotal   uint64
}

func (o OpenOrders) Bytes() []byte {
	flags := o.Flags
	if flags == 0 {
		flags = dex.FlagInitialized | dex.FlagOpenOrders
	}
	buf := make([]byte, dex.OpenOrdersSize)
	putU64(buf, 0, flags)
	copy(buf[8:], o.Market[:])
	copy(buf[40:], o.Owner[:])
	putU64(buf, 72, o.NativeCoinFree)
	putU64(buf, 80, o.NativeCoinTotal)
	putU64(buf, 88, o.NativePcFree)
	putU64(buf, 96, o.NativePcTotal)
	return Pad(buf)
}

// Event is one queued fill or out event.
type Event struct {
	Flags    uint8
	Owner    solana.PublicKey
	Released uint64
	Paid     uint64
}

// EventQueue lays out events starting at Head in a ring of Capacity slots.
type EventQueue struct {
	Head     uint64
	Capacity int
	Events   []Event
}

func (q EventQueue) Bytes() []byte {
	capacity := q.Capacity
	if capacity == 0 {
		capacity = len(q.Events) + 1
	}
	buf := make([]byte, dex.EventQueueHeaderLen+capacity*dex.EventSize)
	putU64(buf, 0, dex.FlagInitialized|dex.FlagEventQueue)
	putU64(buf, 8, q.Head)
	putU64(buf, 16, uint64(len(q.Events)))
	for i, ev := range q.Events {
		slot := (int(q.Head) + i) % capacity
		off := dex.EventQueueHeaderLen + slot*dex.EventSize
		buf[off] = ev.Flags
		putU64(buf, off+8, ev.Released)
		putU64(buf, off+16, ev.Paid)
		copy(buf[off+48:], ev.Owner[:])
	}
	return Pad(buf)
}

// TokenAccount lays out an initialized SPL token account.
func TokenAccount(mint, owner solana.PublicKey, amount uint64) []byte {
	buf := make([]byte, 165)
	copy(buf[0:], mint[:])
	copy(buf[32:], owner[:])
	putU64(buf, 64, amount)
	buf[108] = 1
	return buf
}

func putU64(buf []byte, off int, v uint64) {
	binary.LittleEndian.PutUint64(buf[off:], v)
}
