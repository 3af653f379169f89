package model

import "github.com/gagliardetto/solana-go"

// MarketKeys is the set of order book accounts that belong to a market.
// It is a pure function of the market account and its owning program.
type MarketKeys struct {
	Market       solana.PublicKey `json:"market"`
	RequestQueue solana.PublicKey `json:"request_queue"`
	EventQueue   solana.PublicKey `json:"event_queue"`
	Bids         solana.PublicKey `json:"bids"`
	Asks         solana.PublicKey `json:"asks"`
	CoinVault    solana.PublicKey `json:"coin_vault"`
	PcVault      solana.PublicKey `json:"pc_vault"`
	VaultSigner  solana.PublicKey `json:"vault_signer"`
	CoinMint     solana.PublicKey `json:"coin_mint"`
	PcMint       solana.PublicKey `json:"pc_mint"`
	CoinLotSize  uint64           `json:"coin_lot_size"`
	PcLotSize    uint64           `json:"pc_lot_size"`
}
