package indexer

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// ParseAddresses converts base58 strings into public keys, keeping input
// order and dropping blanks and duplicates.
func ParseAddresses(inputs []string) ([]solana.PublicKey, error) {
	addresses := make([]solana.PublicKey, 0, len(inputs))
	seen := make(map[solana.PublicKey]struct{}, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		key, err := solana.PublicKeyFromBase58(input)
		if err != nil {
			return nil, fmt.Errorf("invalid address %s: %w", input, err)
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		addresses = append(addresses, key)
	}
	return addresses, nil
}
