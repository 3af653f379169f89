package dex

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"poolOracle/internal/model"
)

// cursor reads little-endian fields one by one. The first short read is
// latched and every later read returns a zero value.
type cursor struct {
	dec *bin.Decoder
	err error
}

func newCursor(data []byte) *cursor {
	return &cursor{dec: bin.NewBinDecoder(data)}
}

func (c *cursor) u8() uint8 {
	if c.err != nil {
		return 0
	}
	v, err := c.dec.ReadUint8()
	if err != nil {
		c.err = err
	}
	return v
}

func (c *cursor) u64() uint64 {
	if c.err != nil {
		return 0
	}
	v, err := c.dec.ReadUint64(bin.LE)
	if err != nil {
		c.err = err
	}
	return v
}

func (c *cursor) pubkey() solana.PublicKey {
	if c.err != nil {
		return solana.PublicKey{}
	}
	b, err := c.dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		c.err = err
		return solana.PublicKey{}
	}
	return solana.PublicKeyFromBytes(b)
}

func (c *cursor) skip(n int) {
	if c.err != nil {
		return
	}
	if err := c.dec.SkipBytes(uint(n)); err != nil {
		c.err = err
	}
}

// finish reports the latched error, or an error if bytes are left over.
func (c *cursor) finish(layout string) error {
	if c.err != nil {
		return fmt.Errorf("%w: %s: %v", model.ErrDecode, layout, c.err)
	}
	if rest := c.dec.Remaining(); rest != 0 {
		return fmt.Errorf("%w: %s: %d trailing bytes", model.ErrDecode, layout, rest)
	}
	return nil
}
