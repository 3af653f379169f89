package model

import "errors"

var (
	ErrDecode              = errors.New("decode error")
	ErrPaddingMismatch     = errors.New("padding mismatch")
	ErrFlagMismatch        = errors.New("flag mismatch")
	ErrSelfAddressMismatch = errors.New("self address mismatch")
	ErrZeroReserve         = errors.New("zero reserve")
	ErrAccountNotFound     = errors.New("account not found")
	ErrNetwork             = errors.New("network error")
	ErrStorage             = errors.New("storage error")
)

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrDecode, "decode"},
	{ErrPaddingMismatch, "padding_mismatch"},
	{ErrFlagMismatch, "flag_mismatch"},
	{ErrSelfAddressMismatch, "self_address_mismatch"},
	{ErrZeroReserve, "zero_reserve"},
	{ErrAccountNotFound, "account_not_found"},
	{ErrNetwork, "network"},
	{ErrStorage, "storage"},
}

// ErrorKind returns a short label for err, used in logs and metric labels.
func ErrorKind(err error) string {
	if err == nil {
		return "ok"
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "unknown"
}
