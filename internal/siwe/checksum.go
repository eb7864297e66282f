package siwe

import (
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/sha3"
)

// ErrInvalidAddress is returned for anything that is not 0x followed by 40 hex digits.
var ErrInvalidAddress = errors.New("siwe: invalid address format")

// ChecksumAddress normalizes an account address to its EIP-55 mixed-case form.
// Input case is not checked, mirroring wallet libraries that accept any case.
func ChecksumAddress(address string) (string, error) {
	if len(address) != 42 || !(strings.HasPrefix(address, "0x") || strings.HasPrefix(address, "0X")) {
		return "", ErrInvalidAddress
	}
	lower := strings.ToLower(address[2:])
	if _, err := hex.DecodeString(lower); err != nil {
		return "", ErrInvalidAddress
	}

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(lower))
	digest := h.Sum(nil)

	out := make([]byte, 0, 42)
	out = append(out, '0', 'x')
	for i := 0; i < len(lower); i++ {
		c := lower[i]
		nibble := digest[i/2]
		if i%2 == 0 {
			nibble >>= 4
		} else {
			nibble &= 0x0f
		}
		if c >= 'a' && c <= 'f' && nibble >= 8 {
			c -= 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out), nil
}

// IsChecksummed reports whether address is already in its EIP-55 form.
func IsChecksummed(address string) bool {
	sum, err := ChecksumAddress(address)
	return err == nil && sum == address
}
