// internal/utils/wallet.go
package utils

import (
	"encoding/hex"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

var hexAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// IsWalletAddress accepts 0x-prefixed 20-byte hex addresses. All-lower and
// all-upper forms carry no checksum; mixed case must match EIP-55.
func IsWalletAddress(addr string) bool {
	if !hexAddressPattern.MatchString(addr) {
		return false
	}
	body := addr[2:]
	if body == strings.ToLower(body) || body == strings.ToUpper(body) {
		return true
	}
	return ChecksumAddress(addr) == addr
}

// ChecksumAddress returns the EIP-55 mixed-case form of a hex address.
func ChecksumAddress(addr string) string {
	lower := strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(addr, "0x"), "0X"))

	hasher := sha3.NewLegacyKeccak256()
	hasher.Write([]byte(lower))
	digest := hex.EncodeToString(hasher.Sum(nil))

	out := make([]byte, len(lower))
	for i := 0; i < len(lower); i++ {
		ch := lower[i]
		if ch >= 'a' && ch <= 'f' && digest[i] >= '8' {
			ch -= 'a' - 'A'
		}
		out[i] = ch
	}
	return "0x" + string(out)
}

// NormalizeWallet returns the checksummed form, or the input unchanged when
// it is not an address.
func NormalizeWallet(addr string) string {
	addr = strings.TrimSpace(addr)
	if !hexAddressPattern.MatchString(addr) {
		return addr
	}
	return ChecksumAddress(addr)
}
