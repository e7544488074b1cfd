package utils

import (
	"encoding/hex"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
)

// CanonicalAddress reduces an address to a chain-agnostic form so the same account
// seen as a bech32 string on one chain and as hex on another counts once.
//
// bech32 addresses are decoded to their payload and re-emitted as 0x-hex, hex
// addresses are lowercased and 0x-prefixed, anything else is lowercased as-is.
func CanonicalAddress(addr string) string {
	clean := strings.TrimSpace(addr)
	if clean == "" {
		return ""
	}

	if isBech32Like(clean) {
		if payload, ok := decodeBech32(clean); ok {
			return "0x" + hex.EncodeToString(payload)
		}
	}

	hexPart := strings.TrimPrefix(strings.TrimPrefix(clean, "0x"), "0X")
	if hexPart != "" && isHex(hexPart) {
		if len(hexPart) < 40 {
			hexPart = strings.Repeat("0", 40-len(hexPart)) + hexPart
		}
		return "0x" + strings.ToLower(hexPart)
	}

	return strings.ToLower(clean)
}

func decodeBech32(addr string) ([]byte, bool) {
	_, data, err := bech32.Decode(strings.ToLower(addr))
	if err != nil {
		return nil, false
	}
	payload, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, false
	}
	return payload, true
}

func isHex(s string) bool {
	if len(s)%2 == 1 {
		s = "0" + s
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// isBech32Like checks for a 3-10 char prefix, a "1" separator and a long data part
func isBech32Like(addr string) bool {
	sep := strings.LastIndex(addr, "1")
	if sep < 0 {
		return false
	}
	prefix, data := addr[:sep], addr[sep+1:]
	return len(prefix) >= 3 && len(prefix) <= 10 && len(data) >= 30
}
