package ledger

import (
	"crypto/sha256"

	"github.com/btcsuite/btcutil/base58"
)

const addressPrefix = "DAG"

// pkcsPrefix is the DER prefix for a secp256k1 public key; the address hash
// covers the full encoded key, not just the raw point.
const pkcsPrefix = "3056301006072a8648ce3d020106052b8104000a034200"

// DeriveAddress derives the DAG address for an uncompressed hex public key
// (leading 04): sha256 over the DER-prefixed key hex, base58, the last 36
// characters, with a check digit equal to the digit sum mod 9.
func DeriveAddress(publicKeyHex string) string {
	encoded := pkcsPrefix + publicKeyHex

	hash := sha256.Sum256([]byte(encoded))
	b58 := base58.Encode(hash[:])
	end := b58[len(b58)-36:]

	return addressPrefix + checkDigit(end) + end
}

// ValidateAddress reports whether s is a well-formed DAG address with a
// correct check digit. No network call is made.
func ValidateAddress(s string) bool {
	if len(s) != 40 || s[:3] != addressPrefix {
		return false
	}
	if s[3] < '0' || s[3] > '9' {
		return false
	}
	for i := 4; i < len(s); i++ {
		if !isBase58Char(s[i]) {
			return false
		}
	}
	return string(s[3]) == checkDigit(s[4:])
}

func checkDigit(s string) string {
	sum := 0
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			sum += int(s[i] - '0')
		}
	}
	return string(rune('0' + sum%9))
}

func isBase58Char(c byte) bool {
	switch {
	case c >= '1' && c <= '9':
		return true
	case c >= 'A' && c <= 'Z':
		return c != 'I' && c != 'O'
	case c >= 'a' && c <= 'z':
		return c != 'l'
	default:
		return false
	}
}
