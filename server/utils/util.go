package utils

import (
	"github.com/asaskevich/govalidator"
	"github.com/mr-tron/base58"
)

const (
	// ed25519 public keys and program derived addresses
	pubkeyLength = 32
	// ed25519 transaction signatures
	signatureLength = 64
)

func init() {
	govalidator.TagMap["pubkey"] = IsPubkey
	govalidator.TagMap["txid"] = IsTransactionID
}

// IsPubkey reports whether s is a base58 encoded 32 byte key.
func IsPubkey(s string) bool {
	return decodedLength(s) == pubkeyLength
}

// IsTransactionID reports whether s is a base58 encoded transaction
// signature.
func IsTransactionID(s string) bool {
	return decodedLength(s) == signatureLength
}

func decodedLength(s string) int {
	if s == "" {
		return -1
	}
	decoded, err := base58.Decode(s)
	if err != nil {
		return -1
	}
	return len(decoded)
}
