package kms

import (
	"fmt"
	"strings"
)

const (
	ed25519Name = "ed25519"
	ethereum    = "ethereum"
)

// getKeyID returns key ID string as keyType:publicKeyHex
func getKeyID(keyType KeyType, pubKeyHex string) string {
	return fmt.Sprintf("%v:%v", keyType, pubKeyHex)
}

// publicKeyHex extracts the public key part of a key ID
func publicKeyHex(keyID KeyID) (string, error) {
	prefix := string(keyID.Type) + ":"
	if !strings.HasPrefix(keyID.ID, prefix) {
		return "", ErrIncorrectKeyType
	}
	return strings.TrimPrefix(keyID.ID, prefix), nil
}

// convertToKeyType - converts string to KeyType
// converts from ed25519 to ED25519 and from ethereum to ETH
func convertToKeyType(keyType string) KeyType {
	switch keyType {
	case ed25519Name:
		return KeyTypeEd25519
	case ethereum:
		return KeyTypeEthereum
	default:
		return ""
	}
}

// convertFromKeyType - converts KeyType to string
// converts from ED25519 to ed25519 and from ETH to ethereum
func convertFromKeyType(keyType KeyType) string {
	switch keyType {
	case KeyTypeEd25519:
		return ed25519Name
	case KeyTypeEthereum:
		return ethereum
	default:
		return ""
	}
}
