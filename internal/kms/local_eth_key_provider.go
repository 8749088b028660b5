package kms

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"errors"

	"github.com/ethereum/go-ethereum/crypto"
)

type localEthKeyProvider struct {
	keyType        KeyType
	storageManager StorageManager
}

// NewLocalEthKeyProvider - creates new key provider for Ethereum keys stored in local storage.
// Data is hashed with Keccak256 before signing.
func NewLocalEthKeyProvider(keyType KeyType, storageManager StorageManager) KeyProvider {
	return &localEthKeyProvider{
		keyType:        keyType,
		storageManager: storageManager,
	}
}

func (ls *localEthKeyProvider) New(ctx context.Context) (KeyID, error) {
	keyID := KeyID{Type: ls.keyType}
	ethPrivKey, err := crypto.GenerateKey()
	if err != nil {
		return keyID, err
	}

	pubKey, ok := ethPrivKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return keyID, errors.New("unexpected public key type")
	}
	keyID.ID = getKeyID(ls.keyType, hex.EncodeToString(crypto.CompressPubkey(pubKey)))

	keyMaterial := map[string]string{
		jsonKeyType: string(KeyTypeEthereum),
		jsonKeyData: hex.EncodeToString(crypto.FromECDSA(ethPrivKey)),
	}
	if err := ls.storageManager.SaveKeyMaterial(ctx, keyMaterial, keyID.ID); err != nil {
		return KeyID{}, err
	}
	return keyID, nil
}

func (ls *localEthKeyProvider) PublicKey(keyID KeyID) ([]byte, error) {
	if keyID.Type != ls.keyType {
		return nil, ErrIncorrectKeyType
	}
	pubHex, err := publicKeyHex(keyID)
	if err != nil {
		return nil, err
	}
	return hex.DecodeString(pubHex)
}

func (ls *localEthKeyProvider) Sign(ctx context.Context, keyID KeyID, data []byte) ([]byte, error) {
	if keyID.Type != ls.keyType {
		return nil, ErrIncorrectKeyType
	}
	privKeyHex, err := ls.storageManager.searchPrivateKey(ctx, keyID)
	if err != nil {
		return nil, err
	}
	privKey, err := crypto.HexToECDSA(privKeyHex)
	if err != nil {
		return nil, err
	}
	return crypto.Sign(crypto.Keccak256(data), privKey)
}

// Verify accepts the 65 byte [R || S || V] signature produced by Sign.
func (ls *localEthKeyProvider) Verify(keyID KeyID, data, signature []byte) (bool, error) {
	pub, err := ls.PublicKey(keyID)
	if err != nil {
		return false, err
	}
	if len(signature) != crypto.SignatureLength {
		return false, nil
	}
	return crypto.VerifySignature(pub, crypto.Keccak256(data), signature[:crypto.RecoveryIDOffset]), nil
}

func (ls *localEthKeyProvider) List(ctx context.Context) ([]KeyID, error) {
	return ls.storageManager.searchByKeyType(ctx, ls.keyType)
}
