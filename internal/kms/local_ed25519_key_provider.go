package kms

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
)

type localEd25519KeyProvider struct {
	keyType        KeyType
	storageManager StorageManager
}

// NewLocalEd25519KeyProvider - creates new key provider for Ed25519 keys stored in local storage
func NewLocalEd25519KeyProvider(keyType KeyType, storageManager StorageManager) KeyProvider {
	return &localEd25519KeyProvider{
		keyType:        keyType,
		storageManager: storageManager,
	}
}

func (ls *localEd25519KeyProvider) New(ctx context.Context) (KeyID, error) {
	keyID := KeyID{Type: ls.keyType}
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return keyID, err
	}
	keyID.ID = getKeyID(ls.keyType, hex.EncodeToString(pub))
	keyMaterial := map[string]string{
		jsonKeyType: string(KeyTypeEd25519),
		jsonKeyData: hex.EncodeToString(priv.Seed()),
	}
	if err := ls.storageManager.SaveKeyMaterial(ctx, keyMaterial, keyID.ID); err != nil {
		return KeyID{}, err
	}
	return keyID, nil
}

func (ls *localEd25519KeyProvider) PublicKey(keyID KeyID) ([]byte, error) {
	if keyID.Type != ls.keyType {
		return nil, ErrIncorrectKeyType
	}
	pubHex, err := publicKeyHex(keyID)
	if err != nil {
		return nil, err
	}
	pub, err := hex.DecodeString(pubHex)
	if err != nil {
		return nil, err
	}
	if len(pub) != ed25519.PublicKeySize {
		return nil, errors.New("invalid ed25519 public key length")
	}
	return pub, nil
}

func (ls *localEd25519KeyProvider) Sign(ctx context.Context, keyID KeyID, data []byte) ([]byte, error) {
	if keyID.Type != ls.keyType {
		return nil, ErrIncorrectKeyType
	}
	seedHex, err := ls.storageManager.searchPrivateKey(ctx, keyID)
	if err != nil {
		return nil, err
	}
	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, err
	}
	if len(seed) != ed25519.SeedSize {
		return nil, errors.New("invalid ed25519 seed length")
	}
	return ed25519.Sign(ed25519.NewKeyFromSeed(seed), data), nil
}

func (ls *localEd25519KeyProvider) Verify(keyID KeyID, data, signature []byte) (bool, error) {
	pub, err := ls.PublicKey(keyID)
	if err != nil {
		return false, err
	}
	return ed25519.Verify(pub, data, signature), nil
}

func (ls *localEd25519KeyProvider) List(ctx context.Context) ([]KeyID, error) {
	return ls.storageManager.searchByKeyType(ctx, ls.keyType)
}
