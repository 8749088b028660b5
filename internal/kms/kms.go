package kms

import (
	"context"
	stderr "errors"
	"fmt"

	"github.com/pkg/errors"

	"github.com/polygonid/attestation-bridge/internal/log"
)

// KMSType represents the KMS interface
// revive:disable-next-line
type KMSType interface {
	RegisterKeyProvider(kt KeyType, kp KeyProvider) error
	CreateKey(ctx context.Context, kt KeyType) (KeyID, error)
	LoadOrCreateKey(ctx context.Context, kt KeyType) (KeyID, error)
	PublicKey(keyID KeyID) ([]byte, error)
	Sign(ctx context.Context, keyID KeyID, data []byte) ([]byte, error)
	Verify(keyID KeyID, data, signature []byte) (bool, error)
}

// KeyProvider describes the interface that key providers should match.
type KeyProvider interface {
	// New generates a random key and persists it in the provider storage.
	New(ctx context.Context) (KeyID, error)
	// PublicKey returns byte representation of public key
	PublicKey(keyID KeyID) ([]byte, error)
	// Sign the data and return signature.
	Sign(ctx context.Context, keyID KeyID, data []byte) ([]byte, error)
	// Verify checks signature against data with the public key of keyID.
	Verify(keyID KeyID, data, signature []byte) (bool, error)
	// List returns the keys of this provider type already present in storage.
	List(ctx context.Context) ([]KeyID, error)
}

// StorageManager persists private key material.
type StorageManager interface {
	SaveKeyMaterial(ctx context.Context, keyMaterial map[string]string, id string) error
	searchByKeyType(ctx context.Context, keyType KeyType) ([]KeyID, error)
	searchPrivateKey(ctx context.Context, keyID KeyID) (string, error)
}

// KMS stores keys and secrets
type KMS struct {
	registry map[KeyType]KeyProvider
}

// KeyType describes the type of Key
type KeyType string

// List of supported key types
const (
	KeyTypeEd25519  KeyType = "ED25519"
	KeyTypeEthereum KeyType = "ETH"
)

const (
	jsonKeyType = "key_type"
	jsonKeyData = "key_data"
)

// ErrUnknownKeyType returns when we do not support this type of keys
var ErrUnknownKeyType = stderr.New("unknown key type")

// ErrIncorrectKeyType returns when key provider can't work with given key type
var ErrIncorrectKeyType = stderr.New("incorrect key type")

// ErrKeyTypeConflict raises when we register new key provider with key type
// that already exists
var ErrKeyTypeConflict = stderr.New("key type already registered")

// ErrKeyNotFound raises when the storage has no material for a key
var ErrKeyNotFound = stderr.New("key not found")

// KeyID is a key unique identifier
type KeyID struct {
	Type KeyType
	ID   string
}

// NewKMS create new KMS
func NewKMS() *KMS {
	k := &KMS{registry: make(map[KeyType]KeyProvider)}
	return k
}

// RegisterKeyProvider register new key provider. It is thread unsafe
// function should be called on app initialization or under external mutex.
func (k *KMS) RegisterKeyProvider(kt KeyType, kp KeyProvider) error {
	if _, ok := k.registry[kt]; ok {
		return errors.WithStack(ErrKeyTypeConflict)
	}

	k.registry[kt] = kp
	return nil
}

// CreateKey creates new random key of specified type.
func (k *KMS) CreateKey(ctx context.Context, kt KeyType) (KeyID, error) {
	var id KeyID
	kp, ok := k.registry[kt]
	if !ok {
		return id, errors.WithStack(ErrUnknownKeyType)
	}
	return kp.New(ctx)
}

// PublicKey returns bytes representation for public key for specified key ID
func (k *KMS) PublicKey(keyID KeyID) ([]byte, error) {
	kp, ok := k.registry[keyID.Type]
	if !ok {
		return nil, errors.WithStack(ErrUnknownKeyType)
	}
	return kp.PublicKey(keyID)
}

// Sign signs data with private key
func (k *KMS) Sign(ctx context.Context, keyID KeyID, data []byte) ([]byte, error) {
	kp, ok := k.registry[keyID.Type]
	if !ok {
		return nil, errors.WithStack(ErrUnknownKeyType)
	}

	return kp.Sign(ctx, keyID, data)
}

// Verify checks a signature produced by Sign
func (k *KMS) Verify(keyID KeyID, data, signature []byte) (bool, error) {
	kp, ok := k.registry[keyID.Type]
	if !ok {
		return false, errors.WithStack(ErrUnknownKeyType)
	}
	return kp.Verify(keyID, data, signature)
}

// LoadOrCreateKey returns the first stored key of type kt, creating one when storage is empty.
func (k *KMS) LoadOrCreateKey(ctx context.Context, kt KeyType) (KeyID, error) {
	kp, ok := k.registry[kt]
	if !ok {
		return KeyID{}, errors.WithStack(ErrUnknownKeyType)
	}
	keys, err := kp.List(ctx)
	if err != nil {
		return KeyID{}, err
	}
	if len(keys) > 0 {
		log.Info(ctx, "attestation key loaded", "keyID", keys[0].ID)
		return keys[0], nil
	}
	keyID, err := kp.New(ctx)
	if err != nil {
		return KeyID{}, err
	}
	log.Info(ctx, "attestation key generated", "keyID", keyID.ID)
	return keyID, nil
}

// Open returns an initialized KMS. Keys are kept in the json file at path, or in memory when path is empty.
func Open(path string) (*KMS, error) {
	var storage StorageManager
	if path != "" {
		storage = NewFileStorageManager(path)
	} else {
		storage = NewMemoryStorageManager()
	}

	keyStore := NewKMS()
	if err := keyStore.RegisterKeyProvider(KeyTypeEd25519, NewLocalEd25519KeyProvider(KeyTypeEd25519, storage)); err != nil {
		return nil, fmt.Errorf("cannot register Ed25519 key provider: %+v", err)
	}
	if err := keyStore.RegisterKeyProvider(KeyTypeEthereum, NewLocalEthKeyProvider(KeyTypeEthereum, storage)); err != nil {
		return nil, fmt.Errorf("cannot register Ethereum key provider: %+v", err)
	}
	return keyStore, nil
}
