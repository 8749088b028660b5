package kms

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"

	"github.com/polygonid/attestation-bridge/internal/log"
)

type localStorageProviderFileContent struct {
	KeyType    string `json:"key_type"`
	KeyPath    string `json:"key_path"`
	PrivateKey string `json:"private_key"`
}

type fileStorageManager struct {
	file string
	mu   sync.Mutex
}

// NewFileStorageManager - creates new local storage file manager
func NewFileStorageManager(file string) *fileStorageManager {
	return &fileStorageManager{file: file}
}

func (ls *fileStorageManager) SaveKeyMaterial(ctx context.Context, keyMaterial map[string]string, id string) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	localStorageFileContent, err := readContentFile(ctx, ls.file)
	if err != nil {
		return err
	}
	localStorageFileContent = append(localStorageFileContent, localStorageProviderFileContent{
		KeyPath:    id,
		KeyType:    convertFromKeyType(KeyType(keyMaterial[jsonKeyType])),
		PrivateKey: keyMaterial[jsonKeyData],
	})

	newFileContent, err := json.Marshal(localStorageFileContent)
	if err != nil {
		log.Error(ctx, "cannot marshal file content", "err", err)
		return err
	}
	if err := os.WriteFile(ls.file, newFileContent, 0o600); err != nil {
		log.Error(ctx, "cannot write file", "err", err)
		return err
	}
	return nil
}

func (ls *fileStorageManager) searchByKeyType(ctx context.Context, keyType KeyType) ([]KeyID, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	keyTypeToRead := convertFromKeyType(keyType)
	localStorageFileContent, err := readContentFile(ctx, ls.file)
	if err != nil {
		return nil, err
	}
	keyIDs := make([]KeyID, 0)
	for _, keyMaterial := range localStorageFileContent {
		if keyMaterial.KeyType == keyTypeToRead {
			keyIDs = append(keyIDs, KeyID{
				Type: convertToKeyType(keyTypeToRead),
				ID:   keyMaterial.KeyPath,
			})
		}
	}
	return keyIDs, nil
}

func (ls *fileStorageManager) searchPrivateKey(ctx context.Context, keyID KeyID) (string, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	localStorageFileContent, err := readContentFile(ctx, ls.file)
	if err != nil {
		return "", err
	}
	for _, keyMaterial := range localStorageFileContent {
		if keyMaterial.KeyPath == keyID.ID {
			return keyMaterial.PrivateKey, nil
		}
	}
	return "", ErrKeyNotFound
}

// readContentFile reads the key file. A missing file is an empty key set.
func readContentFile(ctx context.Context, file string) ([]localStorageProviderFileContent, error) {
	fileContent, err := os.ReadFile(file)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		log.Error(ctx, "cannot read file", "err", err, "file", file)
		return nil, err
	}
	if len(fileContent) == 0 {
		return nil, nil
	}

	var localStorageFileContent []localStorageProviderFileContent
	if err := json.Unmarshal(fileContent, &localStorageFileContent); err != nil {
		log.Error(ctx, "cannot unmarshal file content", "err", err)
		return nil, err
	}

	return localStorageFileContent, nil
}

type memoryStorageManager struct {
	mu   sync.Mutex
	keys []localStorageProviderFileContent
}

// NewMemoryStorageManager keeps key material in process memory. Keys die with the process.
func NewMemoryStorageManager() *memoryStorageManager {
	return &memoryStorageManager{}
}

func (m *memoryStorageManager) SaveKeyMaterial(_ context.Context, keyMaterial map[string]string, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, localStorageProviderFileContent{
		KeyPath:    id,
		KeyType:    convertFromKeyType(KeyType(keyMaterial[jsonKeyType])),
		PrivateKey: keyMaterial[jsonKeyData],
	})
	return nil
}

func (m *memoryStorageManager) searchByKeyType(_ context.Context, keyType KeyType) ([]KeyID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keyIDs := make([]KeyID, 0)
	for _, k := range m.keys {
		if k.KeyType == convertFromKeyType(keyType) {
			keyIDs = append(keyIDs, KeyID{Type: keyType, ID: k.KeyPath})
		}
	}
	return keyIDs, nil
}

func (m *memoryStorageManager) searchPrivateKey(_ context.Context, keyID KeyID) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range m.keys {
		if k.KeyPath == keyID.ID {
			return k.PrivateKey, nil
		}
	}
	return "", ErrKeyNotFound
}
