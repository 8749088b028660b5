package tests

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/polygonid/attestation-bridge/internal/db"
	"github.com/polygonid/attestation-bridge/internal/db/schema"
)

const (
	defaultTimeOut = 40
)

// NewTestStorage creates a temporary, migrated database on the server at baseURL
func NewTestStorage(baseURL string) (*db.Storage, func(), error) {
	noopTeardown := func() {}
	if baseURL == "" {
		return nil, noopTeardown, errors.New("testdb: no connection string")
	}

	tempDBName := "attestation_bridge_test_" + time.Now().UTC().Format("20060102150405.999999999")
	tempURL, err := url.Parse(baseURL + "/" + tempDBName + "?sslmode=disable")
	if err != nil {
		return nil, noopTeardown, fmt.Errorf("connection string is invalid: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeOut*time.Second)
	defer cancel()

	storage, err := db.NewStorage(ctx, baseURL+"?sslmode=disable")
	if err != nil {
		return nil, noopTeardown, fmt.Errorf("can't connect to database: %v", err)
	}

	_, err = storage.Pgx.Exec(ctx, fmt.Sprintf(`create database "%s";`, tempDBName))
	_ = storage.Close(ctx)
	if err != nil {
		return nil, noopTeardown, fmt.Errorf("failed to create database (%s): %v", tempDBName, err)
	}

	if err := schema.Migrate(ctx, tempURL.String()); err != nil {
		return nil, noopTeardown, fmt.Errorf("can't migrate database %v", err)
	}

	storage, err = db.NewStorage(ctx, tempURL.String())
	if err != nil {
		return nil, noopTeardown, fmt.Errorf("can't connect to database: %v", err)
	}

	teardown := func() {
		_ = storage.Close(context.Background())
	}
	return storage, teardown, nil
}
