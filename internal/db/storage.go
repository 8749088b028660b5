package db

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/polygonid/attestation-bridge/internal/log"
)

// Storage defines the postgres storage
type Storage struct {
	Pgx *pgxpool.Pool
}

// NewStorage creates and returns a new Pgx storage connection
func NewStorage(ctx context.Context, connectionString string) (*Storage, error) {
	pgxConn, err := pgxpool.Connect(ctx, connectionString)
	if err != nil {
		return nil, err
	}
	return &Storage{
		Pgx: pgxConn,
	}, nil
}

// Ping checks the database connection
func (s *Storage) Ping(ctx context.Context) error {
	return s.Pgx.Ping(ctx)
}

// Close all connections to database
func (s *Storage) Close(ctx context.Context) error {
	log.Info(ctx, "pgx is closing connection")
	s.Pgx.Close()
	return nil
}
