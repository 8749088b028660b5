package repositories

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"

	"github.com/polygonid/attestation-bridge/internal/core/domain"
	"github.com/polygonid/attestation-bridge/internal/core/ports"
	"github.com/polygonid/attestation-bridge/internal/db"
)

type attestation struct {
	conn *db.Storage
}

// NewAttestation returns the postgres attestation journal
func NewAttestation(conn *db.Storage) ports.AttestationRepository {
	return &attestation{conn: conn}
}

// Save inserts or updates the journal entry of a message
func (r *attestation) Save(ctx context.Context, rec *domain.AttestationRecord) error {
	sql := `INSERT INTO attestations (message_id, user_wallet, did_id, result, evidence_hash, verified_at, record_id, stage, last_error, attempts)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (message_id) DO
			UPDATE SET user_wallet=$2, did_id=$3, result=$4, evidence_hash=$5, verified_at=$6, record_id=$7, stage=$8, last_error=$9, attempts=$10, updated_at=now()
			RETURNING created_at, updated_at`

	return r.conn.Pgx.QueryRow(ctx, sql,
		rec.MessageID,
		rec.UserWallet,
		int16(rec.DIDID),
		rec.Result,
		rec.EvidenceHash,
		rec.VerifiedAt,
		rec.RecordID,
		string(rec.Stage),
		rec.LastError,
		rec.Attempts,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
}

// GetByMessageID returns the journal entry of a message
func (r *attestation) GetByMessageID(ctx context.Context, messageID string) (*domain.AttestationRecord, error) {
	sql := `SELECT message_id, user_wallet, did_id, result, evidence_hash, verified_at, record_id, stage, last_error, attempts, created_at, updated_at
			FROM attestations
			WHERE message_id = $1`

	var (
		rec   domain.AttestationRecord
		didID int16
		stage string
	)
	err := r.conn.Pgx.QueryRow(ctx, sql, messageID).Scan(
		&rec.MessageID,
		&rec.UserWallet,
		&didID,
		&rec.Result,
		&rec.EvidenceHash,
		&rec.VerifiedAt,
		&rec.RecordID,
		&stage,
		&rec.LastError,
		&rec.Attempts,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAttestationNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.DIDID = uint8(didID)
	rec.Stage = domain.Stage(stage)
	return &rec, nil
}

func (r *attestation) Ping(ctx context.Context) error {
	return r.conn.Ping(ctx)
}
