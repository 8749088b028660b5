package ports

import (
	"context"

	"github.com/polygonid/attestation-bridge/internal/core/domain"
)

// LedgerExecutor runs a command against the ledger client tooling
type LedgerExecutor interface {
	Execute(ctx context.Context, cmd domain.LedgerCommand) (*domain.LedgerCommandResult, error)
	Ping(ctx context.Context) error
}

// LedgerCommitter performs the two phase commit of an attestation.
type LedgerCommitter interface {
	// OpenRecord starts a verification record for wallet. A nil record with a nil error means the
	// command succeeded but the created record could not be located.
	OpenRecord(ctx context.Context, userWallet string, didType uint8) (*domain.LedgerRecord, error)
	// FinalizeRecord writes the verdict, signature and evidence on an opened record.
	FinalizeRecord(ctx context.Context, req domain.FinalizeRequest) error
}
