package repositories

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polygonid/attestation-bridge/internal/core/domain"
	"github.com/polygonid/attestation-bridge/internal/core/ports"
	"github.com/polygonid/attestation-bridge/internal/db/tests"
)

func journals(t *testing.T) map[string]ports.AttestationRepository {
	t.Helper()
	out := map[string]ports.AttestationRepository{"memory": NewAttestationMemory()}
	if url := os.Getenv("POSTGRES_TEST_DATABASE"); url != "" {
		storage, teardown, err := tests.NewTestStorage(url)
		require.NoError(t, err)
		t.Cleanup(teardown)
		out["postgres"] = NewAttestation(storage)
	}
	return out
}

func TestAttestationRepository(t *testing.T) {
	ctx := context.Background()
	for name, repo := range journals(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, repo.Ping(ctx))

			_, err := repo.GetByMessageID(ctx, "1-0")
			assert.ErrorIs(t, err, domain.ErrAttestationNotFound)

			rec := &domain.AttestationRecord{
				MessageID:    "1-0",
				UserWallet:   "0xabc",
				DIDID:        1,
				Result:       domain.ResultVerified,
				EvidenceHash: "7bc3cf1624c2703b10580527cbd6650cc1c16ed5ffbdc8e5de80615c67b64a9a",
				VerifiedAt:   "2025-01-01T00:00:00.123Z",
				Stage:        domain.StageAdjudicated,
				Attempts:     1,
			}
			require.NoError(t, repo.Save(ctx, rec))
			created := rec.CreatedAt

			recordID := "0x5f3a"
			rec.RecordID = &recordID
			rec.Stage = domain.StageRecordOpened
			rec.Attempts = 2
			require.NoError(t, repo.Save(ctx, rec))

			got, err := repo.GetByMessageID(ctx, "1-0")
			require.NoError(t, err)
			assert.Equal(t, domain.StageRecordOpened, got.Stage)
			require.NotNil(t, got.RecordID)
			assert.Equal(t, "0x5f3a", *got.RecordID)
			assert.Nil(t, got.LastError)
			assert.Equal(t, uint8(1), got.DIDID)
			assert.Equal(t, 2, got.Attempts)
			assert.Equal(t, rec.EvidenceHash, got.EvidenceHash)
			assert.True(t, created.Equal(got.CreatedAt))

			*got.RecordID = "mutated"
			again, err := repo.GetByMessageID(ctx, "1-0")
			require.NoError(t, err)
			assert.Equal(t, "0x5f3a", *again.RecordID)
		})
	}
}
