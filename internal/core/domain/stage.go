package domain

import "time"

// Stage is the progress of a queue message through the pipeline.
type Stage string

// Message stages
const (
	StageReceived              Stage = "received"
	StageAdjudicated           Stage = "adjudicated"
	StageRejected              Stage = "rejected"
	StageVerifiedPendingCommit Stage = "verified_pending_commit"
	StageRecordOpened          Stage = "record_opened"
	StageRecordFinalized       Stage = "record_finalized"
	StageCommitIncomplete      Stage = "commit_incomplete"
)

// Terminal tells whether the message can be acknowledged once this stage is reached.
func (s Stage) Terminal() bool {
	switch s {
	case StageRejected, StageRecordFinalized, StageCommitIncomplete:
		return true
	}
	return false
}

// AttestationRecord is the journal entry kept for every processed queue message.
type AttestationRecord struct {
	MessageID    string
	UserWallet   string
	DIDID        uint8
	Result       string
	EvidenceHash string
	VerifiedAt   string
	RecordID     *string
	Stage        Stage
	LastError    *string
	Attempts     int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
