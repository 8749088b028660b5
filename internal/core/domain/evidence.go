package domain

// EvidenceHashInput is the projection of a verdict and the claimed identity that gets fingerprinted.
// Field order is part of the hash and must not change.
type EvidenceHashInput struct {
	PAN                  string `json:"pan"`
	Status               string `json:"status"`
	NameAsPerPAN         string `json:"name_as_per_pan"`
	DateOfBirth          string `json:"date_of_birth"`
	NameAsPerPANMatch    bool   `json:"name_as_per_pan_match"`
	DateOfBirthMatch     bool   `json:"date_of_birth_match"`
	Category             string `json:"category"`
	AadhaarSeedingStatus string `json:"aadhaar_seeding_status"`
}

// NewEvidenceHashInput binds the verdict to the name and date of birth the claimant asserted.
func NewEvidenceHashInput(verdict *VerificationVerdict, claimedName, claimedDOB string) EvidenceHashInput {
	return EvidenceHashInput{
		PAN:                  verdict.Data.PAN,
		Status:               verdict.Data.Status,
		NameAsPerPAN:         claimedName,
		DateOfBirth:          claimedDOB,
		NameAsPerPANMatch:    verdict.Data.NameAsPerPANMatch,
		DateOfBirthMatch:     verdict.Data.DateOfBirthMatch,
		Category:             verdict.Data.Category,
		AadhaarSeedingStatus: verdict.Data.AadhaarSeedingStatus,
	}
}

// Adjudication is the outcome of processing a verification request against the authority.
type Adjudication struct {
	Result       string
	EvidenceHash string
	VerifiedAt   string
	Verdict      *VerificationVerdict
}
