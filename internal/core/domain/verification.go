package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Verification results written to the ledger and signed in the attestation.
const (
	ResultVerified = "verified"
	ResultFailed   = "failed"
)

// VerdictStatusValid is the authority status for a known, active identity number.
const VerdictStatusValid = "valid"

// VerificationRequest is a verification intent read from the queue.
type VerificationRequest struct {
	UserWallet       string
	DIDID            string
	VerificationType string
	DocumentData     string
	ExtractedData    *string
	UserCorrections  *string
	Timestamp        string
	Status           string
}

var requiredRequestFields = []string{"user_wallet", "did_id", "verification_type", "document_data", "timestamp", "status"}

// NewVerificationRequest builds a request from the flat fields of a queue message.
// A missing required field returns a PoisonMessageError.
func NewVerificationRequest(fields map[string]string) (*VerificationRequest, error) {
	for _, key := range requiredRequestFields {
		if _, ok := fields[key]; !ok {
			return nil, &PoisonMessageError{Reason: fmt.Sprintf("missing field %q", key)}
		}
	}
	req := &VerificationRequest{
		UserWallet:       fields["user_wallet"],
		DIDID:            fields["did_id"],
		VerificationType: fields["verification_type"],
		DocumentData:     fields["document_data"],
		Timestamp:        fields["timestamp"],
		Status:           fields["status"],
	}
	if v, ok := fields["extracted_data"]; ok {
		req.ExtractedData = &v
	}
	if v, ok := fields["user_corrections"]; ok {
		req.UserCorrections = &v
	}
	if req.UserWallet == "" {
		return nil, &PoisonMessageError{Reason: "empty user_wallet"}
	}
	return req, nil
}

// DIDCode parses did_id as an unsigned 8 bit code.
func (r *VerificationRequest) DIDCode() (uint8, error) {
	code, err := strconv.ParseUint(r.DIDID, 10, 8)
	if err != nil {
		return 0, &PoisonMessageError{Reason: fmt.Sprintf("did_id %q is not a small unsigned integer", r.DIDID), Err: err}
	}
	return uint8(code), nil
}

// ParseDocument decodes the document_data payload.
func (r *VerificationRequest) ParseDocument() (*DocumentData, error) {
	var doc DocumentData
	if err := json.Unmarshal([]byte(r.DocumentData), &doc); err != nil {
		return nil, &PoisonMessageError{Reason: "document_data is not valid JSON", Err: err}
	}
	if doc.PAN == "" || doc.NameAsPerPAN == "" || doc.DateOfBirth == "" {
		return nil, &PoisonMessageError{Reason: "document_data lacks pan, name_as_per_pan or date_of_birth"}
	}
	if doc.Consent == "" || doc.Reason == "" {
		return nil, &PoisonMessageError{Reason: "document_data lacks consent or reason"}
	}
	return &doc, nil
}

// DocumentData is the identity claim submitted by the user.
type DocumentData struct {
	Entity       *string `json:"@entity,omitempty"`
	PAN          string  `json:"pan"`
	NameAsPerPAN string  `json:"name_as_per_pan"`
	DateOfBirth  string  `json:"date_of_birth"`
	PhoneNumber  *string `json:"phone_number,omitempty"`
	Consent      string  `json:"consent"`
	Reason       string  `json:"reason"`
}

// VerificationVerdict is the authority answer to a verification call.
type VerificationVerdict struct {
	Code          uint16      `json:"code"`
	Timestamp     int64       `json:"timestamp"`
	TransactionID string      `json:"transaction_id"`
	Data          VerdictData `json:"data"`
}

// VerdictData is the adjudication payload of a verdict.
type VerdictData struct {
	Entity               string  `json:"@entity"`
	PAN                  string  `json:"pan"`
	Status               string  `json:"status"`
	Remarks              *string `json:"remarks"`
	NameAsPerPANMatch    bool    `json:"name_as_per_pan_match"`
	DateOfBirthMatch     bool    `json:"date_of_birth_match"`
	Category             string  `json:"category"`
	AadhaarSeedingStatus string  `json:"aadhaar_seeding_status"`
}

// Result classifies the verdict. Only a valid identity with matching name and date of birth is verified.
func (v *VerificationVerdict) Result() string {
	if v.Data.Status == VerdictStatusValid && v.Data.NameAsPerPANMatch && v.Data.DateOfBirthMatch {
		return ResultVerified
	}
	return ResultFailed
}
