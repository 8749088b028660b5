package domain

// Ledger DID types of the registry contract.
const (
	LedgerDIDAgeVerify         uint8 = 1
	LedgerDIDCitizenshipVerify uint8 = 2
)

// Registry module and functions.
const (
	LedgerModule                 = "did_registry"
	LedgerFnStartVerification    = "start_verification"
	LedgerFnUpdateVerifiedStatus = "update_verification_status"
)

// LedgerDIDTypeFor maps a queue DID code to the ledger type. Unknown codes fall back to
// age verification and report known=false.
func LedgerDIDTypeFor(code uint8) (didType uint8, known bool) {
	switch code {
	case 0:
		return LedgerDIDAgeVerify, true
	case 1:
		return LedgerDIDCitizenshipVerify, true
	default:
		return LedgerDIDAgeVerify, false
	}
}

// LedgerCommand is a move call on the ledger.
type LedgerCommand struct {
	PackageID string   `json:"package_id"`
	Module    string   `json:"module"`
	Function  string   `json:"function"`
	TypeArgs  []string `json:"type_args,omitempty"`
	Args      []string `json:"args"`
	GasBudget string   `json:"gas_budget"`
}

// CreatedObject is an object created by a ledger transaction.
type CreatedObject struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// LedgerCommandResult is the answer of a ledger command execution.
type LedgerCommandResult struct {
	Success        bool            `json:"success"`
	Stdout         string          `json:"stdout"`
	Stderr         string          `json:"stderr"`
	ReturnCode     int             `json:"returncode"`
	Command        string          `json:"command,omitempty"`
	CreatedObjects []CreatedObject `json:"created_objects,omitempty"`
}

// LedgerRecord is a verification record opened on the ledger.
type LedgerRecord struct {
	ID string
}

// FinalizeRequest carries the phase two arguments.
type FinalizeRequest struct {
	RecordID             string
	Verified             bool
	Signature            []byte
	SignatureTimestampMs int64
	EvidenceHash         string
}
