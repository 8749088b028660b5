package event

import (
	"encoding/json"

	"github.com/polygonid/attestation-bridge/pkg/pubsub"
)

const (
	VerificationCompletedEvent = "verificationCompleted" // VerificationCompletedEvent attestation reached a terminal stage
)

// VerificationCompleted defines the verificationCompleted data
type VerificationCompleted struct {
	MessageID    string  `json:"messageID"`
	UserWallet   string  `json:"userWallet"`
	DIDID        uint8   `json:"didID"`
	Result       string  `json:"result"`
	EvidenceHash string  `json:"evidenceHash"`
	RecordID     *string `json:"recordID,omitempty"`
	Stage        string  `json:"stage"`
	VerifiedAt   string  `json:"verifiedAt"`
}

// Marshal marshals the event into a pubsub.Message
func (ev *VerificationCompleted) Marshal() (msg pubsub.Message, err error) {
	return json.Marshal(ev)
}

// Unmarshal creates an event from that message
func (ev *VerificationCompleted) Unmarshal(msg pubsub.Message) error {
	return json.Unmarshal(msg, &ev)
}
