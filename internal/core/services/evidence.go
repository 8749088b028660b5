package services

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/polygonid/attestation-bridge/internal/core/domain"
)

// HashEvidence returns the lowercase hex sha256 of the compact JSON encoding of in.
// Fields keep their declaration order and HTML characters are not escaped.
func HashEvidence(in domain.EvidenceHashInput) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(in); err != nil {
		return "", fmt.Errorf("encoding evidence: %w", err)
	}
	sum := sha256.Sum256(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
	return hex.EncodeToString(sum[:]), nil
}
