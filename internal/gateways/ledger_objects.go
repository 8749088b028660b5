package gateways

import (
	"encoding/json"
	"strings"
	"unicode"

	"github.com/polygonid/attestation-bridge/internal/core/domain"
)

// objectScanWindow is how many lines after an ObjectID line may carry its ObjectType.
const objectScanWindow = 4

type transactionOutput struct {
	ObjectChanges []struct {
		Type       string `json:"type"`
		ObjectType string `json:"objectType"`
		ObjectID   string `json:"objectId"`
	} `json:"objectChanges"`
}

// CreatedObjectsFromJSON reads the created objects of a JSON transaction output.
// Anything printed before the JSON document is skipped.
func CreatedObjectsFromJSON(output string) []domain.CreatedObject {
	start := strings.IndexByte(output, '{')
	if start < 0 {
		return nil
	}
	var tx transactionOutput
	if err := json.NewDecoder(strings.NewReader(output[start:])).Decode(&tx); err != nil {
		return nil
	}
	var created []domain.CreatedObject
	for _, change := range tx.ObjectChanges {
		if change.Type != "created" || change.ObjectID == "" {
			continue
		}
		created = append(created, domain.CreatedObject{ID: change.ObjectID, Type: change.ObjectType})
	}
	return created
}

// findRecordID returns the id of the created object whose type contains recordType.
// Typed objects win; the plain text listing of stdout is only scanned when none are reported.
func findRecordID(res *domain.LedgerCommandResult, recordType string) (string, bool) {
	objects := res.CreatedObjects
	if len(objects) == 0 {
		objects = CreatedObjectsFromJSON(res.Stdout)
	}
	for _, obj := range objects {
		if strings.Contains(obj.Type, recordType) {
			return obj.ID, true
		}
	}
	if len(objects) > 0 {
		return "", false
	}
	return scanObjectListing(res.Stdout, recordType)
}

// scanObjectListing looks for an "ObjectID: 0x..." line followed, within objectScanWindow lines
// and before the next ObjectID, by an "ObjectType:" line naming recordType.
func scanObjectListing(output, recordType string) (string, bool) {
	lines := strings.Split(output, "\n")
	for i, line := range lines {
		if !strings.Contains(line, "ObjectID:") {
			continue
		}
		start := strings.Index(line, "0x")
		if start < 0 {
			continue
		}
		id := line[start:]
		if end := strings.IndexFunc(id, unicode.IsSpace); end >= 0 {
			id = id[:end]
		}

		last := min(i+objectScanWindow, len(lines)-1)
		for _, next := range lines[i+1 : last+1] {
			if strings.Contains(next, "ObjectType:") && strings.Contains(next, recordType) {
				return id, true
			}
			if strings.Contains(next, "ObjectID:") {
				break
			}
		}
	}
	return "", false
}
