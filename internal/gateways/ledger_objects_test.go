package gateways

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/polygonid/attestation-bridge/internal/core/domain"
)

const jsonOutput = `warning: client/server api version mismatch
{
  "digest": "9xYz",
  "objectChanges": [
    {"type": "mutated", "objectType": "0x2::coin::Coin<0x2::sui::SUI>", "objectId": "0x0001"},
    {"type": "created", "objectType": "0xpkg::did_registry::UserDID", "objectId": "0x5f3a"},
    {"type": "created", "objectType": "0xpkg::did_registry::Receipt", "objectId": "0x1111"}
  ]
}`

func TestCreatedObjectsFromJSON(t *testing.T) {
	assert.Equal(t, []domain.CreatedObject{
		{ID: "0x5f3a", Type: "0xpkg::did_registry::UserDID"},
		{ID: "0x1111", Type: "0xpkg::did_registry::Receipt"},
	}, CreatedObjectsFromJSON(jsonOutput))
	assert.Nil(t, CreatedObjectsFromJSON("no json here"))
	assert.Nil(t, CreatedObjectsFromJSON("{broken"))
}

func TestFindRecordID(t *testing.T) {
	tests := []struct {
		name   string
		res    domain.LedgerCommandResult
		wantID string
		found  bool
	}{
		{name: "json stdout", res: domain.LedgerCommandResult{Stdout: jsonOutput}, wantID: "0x5f3a", found: true},
		{name: "text stdout", res: domain.LedgerCommandResult{Stdout: textListing}, wantID: "0x5f3a", found: true},
		{
			name:  "typed objects of another type",
			res:   domain.LedgerCommandResult{CreatedObjects: []domain.CreatedObject{{ID: "0x1", Type: "0xpkg::did_registry::Receipt"}}, Stdout: textListing},
			found: false,
		},
		{
			name:  "object type too far away",
			res:   domain.LedgerCommandResult{Stdout: "ObjectID: 0x5f3a\na\nb\nc\nd\nObjectType: 0xpkg::did_registry::UserDID"},
			found: false,
		},
		{
			name:   "object type at the edge of the window",
			res:    domain.LedgerCommandResult{Stdout: "ObjectID: 0x5f3a\na\nb\nc\nObjectType: 0xpkg::did_registry::UserDID"},
			wantID: "0x5f3a",
			found:  true,
		},
		{
			name:   "type belongs to the next object",
			res:    domain.LedgerCommandResult{Stdout: "ObjectID: 0x1111\nObjectID: 0x5f3a\nObjectType: 0xpkg::did_registry::UserDID"},
			wantID: "0x5f3a",
			found:  true,
		},
		{name: "object id without 0x", res: domain.LedgerCommandResult{Stdout: "ObjectID: none\nObjectType: 0xpkg::did_registry::UserDID"}, found: false},
		{name: "empty", res: domain.LedgerCommandResult{}, found: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			id, ok := findRecordID(&tc.res, recordType)
			assert.Equal(t, tc.found, ok)
			assert.Equal(t, tc.wantID, id)
		})
	}
}
