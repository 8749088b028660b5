package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
)

func TestFlattenRecord(t *testing.T) {
	fields, err := flattenRecord([]byte(`{"user_wallet":"0xabc","did_id":0,"document_data":{"pan":"X"},"user_corrections":null,"extracted_data":null}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"user_wallet":   "0xabc",
		"did_id":        "0",
		"document_data": `{"pan":"X"}`,
	}, fields)

	_, err = flattenRecord([]byte(`not json`))
	assert.Error(t, err)
}

func TestCommitTracker(t *testing.T) {
	rec := func(p int32, off int64) *kgo.Record {
		return &kgo.Record{Topic: "verified-user-data", Partition: p, Offset: off}
	}
	c := newCommitTracker()
	r10, r11, r12 := rec(0, 10), rec(0, 11), rec(0, 12)
	other := rec(1, 3)
	for _, r := range []*kgo.Record{r10, r11, r12, other} {
		c.track(r)
	}

	assert.Nil(t, c.ack(r11), "offset 10 still outstanding")
	assert.Same(t, r11, c.ack(r10))
	assert.Same(t, other, c.ack(other))
	assert.Same(t, r12, c.ack(r12))
	assert.Nil(t, c.ack(rec(2, 0)), "untracked partition")
	assert.Nil(t, c.ack(r12), "already committed")
}

func TestCommitTracker_OffsetGaps(t *testing.T) {
	rec := func(off int64) *kgo.Record {
		return &kgo.Record{Topic: "verified-user-data", Partition: 0, Offset: off}
	}
	c := newCommitTracker()
	r10, r13 := rec(10), rec(13)
	c.track(r10)
	c.track(r13)

	assert.Nil(t, c.ack(r13))
	assert.Same(t, r13, c.ack(r10), "offsets never delivered do not block the commit")
}

func TestCommitTracker_Reassigned(t *testing.T) {
	rec := func(off int64) *kgo.Record {
		return &kgo.Record{Topic: "verified-user-data", Partition: 0, Offset: off}
	}
	c := newCommitTracker()
	r10 := rec(10)
	c.track(r10)
	assert.Same(t, r10, c.ack(r10))

	// another member committed up to 50 while the partition was away
	r51 := rec(51)
	c.track(r51)
	assert.Same(t, r51, c.ack(r51))

	r52, r60 := rec(52), rec(60)
	c.track(r52)
	c.forget("verified-user-data", 0)
	c.track(r60)
	assert.Nil(t, c.ack(r52), "state of a released partition is gone")
	assert.Same(t, r60, c.ack(r60))
}

func TestKafkaStream_Release(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	k := &kafkaStream{
		cfg:     KafkaConfig{Topic: "verified-user-data", Count: 10, RedeliverAfter: time.Minute},
		pending: make(map[string]*pendingRecord),
		commits: newCommitTracker(),
		now:     func() time.Time { return now },
	}
	kept := &kgo.Record{Topic: "verified-user-data", Partition: 1, Offset: 7}
	for _, rec := range []*kgo.Record{
		{Topic: "verified-user-data", Partition: 0, Offset: 3},
		{Topic: "verified-user-data", Partition: 0, Offset: 4},
		kept,
	} {
		k.commits.track(rec)
		k.pending[recordID(rec)] = &pendingRecord{rec: rec, fields: map[string]string{}, attempts: 1, deliveredAt: now}
	}

	k.release(ctx, nil, map[string][]int32{"verified-user-data": {0}})

	require.Len(t, k.pending, 1)
	assert.Contains(t, k.pending, recordID(kept))
	assert.Error(t, k.Ack(ctx, Delivery{ID: "verified-user-data/0/3"}))

	now = now.Add(2 * time.Minute)
	overdue := k.overdue()
	require.Len(t, overdue, 1)
	assert.Equal(t, recordID(kept), overdue[0].ID)
	assert.Equal(t, 2, overdue[0].Attempt)

	assert.Same(t, kept, k.commits.ack(kept))
}

func TestRecordID(t *testing.T) {
	assert.Equal(t, "verified-user-data/2/42", recordID(&kgo.Record{Topic: "verified-user-data", Partition: 2, Offset: 42}))
}
