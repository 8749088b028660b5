package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/polygonid/attestation-bridge/internal/log"
)

// KafkaConfig configures a kafka topic consumer.
type KafkaConfig struct {
	Brokers    []string
	Topic      string
	Group      string
	ClientID   string
	Count      int
	Block      time.Duration
	DeadLetter string
	// RedeliverAfter is how long a delivered record may stay unacknowledged before Read hands it out again.
	RedeliverAfter time.Duration
}

type kafkaStream struct {
	cl      *kgo.Client
	cfg     KafkaConfig
	mu      sync.Mutex
	pending map[string]*pendingRecord
	commits *commitTracker
	now     func() time.Time
}

type pendingRecord struct {
	rec         *kgo.Record
	fields      map[string]string
	attempts    int
	deliveredAt time.Time
}

// NewKafkaStream returns a Stream backed by a kafka consumer group.
// Offsets are committed manually and only over a contiguous run of acknowledged records, so an
// unacknowledged record is consumed again after a restart or a rebalance.
func NewKafkaStream(cfg KafkaConfig) (Stream, error) {
	if cfg.Count <= 0 {
		cfg.Count = 10
	}
	if cfg.Block <= 0 {
		cfg.Block = time.Second
	}
	if cfg.DeadLetter == "" {
		cfg.DeadLetter = cfg.Topic + ".dead"
	}
	if cfg.RedeliverAfter <= 0 {
		cfg.RedeliverAfter = 5 * time.Minute
	}
	k := &kafkaStream{
		cfg:     cfg,
		pending: make(map[string]*pendingRecord),
		commits: newCommitTracker(),
		now:     time.Now,
	}
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.Group),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.DisableAutoCommit(),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.OnPartitionsRevoked(k.release),
		kgo.OnPartitionsLost(k.release),
	}
	if cfg.ClientID != "" {
		opts = append(opts, kgo.ClientID(cfg.ClientID))
	}
	cl, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "creating kafka client")
	}
	k.cl = cl
	return k, nil
}

// release forgets the deliveries and commit state of partitions this consumer no longer owns.
// Their unacknowledged records are consumed again by the new owner.
func (k *kafkaStream) release(ctx context.Context, _ *kgo.Client, partitions map[string][]int32) {
	k.mu.Lock()
	defer k.mu.Unlock()
	dropped := 0
	for id, p := range k.pending {
		if containsPartition(partitions, p.rec.Topic, p.rec.Partition) {
			delete(k.pending, id)
			dropped++
		}
	}
	for topic, parts := range partitions {
		for _, partition := range parts {
			k.commits.forget(topic, partition)
		}
	}
	log.Info(ctx, "kafka partitions released", "partitions", partitions, "dropped", dropped)
}

func containsPartition(partitions map[string][]int32, topic string, partition int32) bool {
	for _, p := range partitions[topic] {
		if p == partition {
			return true
		}
	}
	return false
}

// EnsureGroup creates the topic when missing. The group itself is created by the broker on first join.
func (k *kafkaStream) EnsureGroup(ctx context.Context) error {
	if err := k.cl.Ping(ctx); err != nil {
		return pkgerrors.Wrap(err, "reaching kafka brokers")
	}
	adm := kadm.NewClient(k.cl)
	resp, err := adm.CreateTopics(ctx, 1, -1, nil, k.cfg.Topic, k.cfg.DeadLetter)
	if err != nil {
		return pkgerrors.Wrap(err, "creating topics")
	}
	for _, t := range resp {
		if t.Err != nil && !errors.Is(t.Err, kerr.TopicAlreadyExists) {
			return pkgerrors.Wrapf(t.Err, "creating topic %s", t.Topic)
		}
	}
	return nil
}

func (k *kafkaStream) Read(ctx context.Context) ([]Delivery, error) {
	if redelivered := k.overdue(); len(redelivered) > 0 {
		return redelivered, nil
	}

	pollCtx, cancel := context.WithTimeout(ctx, k.cfg.Block)
	defer cancel()
	fetches := k.cl.PollRecords(pollCtx, k.cfg.Count)
	if fetches.IsClientClosed() {
		return nil, errors.New("kafka client closed")
	}
	for _, fe := range fetches.Errors() {
		if errors.Is(fe.Err, context.DeadlineExceeded) || errors.Is(fe.Err, context.Canceled) {
			continue
		}
		return nil, pkgerrors.Wrapf(fe.Err, "fetching %s[%d]", fe.Topic, fe.Partition)
	}

	var out []Delivery
	k.mu.Lock()
	defer k.mu.Unlock()
	fetches.EachRecord(func(rec *kgo.Record) {
		id := recordID(rec)
		k.commits.track(rec)
		fields, err := flattenRecord(rec.Value)
		if err != nil {
			// Unparseable payloads still go through the pipeline, which rejects them as poison.
			log.Warn(ctx, "kafka record is not a json object", "id", id, "err", err)
			fields = map[string]string{}
		}
		k.pending[id] = &pendingRecord{rec: rec, fields: fields, attempts: 1, deliveredAt: k.now()}
		out = append(out, Delivery{ID: id, Fields: fields, Attempt: 1})
	})
	return out, nil
}

func (k *kafkaStream) overdue() []Delivery {
	k.mu.Lock()
	defer k.mu.Unlock()
	now := k.now()
	var out []Delivery
	for id, p := range k.pending {
		if now.Sub(p.deliveredAt) < k.cfg.RedeliverAfter {
			continue
		}
		p.attempts++
		p.deliveredAt = now
		out = append(out, Delivery{ID: id, Fields: p.fields, Attempt: p.attempts})
		if len(out) == k.cfg.Count {
			break
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (k *kafkaStream) Ack(ctx context.Context, d Delivery) error {
	k.mu.Lock()
	p, ok := k.pending[d.ID]
	if !ok {
		k.mu.Unlock()
		return fmt.Errorf("delivery %s is not pending here, already acknowledged or its partition was released", d.ID)
	}
	delete(k.pending, d.ID)
	commit := k.commits.ack(p.rec)
	k.mu.Unlock()

	if commit == nil {
		return nil
	}
	return pkgerrors.Wrap(k.cl.CommitRecords(ctx, commit), "committing offsets")
}

func (k *kafkaStream) DeadLetter(ctx context.Context, d Delivery, reason string) error {
	k.mu.Lock()
	p, ok := k.pending[d.ID]
	k.mu.Unlock()
	if !ok {
		return fmt.Errorf("delivery %s is not pending here, already acknowledged or its partition was released", d.ID)
	}
	rec := &kgo.Record{
		Topic: k.cfg.DeadLetter,
		Key:   p.rec.Key,
		Value: p.rec.Value,
		Headers: []kgo.RecordHeader{
			{Key: "dead_letter_source_id", Value: []byte(d.ID)},
			{Key: "dead_letter_reason", Value: []byte(reason)},
			{Key: "dead_letter_attempts", Value: []byte(strconv.Itoa(d.Attempt))},
		},
	}
	if err := k.cl.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return pkgerrors.Wrapf(err, "dead lettering %s", d.ID)
	}
	return k.Ack(ctx, d)
}

func (k *kafkaStream) Close() error {
	k.cl.Close()
	return nil
}

func recordID(rec *kgo.Record) string {
	return fmt.Sprintf("%s/%d/%d", rec.Topic, rec.Partition, rec.Offset)
}

// flattenRecord turns a JSON object into string fields. Nested values keep their JSON text.
func flattenRecord(value []byte) (map[string]string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(value, &raw); err != nil {
		return nil, err
	}
	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		if string(v) == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			fields[k] = s
			continue
		}
		fields[k] = string(v)
	}
	return fields, nil
}

type partitionKey struct {
	topic     string
	partition int32
}

type inflightRecord struct {
	rec   *kgo.Record
	acked bool
}

// commitTracker finds, per partition, the highest record closing a run of acknowledged deliveries.
// Only delivered offsets are tracked, so offsets the broker never hands out (compaction, transaction
// markers) do not hold commits back.
type commitTracker struct {
	parts map[partitionKey][]*inflightRecord
}

func newCommitTracker() *commitTracker {
	return &commitTracker{parts: make(map[partitionKey][]*inflightRecord)}
}

func (c *commitTracker) track(rec *kgo.Record) {
	key := partitionKey{rec.Topic, rec.Partition}
	inflight := c.parts[key]
	if n := len(inflight); n > 0 && inflight[n-1].rec.Offset >= rec.Offset {
		return
	}
	c.parts[key] = append(inflight, &inflightRecord{rec: rec})
}

// ack records rec and returns the record to commit, or nil when the run did not advance.
func (c *commitTracker) ack(rec *kgo.Record) *kgo.Record {
	key := partitionKey{rec.Topic, rec.Partition}
	inflight := c.parts[key]
	i := sort.Search(len(inflight), func(i int) bool { return inflight[i].rec.Offset >= rec.Offset })
	if i == len(inflight) || inflight[i].rec.Offset != rec.Offset {
		return nil
	}
	inflight[i].acked = true

	var last *kgo.Record
	n := 0
	for n < len(inflight) && inflight[n].acked {
		last = inflight[n].rec
		n++
	}
	if n == 0 {
		return nil
	}
	if n == len(inflight) {
		delete(c.parts, key)
	} else {
		c.parts[key] = inflight[n:]
	}
	return last
}

func (c *commitTracker) forget(topic string, partition int32) {
	delete(c.parts, partitionKey{topic, partition})
}
