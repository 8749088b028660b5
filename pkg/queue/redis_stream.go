package queue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/polygonid/attestation-bridge/internal/log"
)

// RedisStreamConfig configures a redis stream consumer.
type RedisStreamConfig struct {
	Stream     string
	Group      string
	Consumer   string
	Count      int64
	Block      time.Duration
	DeadLetter string
	// ClaimMinIdle is how long a pending message must sit unacknowledged before another read reclaims it.
	// Negative disables reclaiming.
	ClaimMinIdle time.Duration
}

type redisStream struct {
	rdb         *redis.Client
	cfg         RedisStreamConfig
	mu          sync.Mutex
	lastReclaim time.Time
	now         func() time.Time
}

// NewRedisStream returns a Stream backed by a redis stream and consumer group.
func NewRedisStream(rdb *redis.Client, cfg RedisStreamConfig) Stream {
	if cfg.Block <= 0 {
		cfg.Block = time.Second
	}
	if cfg.Count <= 0 {
		cfg.Count = 10
	}
	if cfg.DeadLetter == "" {
		cfg.DeadLetter = cfg.Stream + ":dead"
	}
	return &redisStream{rdb: rdb, cfg: cfg, now: time.Now}
}

func (s *redisStream) EnsureGroup(ctx context.Context) error {
	err := s.rdb.XGroupCreateMkStream(ctx, s.cfg.Stream, s.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return errors.Wrapf(err, "creating consumer group %s on %s", s.cfg.Group, s.cfg.Stream)
	}
	if err == nil {
		log.Info(ctx, "consumer group created", "stream", s.cfg.Stream, "group", s.cfg.Group)
	}
	return nil
}

func (s *redisStream) Read(ctx context.Context) ([]Delivery, error) {
	reclaimed, err := s.reclaim(ctx)
	if err != nil {
		return nil, err
	}
	if len(reclaimed) > 0 {
		return reclaimed, nil
	}

	streams, err := s.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.cfg.Group,
		Consumer: s.cfg.Consumer,
		Streams:  []string{s.cfg.Stream, ">"},
		Count:    s.cfg.Count,
		Block:    s.cfg.Block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err)
	}

	var out []Delivery
	for _, st := range streams {
		for _, msg := range st.Messages {
			out = append(out, Delivery{ID: msg.ID, Fields: stringFields(msg.Values), Attempt: 1})
		}
	}
	return out, nil
}

// reclaim claims pending messages idle for longer than ClaimMinIdle, whichever consumer holds them.
// The idle filter runs on the server so fresh entries at the head of the list do not hide older ones.
func (s *redisStream) reclaim(ctx context.Context) ([]Delivery, error) {
	if s.cfg.ClaimMinIdle < 0 {
		return nil, nil
	}
	s.mu.Lock()
	now := s.now()
	if !s.lastReclaim.IsZero() && now.Sub(s.lastReclaim) < s.cfg.ClaimMinIdle {
		s.mu.Unlock()
		return nil, nil
	}
	s.lastReclaim = now
	s.mu.Unlock()

	pending, err := s.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: s.cfg.Stream,
		Group:  s.cfg.Group,
		Idle:   s.cfg.ClaimMinIdle,
		Start:  "-",
		End:    "+",
		Count:  s.cfg.Count,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err)
	}

	ids := make([]string, 0, len(pending))
	deliveries := make(map[string]int64, len(pending))
	for _, p := range pending {
		ids = append(ids, p.ID)
		deliveries[p.ID] = p.RetryCount
	}
	if len(ids) == 0 {
		return nil, nil
	}

	msgs, err := s.rdb.XClaim(ctx, &redis.XClaimArgs{
		Stream:   s.cfg.Stream,
		Group:    s.cfg.Group,
		Consumer: s.cfg.Consumer,
		MinIdle:  s.cfg.ClaimMinIdle,
		Messages: ids,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err)
	}

	out := make([]Delivery, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, Delivery{ID: msg.ID, Fields: stringFields(msg.Values), Attempt: int(deliveries[msg.ID]) + 1})
	}
	if len(out) > 0 {
		log.Info(ctx, "reclaimed pending messages", "stream", s.cfg.Stream, "count", len(out))
	}
	return out, nil
}

func (s *redisStream) Ack(ctx context.Context, d Delivery) error {
	if err := s.rdb.XAck(ctx, s.cfg.Stream, s.cfg.Group, d.ID).Err(); err != nil {
		return classify(err)
	}
	return nil
}

func (s *redisStream) DeadLetter(ctx context.Context, d Delivery, reason string) error {
	values := make(map[string]interface{}, len(d.Fields)+3)
	for k, v := range d.Fields {
		values[k] = v
	}
	values["dead_letter_source_id"] = d.ID
	values["dead_letter_reason"] = reason
	values["dead_letter_attempts"] = d.Attempt
	if err := s.rdb.XAdd(ctx, &redis.XAddArgs{Stream: s.cfg.DeadLetter, Values: values}).Err(); err != nil {
		return errors.Wrapf(err, "dead lettering %s", d.ID)
	}
	return s.Ack(ctx, d)
}

// Close is a no-op, the redis client belongs to the caller.
func (s *redisStream) Close() error {
	return nil
}

func classify(err error) error {
	if strings.HasPrefix(err.Error(), "NOGROUP") {
		return fmt.Errorf("%w: %v", ErrGroupMissing, err)
	}
	return errors.WithStack(err)
}

func stringFields(values map[string]interface{}) map[string]string {
	fields := make(map[string]string, len(values))
	for k, v := range values {
		switch t := v.(type) {
		case string:
			fields[k] = t
		case []byte:
			fields[k] = string(t)
		default:
			fields[k] = fmt.Sprint(t)
		}
	}
	return fields
}
