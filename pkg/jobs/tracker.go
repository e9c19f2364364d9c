package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Generation job states mirror the asset lifecycle.
const (
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// ErrNotFound reports an unknown or expired generator id.
var ErrNotFound = errors.New("generation job not found")

// Status is the live state of an async generation job, tracked alongside the
// durable asset row so polling does not hit Postgres.
type Status struct {
	GeneratorID string    `json:"generatorId"`
	UserID      string    `json:"-"`
	Status      string    `json:"status"`
	URL         string    `json:"url,omitempty"`
	Error       string    `json:"error,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Tracker stores generation job status in Redis hashes with a TTL. Entries
// expire after the retention window; the asset row remains the durable record.
type Tracker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewTracker creates a tracker on a shared Redis client.
func NewTracker(client *redis.Client, prefix string, ttl time.Duration) (*Tracker, error) {
	if client == nil {
		return nil, errors.New("job tracker requires a redis client")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "creatorhub:jobs"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Tracker{client: client, prefix: prefix, ttl: ttl}, nil
}

func (t *Tracker) key(generatorID string) string {
	return fmt.Sprintf("%s:%s", t.prefix, generatorID)
}

// Start records a new processing job owned by the user.
func (t *Tracker) Start(ctx context.Context, generatorID, userID string) error {
	generatorID = strings.TrimSpace(generatorID)
	if generatorID == "" {
		return errors.New("generator id is required")
	}
	key := t.key(generatorID)
	pipe := t.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		"user_id":    userID,
		"status":     StatusProcessing,
		"url":        "",
		"error":      "",
		"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
	pipe.Expire(ctx, key, t.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// Complete marks the job finished with its media URL.
func (t *Tracker) Complete(ctx context.Context, generatorID, url string) error {
	return t.update(ctx, generatorID, map[string]any{
		"status":     StatusCompleted,
		"url":        url,
		"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// Fail marks the job failed with a reason.
func (t *Tracker) Fail(ctx context.Context, generatorID, reason string) error {
	return t.update(ctx, generatorID, map[string]any{
		"status":     StatusFailed,
		"error":      reason,
		"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (t *Tracker) update(ctx context.Context, generatorID string, fields map[string]any) error {
	key := t.key(strings.TrimSpace(generatorID))
	exists, err := t.client.Exists(ctx, key).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}
	pipe := t.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, t.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// Get returns the job status.
func (t *Tracker) Get(ctx context.Context, generatorID string) (Status, error) {
	key := t.key(strings.TrimSpace(generatorID))
	fields, err := t.client.HGetAll(ctx, key).Result()
	if err != nil {
		return Status{}, err
	}
	if len(fields) == 0 {
		return Status{}, ErrNotFound
	}
	updatedAt, _ := time.Parse(time.RFC3339Nano, fields["updated_at"])
	return Status{
		GeneratorID: strings.TrimSpace(generatorID),
		UserID:      fields["user_id"],
		Status:      fields["status"],
		URL:         fields["url"],
		Error:       fields["error"],
		UpdatedAt:   updatedAt,
	}, nil
}
