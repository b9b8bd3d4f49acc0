package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/reframelab/reframe-api/internal/ratio"
)

// Compile-time check that RedisRepository implements Repository.
var _ Repository = (*RedisRepository)(nil)

// jobRecord is the flat JSON shape stored in Redis. Job itself carries a
// mutex and cannot be marshalled directly.
type jobRecord struct {
	ID            string         `json:"id"`
	Status        Status         `json:"status"`
	BackendHandle string         `json:"backend_handle,omitempty"`
	InputLocator  string         `json:"input_locator,omitempty"`
	ResultLocator string         `json:"result_locator,omitempty"`
	Prompt        string         `json:"prompt,omitempty"`
	Geometry      ratio.Geometry `json:"geometry"`
	CanvasWidth   int            `json:"canvas_width"`
	CanvasHeight  int            `json:"canvas_height"`
	SourceWidth   int            `json:"source_width"`
	SourceHeight  int            `json:"source_height"`
	Error         string         `json:"error,omitempty"`
	ErrorStage    Stage          `json:"error_stage,omitempty"`
	SubmittedAt   time.Time      `json:"submitted_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	CompletedAt   time.Time      `json:"completed_at,omitzero"`
}

func recordFrom(j *Job) jobRecord {
	c := j.Clone()
	return jobRecord{
		ID:            c.ID,
		Status:        c.Status,
		BackendHandle: c.BackendHandle,
		InputLocator:  c.InputLocator,
		ResultLocator: c.ResultLocator,
		Prompt:        c.Prompt,
		Geometry:      c.Geometry,
		CanvasWidth:   c.CanvasWidth,
		CanvasHeight:  c.CanvasHeight,
		SourceWidth:   c.SourceWidth,
		SourceHeight:  c.SourceHeight,
		Error:         c.Error,
		ErrorStage:    c.ErrorStage,
		SubmittedAt:   c.SubmittedAt,
		UpdatedAt:     c.UpdatedAt,
		CompletedAt:   c.CompletedAt,
	}
}

func (r jobRecord) toJob() *Job {
	return &Job{
		ID:            r.ID,
		Status:        r.Status,
		BackendHandle: r.BackendHandle,
		InputLocator:  r.InputLocator,
		ResultLocator: r.ResultLocator,
		Prompt:        r.Prompt,
		Geometry:      r.Geometry,
		CanvasWidth:   r.CanvasWidth,
		CanvasHeight:  r.CanvasHeight,
		SourceWidth:   r.SourceWidth,
		SourceHeight:  r.SourceHeight,
		Error:         r.Error,
		ErrorStage:    r.ErrorStage,
		SubmittedAt:   r.SubmittedAt,
		UpdatedAt:     r.UpdatedAt,
		CompletedAt:   r.CompletedAt,
	}
}

// RedisRepository persists jobs as JSON records in Redis, keyed by job ID.
// Records expire after the configured TTL so abandoned history does not
// accumulate.
type RedisRepository struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisOption configures a RedisRepository.
type RedisOption func(*RedisRepository)

// WithKeyPrefix overrides the default "reframe:job:" key prefix.
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *RedisRepository) {
		r.prefix = prefix
	}
}

// WithTTL sets the record expiry. Zero disables expiry.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *RedisRepository) {
		r.ttl = ttl
	}
}

// NewRedisRepository creates a Redis-backed job repository.
func NewRedisRepository(client *redis.Client, opts ...RedisOption) *RedisRepository {
	r := &RedisRepository{
		client: client,
		prefix: "reframe:job:",
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisRepository) key(id string) string {
	return r.prefix + id
}

// Save persists a job as a JSON record.
func (r *RedisRepository) Save(ctx context.Context, job *Job) error {
	data, err := json.Marshal(recordFrom(job))
	if err != nil {
		return fmt.Errorf("job: marshal record: %w", err)
	}
	if err := r.client.Set(ctx, r.key(job.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("job: redis set: %w", err)
	}
	return nil
}

// FindByID retrieves a job by its ID.
func (r *RedisRepository) FindByID(ctx context.Context, id string) (*Job, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("job: redis get: %w", err)
	}

	var rec jobRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("job: unmarshal record: %w", err)
	}
	return rec.toJob(), nil
}

// List returns all jobs under the repository's key prefix.
func (r *RedisRepository) List(ctx context.Context) ([]*Job, error) {
	var jobs []*Job
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := r.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue // expired between scan and get
		}
		if err != nil {
			return nil, fmt.Errorf("job: redis get %s: %w", iter.Val(), err)
		}
		var rec jobRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("job: unmarshal record %s: %w", iter.Val(), err)
		}
		jobs = append(jobs, rec.toJob())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("job: redis scan: %w", err)
	}
	return jobs, nil
}

// Delete removes a job.
func (r *RedisRepository) Delete(ctx context.Context, id string) error {
	n, err := r.client.Del(ctx, r.key(id)).Result()
	if err != nil {
		return fmt.Errorf("job: redis del: %w", err)
	}
	if n == 0 {
		return ErrJobNotFound
	}
	return nil
}
