package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cohortanalysis/golang_services/internal/report_service/domain"
	goredis "github.com/go-redis/redis/v8"
)

const keyPrefix = "report:job:"

// JobStore keeps report job records as JSON strings with a TTL.
type JobStore struct {
	rdb goredis.Cmdable
	ttl time.Duration
}

// NewJobStore creates a new JobStore. A non-positive ttl keeps records forever.
func NewJobStore(rdb goredis.Cmdable, ttl time.Duration) *JobStore {
	if ttl < 0 {
		ttl = 0
	}
	return &JobStore{rdb: rdb, ttl: ttl}
}

func jobKey(id string) string {
	return keyPrefix + id
}

// Save overwrites the record and refreshes its TTL.
func (s *JobStore) Save(ctx context.Context, rec *domain.ReportJobRecord) error {
	if rec.ID == "" {
		return errors.New("report job record has no id")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal report job %s: %w", rec.ID, err)
	}
	if err := s.rdb.Set(ctx, jobKey(rec.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save report job %s: %w", rec.ID, err)
	}
	return nil
}

// Get returns domain.ErrNotFound for unknown or expired ids.
func (s *JobStore) Get(ctx context.Context, id string) (*domain.ReportJobRecord, error) {
	data, err := s.rdb.Get(ctx, jobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get report job %s: %w", id, err)
	}
	var rec domain.ReportJobRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode report job %s: %w", id, err)
	}
	return &rec, nil
}
