package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"mission-quiz-service/internal/domain"
)

// ContentLoader fetches mission content from a backing store.
type ContentLoader interface {
	LoadContent(ctx context.Context, missionID string) (domain.MissionContent, error)
}

// ContentRepository caches normalized mission content in Redis and falls back to a loader on miss.
// Content is stored as: SET mission:{missionID}:content <json> EX ttl
type ContentRepository struct {
	client *redis.Client
	loader ContentLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewContentRepository(client *redis.Client, loader ContentLoader, ttl time.Duration) *ContentRepository {
	return &ContentRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *ContentRepository) GetContent(ctx context.Context, missionID string) (domain.MissionContent, error) {
	if c, ok := r.cached(ctx, missionID); ok {
		return c, nil
	}

	result, err, _ := r.sf.Do(missionID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if c, ok := r.cached(ctx, missionID); ok {
			return c, nil
		}

		c, err := r.loader.LoadContent(ctx, missionID)
		if err != nil {
			return domain.MissionContent{}, err
		}
		if data, err := json.Marshal(c); err == nil {
			_ = r.client.Set(ctx, r.key(missionID), data, r.ttlWithJitter()).Err()
		}
		return c, nil
	})
	if err != nil {
		return domain.MissionContent{}, err
	}
	return result.(domain.MissionContent), nil
}

// Invalidate drops the cached copy of a mission.
func (r *ContentRepository) Invalidate(ctx context.Context, missionID string) error {
	return r.client.Del(ctx, r.key(missionID)).Err()
}

func (r *ContentRepository) cached(ctx context.Context, missionID string) (domain.MissionContent, bool) {
	raw, err := r.client.Get(ctx, r.key(missionID)).Bytes()
	if err != nil {
		return domain.MissionContent{}, false
	}
	var c domain.MissionContent
	if err := json.Unmarshal(raw, &c); err != nil {
		return domain.MissionContent{}, false
	}
	return c, true
}

func (r *ContentRepository) key(missionID string) string {
	return "mission:" + missionID + ":content"
}

func (r *ContentRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	// Loads for different missions run concurrently.
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
