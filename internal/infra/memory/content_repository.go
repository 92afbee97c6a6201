package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"mission-quiz-service/internal/domain"
)

// ContentLoader fetches mission content from a backing store (files, Postgres, ...).
type ContentLoader interface {
	LoadContent(ctx context.Context, missionID string) (domain.MissionContent, error)
}

// ContentRepository caches mission content with TTL to avoid repeated loads.
type ContentRepository struct {
	loader ContentLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedContent
}

type cachedContent struct {
	content   domain.MissionContent
	expiresAt time.Time
}

func NewContentRepository(loader ContentLoader, ttl time.Duration) *ContentRepository {
	return &ContentRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedContent),
	}
}

func (r *ContentRepository) GetContent(ctx context.Context, missionID string) (domain.MissionContent, error) {
	if c, ok := r.cached(missionID); ok {
		return c, nil
	}

	result, err, _ := r.sf.Do(missionID, func() (interface{}, error) {
		if c, ok := r.cached(missionID); ok {
			return c, nil
		}

		content, err := r.loader.LoadContent(ctx, missionID)
		if err != nil {
			return domain.MissionContent{}, err
		}

		r.mu.Lock()
		r.cache[missionID] = cachedContent{
			content:   content,
			expiresAt: r.clock().Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return content, nil
	})
	if err != nil {
		return domain.MissionContent{}, err
	}
	return result.(domain.MissionContent), nil
}

// Invalidate drops a cached mission so the next read reloads it.
func (r *ContentRepository) Invalidate(missionID string) {
	r.mu.Lock()
	delete(r.cache, missionID)
	r.mu.Unlock()
}

func (r *ContentRepository) cached(missionID string) (domain.MissionContent, bool) {
	now := r.clock()
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.cache[missionID]; ok && entry.expiresAt.After(now) {
		return entry.content, true
	}
	return domain.MissionContent{}, false
}

func (r *ContentRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
