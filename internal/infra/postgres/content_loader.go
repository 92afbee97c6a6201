package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"mission-quiz-service/internal/content"
	"mission-quiz-service/internal/domain"
)

// ContentLoader loads authored mission documents from Postgres and normalizes them.
type ContentLoader struct {
	pool       *pgxpool.Pool
	normalizer *content.Normalizer
}

func NewContentLoader(pool *pgxpool.Pool, normalizer *content.Normalizer) *ContentLoader {
	if normalizer == nil {
		normalizer = content.NewNormalizer(nil)
	}
	return &ContentLoader{pool: pool, normalizer: normalizer}
}

func (l *ContentLoader) LoadContent(ctx context.Context, missionID string) (domain.MissionContent, error) {
	var (
		format string
		raw    []byte
	)
	err := l.pool.QueryRow(ctx, `SELECT format, data FROM mission_contents WHERE id=$1`, missionID).Scan(&format, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.MissionContent{}, fmt.Errorf("%w: %q", domain.ErrContentUnavailable, missionID)
	}
	if err != nil {
		return domain.MissionContent{}, fmt.Errorf("load mission: %w", err)
	}
	c, err := l.normalizer.Decode(raw, content.Format(format))
	if err != nil {
		return domain.MissionContent{}, fmt.Errorf("%w: mission %q: %w", domain.ErrContentUnavailable, missionID, err)
	}
	return c, nil
}
