package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"mission-quiz-service/internal/domain"
)

// ResultSink appends passed attempts to attempt_results.
type ResultSink struct {
	pool *pgxpool.Pool
}

func NewResultSink(pool *pgxpool.Pool) *ResultSink {
	return &ResultSink{pool: pool}
}

func (s *ResultSink) Record(ctx context.Context, r domain.AttemptResult) error {
	unlocked := r.UnlockedNarrativeIDs
	if unlocked == nil {
		unlocked = []string{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO attempt_results
			(attempt_id, mission_id, player_id, reward, correct_count, total_questions,
			 lives_remaining, bonus_seconds, unlocked_narratives, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (attempt_id) DO NOTHING`,
		r.AttemptID, r.MissionID, r.PlayerID, r.Reward, r.CorrectCount, r.TotalQuestions,
		r.LivesRemaining, r.BonusSecondsRemaining, unlocked, r.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// Fragments lists the distinct rewards a player has earned.
func (s *ResultSink) Fragments(ctx context.Context, playerID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT reward FROM attempt_results
		WHERE player_id=$1 AND reward <> ''
		ORDER BY reward`, playerID)
	if err != nil {
		return nil, fmt.Errorf("query fragments: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var reward string
		if err := rows.Scan(&reward); err != nil {
			return nil, err
		}
		out = append(out, reward)
	}
	return out, rows.Err()
}
