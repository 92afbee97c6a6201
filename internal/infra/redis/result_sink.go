package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"mission-quiz-service/internal/domain"
)

// recentResults bounds the per-player result history.
const recentResults = 50

// ResultSink records passed attempts in Redis:
//
//	HINCRBY player:{playerID}:stats passed 1 / correct N / bonus N
//	SADD    player:{playerID}:fragments {reward}
//	LPUSH   player:{playerID}:results <json>   (trimmed to the last 50)
type ResultSink struct {
	client *redis.Client
}

func NewResultSink(client *redis.Client) *ResultSink {
	return &ResultSink{client: client}
}

func (s *ResultSink) Record(ctx context.Context, result domain.AttemptResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	prefix := "player:" + result.PlayerID

	pipe := s.client.TxPipeline()
	pipe.HIncrBy(ctx, prefix+":stats", "passed", 1)
	pipe.HIncrBy(ctx, prefix+":stats", "correct", int64(result.CorrectCount))
	pipe.HIncrBy(ctx, prefix+":stats", "bonus", int64(result.BonusSecondsRemaining))
	if result.Reward != "" {
		pipe.SAdd(ctx, prefix+":fragments", result.Reward)
	}
	pipe.LPush(ctx, prefix+":results", data)
	pipe.LTrim(ctx, prefix+":results", 0, recentResults-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record result: %w", err)
	}
	return nil
}

// Fragments lists the puzzle fragments a player has earned.
func (s *ResultSink) Fragments(ctx context.Context, playerID string) ([]string, error) {
	return s.client.SMembers(ctx, "player:"+playerID+":fragments").Result()
}
