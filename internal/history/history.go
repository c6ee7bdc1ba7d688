// Package history publishes every applied game action to a per-game Redis
// stream, giving each hand a replayable audit trail.
package history

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/cambio-games/server/internal/game"
)

const streamPrefix = "cambio:actions:"

// Recorder implements game.ActionRecorder on a Redis stream per game.
type Recorder struct {
	client *redis.Client
}

func New(addr string) *Recorder {
	return &Recorder{client: redis.NewClient(&redis.Options{Addr: addr})}
}

// Ping verifies the connection at startup.
func (r *Recorder) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// RecordAction appends one action to the game's stream.
func (r *Recorder) RecordAction(ctx context.Context, rec game.ActionRecord) error {
	values := map[string]any{
		"actionIndex": rec.ActionIndex,
		"sessionId":   rec.SessionID,
		"action":      rec.Action,
		"timestamp":   rec.Timestamp,
	}
	if rec.Detail != nil {
		detail, err := json.Marshal(rec.Detail)
		if err != nil {
			return err
		}
		values["detail"] = string(detail)
	}
	return r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamPrefix + rec.GameID,
		Values: values,
	}).Err()
}

func (r *Recorder) Close() error {
	return r.client.Close()
}
