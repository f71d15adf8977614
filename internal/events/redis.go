package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// QueueEvents is the Redis list the worker pool drains and publishes from.
const QueueEvents = "jobs:events"

// redisBroadcaster enqueues events into Redis; the worker pool performs the
// actual PUBLISH so request latency never pays for fan-out.
type redisBroadcaster struct {
	rdb *redis.Client
}

func NewRedisBroadcaster(rdb *redis.Client) Broadcaster {
	return &redisBroadcaster{rdb: rdb}
}

func (b *redisBroadcaster) Emit(ctx context.Context, name string, payload map[string]interface{}) {
	ev := Event{Name: name, Payload: payload, Timestamp: time.Now().UTC()}
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("event", name).Msg("events: marshal failed")
		return
	}
	if err := b.rdb.LPush(ctx, QueueEvents, data).Err(); err != nil {
		log.Error().Err(err).Str("event", name).Msg("events: enqueue failed")
	}
}

// Recorder captures emitted events in memory. Test double.
type Recorder struct {
	Events []Event
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Emit(_ context.Context, name string, payload map[string]interface{}) {
	r.Events = append(r.Events, Event{Name: name, Payload: payload, Timestamp: time.Now().UTC()})
}

// Names returns the emitted event names in order.
func (r *Recorder) Names() []string {
	names := make([]string, len(r.Events))
	for i, ev := range r.Events {
		names[i] = ev.Name
	}
	return names
}
