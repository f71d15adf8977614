package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Wizard2999/el-super-cafe-backend/internal/events"
	"github.com/Wizard2999/el-super-cafe-backend/internal/infra"
)

const (
	// QueueAlerts carries low-stock notifications for the mailer.
	QueueAlerts = "jobs:alerts"

	maxAttempts = 3
)

// LowStockAlert is the payload enqueued when a deduction crosses a minimum.
type LowStockAlert struct {
	ProductName string `json:"product_name"`
	NewStock    string `json:"new_stock"`
	StockMin    string `json:"stock_min"`
	Unit        string `json:"unit"`
	Attempts    int    `json:"attempts"`
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueueLowStockAlert pushes an alert job. Failures are logged and dropped;
// alerts never fail the sale that triggered them.
func (d *Dispatcher) EnqueueLowStockAlert(ctx context.Context, alert LowStockAlert) {
	data, err := json.Marshal(alert)
	if err != nil {
		log.Error().Err(err).Msg("dispatcher: marshal alert")
		return
	}
	if err := d.rdb.LPush(ctx, QueueAlerts, data).Err(); err != nil {
		log.Error().Err(err).Msg("dispatcher: enqueue alert")
	}
}

// Pool consumes the event and alert queues. Events are re-published on the
// configured pub/sub channel; alerts go out through the circuit-breaker-
// guarded mailer.
type Pool struct {
	rdb        *redis.Client
	channel    string
	mailer     *infra.Mailer
	breaker    *infra.CircuitBreaker
	alertEmail string
}

func NewPool(rdb *redis.Client, channel string, mailer *infra.Mailer, breaker *infra.CircuitBreaker, alertEmail string) *Pool {
	return &Pool{rdb: rdb, channel: channel, mailer: mailer, breaker: breaker, alertEmail: alertEmail}
}

// Start launches numWorkers goroutines consuming both queues.
// Each goroutine blocks on BRPOP — zero CPU when idle.
func (p *Pool) Start(ctx context.Context, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		go p.run(ctx, i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func (p *Pool) run(ctx context.Context, id int) {
	queues := []string{events.QueueEvents, QueueAlerts}
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Blocking pop — waits up to 5s then loops to check ctx
			result, err := p.rdb.BRPop(ctx, 5*time.Second, queues...).Result()
			if err != nil {
				continue // timeout or context cancelled
			}
			if len(result) < 2 {
				continue
			}
			p.process(ctx, result[0], result[1])
		}
	}
}

func (p *Pool) process(ctx context.Context, queue, raw string) {
	switch queue {
	case events.QueueEvents:
		p.publishEvent(ctx, raw)
	case QueueAlerts:
		p.sendAlert(ctx, raw)
	}
}

// publishEvent fans a queued event out to subscribed devices. The payload is
// already the wire envelope; no re-marshalling.
func (p *Pool) publishEvent(ctx context.Context, raw string) {
	if err := p.rdb.Publish(ctx, p.channel, raw).Err(); err != nil {
		log.Error().Err(err).Str("channel", p.channel).Msg("worker: publish failed")
		SendToDLQ(ctx, p.rdb, events.QueueEvents, "event", json.RawMessage(raw), err.Error(), 1)
	}
}

func (p *Pool) sendAlert(ctx context.Context, raw string) {
	var alert LowStockAlert
	if err := json.Unmarshal([]byte(raw), &alert); err != nil {
		log.Error().Err(err).Msg("worker: bad alert payload")
		return
	}
	alert.Attempts++

	subject := fmt.Sprintf("Alerta de stock bajo: %s", alert.ProductName)
	body := fmt.Sprintf("El producto %s quedó en %s %s (mínimo %s).",
		alert.ProductName, alert.NewStock, alert.Unit, alert.StockMin)

	err := p.breaker.Execute(func() error {
		return p.mailer.SendAlert(p.alertEmail, subject, body)
	})
	if err == nil {
		return
	}

	if alert.Attempts >= maxAttempts {
		data, _ := json.Marshal(alert)
		SendToDLQ(ctx, p.rdb, QueueAlerts, "low_stock_alert", data, err.Error(), alert.Attempts)
		return
	}

	// Re-enqueue for another attempt; the breaker throttles a dead relay.
	log.Warn().Err(err).Int("attempts", alert.Attempts).Str("product", alert.ProductName).
		Msg("worker: alert send failed, re-enqueueing")
	data, _ := json.Marshal(alert)
	if err := p.rdb.LPush(ctx, QueueAlerts, data).Err(); err != nil {
		log.Error().Err(err).Msg("worker: re-enqueue failed")
	}
}
