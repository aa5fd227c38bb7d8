package detector

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	amqp "github.com/rabbitmq/amqp091-go"

	"artemis-core/internal/fabric"
	"artemis-core/internal/logging"
	"artemis-core/internal/types"
)

// Worker consumes annotated updates (both live and stored-replay streams)
// and drives them through a Detector, republishing hijack events on the
// hijack-update exchange (looping back as "ongoing" rescans for the
// Annotator, per spec §6) and mitigation requests on the mitigation
// exchange.
type Worker struct {
	conn        *fabric.Conn
	det         *Detector
	log         logging.Logger
	queuePrefix string
	stopped     atomic.Bool
}

// NewWorker builds a Worker bound to an already-dialed fabric connection and
// Detector.
func NewWorker(conn *fabric.Conn, det *Detector, log logging.Logger, queuePrefix string) *Worker {
	return &Worker{conn: conn, det: det, log: log, queuePrefix: queuePrefix}
}

// Run declares the two input queues and blocks, dispatching deliveries
// until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	live, err := w.conn.DeclareQueue(ctx, fabric.ExchangeBGPUpdate, w.queuePrefix+"-update-with-prefix-node", fabric.RoutingKeyUpdateWithPrefixNode, 100)
	if err != nil {
		return err
	}
	stored, err := w.conn.DeclareQueue(ctx, fabric.ExchangeBGPUpdate, w.queuePrefix+"-stored-update-with-prefix-node", fabric.RoutingKeyStoredUpdateWithPrefixNode, 100)
	if err != nil {
		return err
	}
	commands, err := w.conn.DeclareQueue(ctx, fabric.ExchangeCommand, w.queuePrefix+"-command", fabric.StopRoutingKey(w.queuePrefix), 1)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); w.consumeCommands(ctx, commands) }()
	go func() { defer wg.Done(); w.consume(ctx, live) }()
	go func() { defer wg.Done(); w.consume(ctx, stored) }()
	wg.Wait()
	return nil
}

// consumeCommands watches the dedicated stop-<module> command queue and
// raises the cooperative stop flag the consume loop checks between
// messages, per spec §5 "Cancellation".
func (w *Worker) consumeCommands(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			w.stopped.Store(true)
			d.Ack(false)
		}
	}
}

func (w *Worker) consume(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		if w.stopped.Load() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			update, err := fabric.DecodeBody[types.AnnotatedUpdate](d.ContentType, d.Body)
			if err != nil {
				w.log.Warn("detector worker: dropping malformed annotated update: %v", err)
				d.Ack(false)
				continue
			}

			event, mreq := w.det.Process(update)
			d.Ack(false)

			if event != nil {
				w.publish(ctx, fabric.ExchangeHijack, fabric.RoutingKeyHijackOngoing, event)
			}
			if mreq != nil {
				w.publish(ctx, fabric.ExchangeMitigation, fabric.RoutingKeyMitigate, mreq)
			}
		}
	}
}

func (w *Worker) publish(ctx context.Context, exchange, routingKey string, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		w.log.Error("detector worker: marshal failed for %s/%s: %v", exchange, routingKey, err)
		return
	}
	if err := w.conn.Publish(ctx, exchange, routingKey, body, fabric.SerializerUJSON); err != nil {
		w.log.Error("detector worker: publish failed for %s/%s: %v", exchange, routingKey, err)
	}
}
