package annotator

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

// Worker drives the four input streams named in spec §4.3: live updates,
// stored-update replays, ongoing-hijack rescans, and mitigation requests.
// Each stream is consumed, annotated against the local Prefix Index, and
// republished under its paired "-with-prefix-node"/"-with-action" routing
// key. Unmatched and malformed messages are dropped, never requeued.
type Worker struct {
	conn *fabric.Conn
	ann  *Annotator
	log  logging.Logger

	queuePrefix string
	stopped     atomic.Bool
}

// NewWorker builds a Worker bound to an already-dialed fabric connection and
// Annotator. queuePrefix namepsaces the four queues this worker declares
// (e.g. the module name), so multiple annotator workers don't collide.
func NewWorker(conn *fabric.Conn, ann *Annotator, log logging.Logger, queuePrefix string) *Worker {
	return &Worker{conn: conn, ann: ann, log: log, queuePrefix: queuePrefix}
}

// Run declares all four queues and blocks, dispatching deliveries until ctx
// is canceled.
func (w *Worker) Run(ctx context.Context) error {
	updates, err := w.conn.DeclareQueue(ctx, fabric.ExchangeBGPUpdate, w.queuePrefix+"-update", fabric.RoutingKeyUpdate, 100)
	if err != nil {
		return err
	}
	stored, err := w.conn.DeclareQueue(ctx, fabric.ExchangeAMQDirect, w.queuePrefix+"-update-insert", fabric.RoutingKeyUpdateInsert, 100)
	if err != nil {
		return err
	}
	ongoing, err := w.conn.DeclareQueue(ctx, fabric.ExchangeHijack, w.queuePrefix+"-ongoing", fabric.RoutingKeyHijackOngoing, 100)
	if err != nil {
		return err
	}
	mitigate, err := w.conn.DeclareQueue(ctx, fabric.ExchangeMitigation, w.queuePrefix+"-mitigate", fabric.RoutingKeyMitigate, 100)
	if err != nil {
		return err
	}
	commands, err := w.conn.DeclareQueue(ctx, fabric.ExchangeCommand, w.queuePrefix+"-command", fabric.StopRoutingKey(w.queuePrefix), 1)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	wg.Add(5)
	go func() { defer wg.Done(); w.consumeCommands(ctx, commands) }()
	go func() { defer wg.Done(); w.runUpdates(ctx, updates) }()
	go func() { defer wg.Done(); w.runStoredReplays(ctx, stored) }()
	go func() { defer wg.Done(); w.runOngoingRescans(ctx, ongoing) }()
	go func() { defer wg.Done(); w.runMitigationRequests(ctx, mitigate) }()
	wg.Wait()
	return nil
}

// consumeCommands watches the dedicated stop-<module> command queue and
// raises the cooperative stop flag the four stream loops check between
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

func (w *Worker) runUpdates(ctx context.Context, deliveries <-chan amqp.Delivery) {
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
			update, err := fabric.DecodeBody[types.BGPUpdate](d.ContentType, d.Body)
			if err != nil {
				w.log.Warn("annotator worker: dropping malformed update: %v", err)
				d.Ack(false)
				continue
			}
			annotated, ok2 := w.ann.Annotate(update)
			if !ok2 {
				d.Ack(false)
				continue
			}
			w.publish(ctx, fabric.ExchangeBGPUpdate, fabric.RoutingKeyUpdateWithPrefixNode, annotated)
			d.Ack(false)
		}
	}
}

func (w *Worker) runStoredReplays(ctx context.Context, deliveries <-chan amqp.Delivery) {
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
			update, err := fabric.DecodeBody[types.BGPUpdate](d.ContentType, d.Body)
			if err != nil {
				w.log.Warn("annotator worker: dropping malformed stored update: %v", err)
				d.Ack(false)
				continue
			}
			annotated, ok2 := w.ann.Annotate(update)
			if !ok2 {
				d.Ack(false)
				continue
			}
			w.publish(ctx, fabric.ExchangeBGPUpdate, fabric.RoutingKeyStoredUpdateWithPrefixNode, annotated)
			d.Ack(false)
		}
	}
}

func (w *Worker) runOngoingRescans(ctx context.Context, deliveries <-chan amqp.Delivery) {
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
			event, err := fabric.DecodeBody[types.HijackEvent](d.ContentType, d.Body)
			if err != nil {
				w.log.Warn("annotator worker: dropping malformed hijack rescan: %v", err)
				d.Ack(false)
				continue
			}
			annotated, ok2 := AnnotateMessage(w.ann, event)
			if !ok2 {
				d.Ack(false)
				continue
			}
			w.publish(ctx, fabric.ExchangeHijack, fabric.RoutingKeyHijackOngoingWithPrefixNode, annotated)
			d.Ack(false)
		}
	}
}

func (w *Worker) runMitigationRequests(ctx context.Context, deliveries <-chan amqp.Delivery) {
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
			req, err := fabric.DecodeBody[types.MitigationRequest](d.ContentType, d.Body)
			if err != nil {
				w.log.Warn("annotator worker: dropping malformed mitigation request: %v", err)
				d.Ack(false)
				continue
			}
			annotated, ok2 := AnnotateMessage(w.ann, req)
			if !ok2 {
				d.Ack(false)
				continue
			}
			w.publish(ctx, fabric.ExchangeMitigation, fabric.RoutingKeyMitigateWithAction, annotated)
			d.Ack(false)
		}
	}
}

func (w *Worker) publish(ctx context.Context, exchange, routingKey string, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		w.log.Error("annotator worker: marshal failed for %s/%s: %v", exchange, routingKey, err)
		return
	}
	if err := w.conn.Publish(ctx, exchange, routingKey, body, fabric.SerializerUJSON); err != nil {
		w.log.Error("annotator worker: publish failed for %s/%s: %v", exchange, routingKey, err)
	}
}
