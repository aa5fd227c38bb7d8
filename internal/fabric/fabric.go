// Package fabric implements the Message Fabric Adapter: named exchanges and
// queues that feed BGP updates in and push annotated events out, built on
// RabbitMQ (github.com/rabbitmq/amqp091-go), with the bit-exact topology
// named in spec §6.
package fabric

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"artemis-core/internal/artemiserr"
)

// Exchange and routing-key names, bit-exact per spec §6.
const (
	ExchangeBGPUpdate  = "bgp-update"
	ExchangeHijack     = "hijack-update"
	ExchangeMitigation = "mitigation"
	ExchangeAMQDirect  = "amq.direct"
	ExchangeCommand    = "command"

	RoutingKeyUpdate                    = "update"
	RoutingKeyUpdateWithPrefixNode       = "update-with-prefix-node"
	RoutingKeyStoredUpdateWithPrefixNode = "stored-update-with-prefix-node"
	RoutingKeyHijackOngoing              = "ongoing"
	RoutingKeyHijackOngoingWithPrefixNode = "ongoing-with-prefix-node"
	RoutingKeyMitigate                  = "mitigate"
	RoutingKeyMitigateWithAction         = "mitigate-with-action"
	RoutingKeyUpdateInsert              = "update-insert"
)

// StopRoutingKey returns the per-module stop command routing key.
func StopRoutingKey(moduleName string) string {
	return "stop-" + moduleName
}

// Serializer tags, bit-exact per spec §6.
const (
	SerializerUJSON   = "ujson"
	SerializerTxtJSON = "txtjson"
)

// Conn wraps a single AMQP connection and channel, shared by the
// cooperative consumers of one worker process per spec §5 ("one
// connection to the message fabric").
type Conn struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// Dial establishes the connection and declares the exchanges this pipeline
// depends on.
func Dial(uri string) (*Conn, error) {
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, artemiserr.NewFabricUnavailableError("fabric.Dial", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, artemiserr.NewFabricUnavailableError("fabric.Dial", err)
	}

	c := &Conn{conn: conn, ch: ch}
	if err := c.declareTopology(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Conn) declareTopology() error {
	exchanges := []string{ExchangeBGPUpdate, ExchangeHijack, ExchangeMitigation, ExchangeCommand}
	for _, name := range exchanges {
		if err := c.ch.ExchangeDeclare(name, "topic", true, false, false, false, nil); err != nil {
			return artemiserr.NewFabricUnavailableError("fabric.declareTopology", err)
		}
	}
	// amq.direct is a broker-predeclared exchange; never declare it here.
	return nil
}

// Close tears down the channel and connection.
func (c *Conn) Close() error {
	var err error
	if c.ch != nil {
		err = c.ch.Close()
	}
	if c.conn != nil {
		if cerr := c.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Publish publishes a serialized body on the given exchange/routing key.
func (c *Conn) Publish(ctx context.Context, exchange, routingKey string, body []byte, serializer string) error {
	err := c.ch.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType: contentTypeFor(serializer),
		Body:        body,
	})
	if err != nil {
		return artemiserr.NewFabricUnavailableError("fabric.Publish", err)
	}
	return nil
}

func contentTypeFor(serializer string) string {
	switch serializer {
	case SerializerTxtJSON:
		return "text/utf-8"
	default:
		return "application/json"
	}
}

// DeclareQueue declares and binds a queue to an exchange with a routing
// key, then returns a bounded-prefetch consumer channel of raw deliveries.
// The bound prefetch (default 100, per spec §4.3) keeps memory bounded
// under bursts.
func (c *Conn) DeclareQueue(ctx context.Context, exchange, queueName, routingKey string, prefetch int) (<-chan amqp.Delivery, error) {
	q, err := c.ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		return nil, artemiserr.NewFabricUnavailableError("fabric.DeclareQueue", err)
	}
	if err := c.ch.QueueBind(q.Name, routingKey, exchange, false, nil); err != nil {
		return nil, artemiserr.NewFabricUnavailableError("fabric.DeclareQueue", err)
	}
	if prefetch <= 0 {
		prefetch = 100
	}
	if err := c.ch.Qos(prefetch, 0, false); err != nil {
		return nil, artemiserr.NewFabricUnavailableError("fabric.DeclareQueue", err)
	}
	deliveries, err := c.ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return nil, artemiserr.NewFabricUnavailableError("fabric.DeclareQueue", err)
	}
	return deliveries, nil
}

// DecodeBody decodes a delivery body into T. Both accepted serializers
// (ujson and the storage-bridge's txtjson) carry a JSON payload; they only
// differ in the AMQP content-type/content-encoding the producer stamped on
// the message, so decoding is uniform once the content type is recognized.
func DecodeBody[T any](contentType string, body []byte) (T, error) {
	var out T
	switch contentType {
	case "text/utf-8", "application/json", "":
		if err := json.Unmarshal(body, &out); err != nil {
			return out, artemiserr.NewUpstreamMessageMalformedError("fabric.DecodeBody", "", err)
		}
		return out, nil
	default:
		return out, artemiserr.NewUpstreamMessageMalformedError("fabric.DecodeBody", "", fmt.Errorf("unsupported content type %q", contentType))
	}
}
