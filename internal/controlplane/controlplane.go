// Package controlplane implements the Control Plane: the start/stop/status
// lifecycle for a data-worker process and the HTTP surface of spec §6,
// against the Shared Registry.
package controlplane

import (
	"context"
	"fmt"

	"artemis-core/internal/config"
	"artemis-core/internal/fabric"
	"artemis-core/internal/logging"
	"artemis-core/internal/prefixtree"
	"artemis-core/internal/registry"
)

// DataWorker is anything the control plane can start and stop: the
// annotator or detector worker loop for this process.
type DataWorker interface {
	Run(ctx context.Context) error
}

// ControlPlane wires the Shared Registry, the fabric connection used to
// publish stop commands, and the data worker this process supervises.
type ControlPlane struct {
	reg    *registry.Registry
	conn   *fabric.Conn
	log    logging.Logger
	module string

	worker   DataWorker
	cancel   context.CancelFunc
	snapshot *Snapshot
}

// New returns a ControlPlane for the named module. snapshot may be nil, in
// which case no configuration is persisted across restarts.
func New(reg *registry.Registry, conn *fabric.Conn, log logging.Logger, settings config.Settings, worker DataWorker, snapshot *Snapshot) *ControlPlane {
	return &ControlPlane{reg: reg, conn: conn, log: log, module: settings.ModuleName, worker: worker, snapshot: snapshot}
}

// RestoreFromSnapshot applies the last-persisted configuration, if any, so
// the registry isn't left unconfigured after a restart.
func (c *ControlPlane) RestoreFromSnapshot() error {
	if c.snapshot == nil {
		return nil
	}
	doc, found, err := c.snapshot.Load()
	if err != nil || !found {
		return err
	}
	result := c.Configure(doc)
	if !result.Success {
		c.log.Warn("control plane: snapshot restore rejected: %s", result.Message)
	}
	return nil
}

// Start is idempotent: refuses and reports "already running" if the data
// worker is already up, per spec §4.5.
func (c *ControlPlane) Start() string {
	if c.reg.DataWorkerRunning() {
		c.log.Info("control plane: data worker already running")
		return "already running"
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.reg.SetDataWorkerRunning(true)

	go func() {
		defer c.reg.SetDataWorkerRunning(false)
		if err := c.worker.Run(ctx); err != nil {
			c.log.Error("control plane: data worker exited: %v", err)
		}
		c.log.Info("control plane: data worker stopped")
	}()

	c.log.Info("control plane: data worker started")
	return "instructed to start"
}

// Stop publishes a control message on the command exchange with routing key
// stop-<module>; the worker's command consumer sets its stop flag and exits
// its consume loop (spec §4.5, §5 "Cancellation").
func (c *ControlPlane) Stop() string {
	ctx := context.Background()
	routingKey := fabric.StopRoutingKey(c.module)
	if err := c.conn.Publish(ctx, fabric.ExchangeCommand, routingKey, nil, fabric.SerializerUJSON); err != nil {
		c.log.Error("control plane: failed to publish stop command: %v", err)
	}
	if c.cancel != nil {
		c.cancel()
	}
	return "instructed to stop"
}

// Status returns the three-state health view: unconfigured | running |
// stopped.
func (c *ControlPlane) Status() registry.Status {
	return c.reg.HealthStatus()
}

// Configure compiles and installs a configuration document, returning the
// CompileResult response shape of POST /config.
func (c *ControlPlane) Configure(doc prefixtree.ConfigDocument) prefixtree.CompileResult {
	compiled, err := prefixtree.Compile(doc)
	if err != nil {
		return prefixtree.CompileResult{Success: false, Message: err.Error()}
	}
	if err := c.reg.Configure(compiled); err != nil {
		return prefixtree.CompileResult{Success: true, Message: err.Error()}
	}
	if c.snapshot != nil {
		if err := c.snapshot.Save(doc); err != nil {
			c.log.Warn("control plane: failed to persist configuration snapshot: %v", err)
		}
	}
	return prefixtree.CompileResult{Success: true, Message: fmt.Sprintf("configured %d prefixes", compiled.ConfiguredPrefixCount)}
}
