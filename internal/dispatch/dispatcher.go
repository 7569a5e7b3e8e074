package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/relayq/relayq/internal/clock"
	"github.com/relayq/relayq/internal/queue"
)

// Config holds the dispatcher's poll-loop settings.
type Config struct {
	// PollInterval is the delay between queue scans.
	PollInterval time.Duration

	// MaxMessages bounds how many messages a single tick leases per
	// tenant. Messages beyond the bound wait for the next tick.
	MaxMessages int

	// Visibility is the lease duration requested at dequeue time. It
	// must comfortably exceed unit startup plus handler duration, or
	// messages redeliver while still being processed.
	Visibility time.Duration
}

// DefaultConfig returns the dispatcher defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval: 5 * time.Second,
		MaxMessages:  10,
		Visibility:   30 * time.Second,
	}
}

// Dispatcher polls tenant queues and provisions one execution unit per
// leased message. It keeps no state between ticks: a message is either
// deleted after a successful unit, or left for the queue's visibility
// mechanism to redeliver. The dispatcher itself never retries.
type Dispatcher struct {
	client  queue.Client
	prov    Provisioner
	tenants []string
	cfg     Config
	clk     clock.Clock
	logger  *slog.Logger
}

// New creates a Dispatcher serving the given tenants.
func New(
	client queue.Client,
	prov Provisioner,
	tenants []string,
	cfg Config,
	clk clock.Clock,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		client:  client,
		prov:    prov,
		tenants: tenants,
		cfg:     cfg,
		clk:     clk,
		logger:  logger.With("component", "dispatcher"),
	}
}

// Run ticks until the context is cancelled. Each tick is synchronous:
// lease, provision, delete-on-success, in order, per tenant.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("dispatcher started",
		"poll_interval", d.cfg.PollInterval,
		"max_messages", d.cfg.MaxMessages,
		"tenants", d.tenants)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopping")
			return ctx.Err()
		case <-d.clk.After(d.cfg.PollInterval):
			d.Tick(ctx)
		}
	}
}

// Tick performs one full scan across all tenants. Exported so tests
// and one-shot invocations can drive the loop directly.
func (d *Dispatcher) Tick(ctx context.Context) {
	for _, tenantID := range d.tenants {
		d.drainTenant(ctx, tenantID)
	}
}

func (d *Dispatcher) drainTenant(ctx context.Context, tenantID string) {
	log := d.logger.With("tenant_id", tenantID)

	leases, err := d.client.Lease(ctx, tenantID, d.cfg.MaxMessages, d.cfg.Visibility)
	if err != nil {
		log.Warn("lease failed, will retry next tick", "error", err)
		return
	}
	if len(leases) == 0 {
		return
	}
	log.Debug("leased messages", "count", len(leases))

	for _, lease := range leases {
		if ctx.Err() != nil {
			return
		}
		d.runUnit(ctx, log, lease)
	}
}

// runUnit provisions one unit for one lease and settles the message.
// Any provisioning or unit error leaves the message un-deleted; the
// lease expiring is the retry mechanism.
func (d *Dispatcher) runUnit(ctx context.Context, log *slog.Logger, lease queue.Lease) {
	taskData, err := queue.Encode(lease.Message)
	if err != nil {
		// The message was decodable at lease time, so this is a
		// programming error rather than bad input.
		log.Error("failed to re-encode leased message",
			"task_id", lease.Message.TaskID, "error", err)
		return
	}

	unitName := UnitName(taskData, lease.Receipt)
	log = log.With("unit_name", unitName,
		"task_id", lease.Message.TaskID,
		"delivery_count", lease.DeliveryCount)

	// Keep the lease alive while the unit runs. The keepalive stops the
	// moment the unit settles, so a failed unit still lets the lease
	// run out and the message redeliver.
	keepCtx, stopKeepAlive := context.WithCancel(ctx)
	go d.keepAlive(keepCtx, lease.Receipt, log)
	defer stopKeepAlive()

	if err := d.prov.Provision(ctx, unitName, taskData); err != nil {
		log.Warn("unit did not complete, leaving lease to expire", "error", err)
		return
	}

	if err := d.client.Delete(ctx, lease.Receipt); err != nil {
		// The unit succeeded but the lease lapsed first. The message
		// will redeliver; the handler's idempotency absorbs the rerun.
		log.Warn("delete after success failed, message will redeliver", "error", err)
		return
	}
	log.Info("task dispatched and settled")
}

// keepAlive renews the lease at half the visibility window until
// cancelled. A renewal failure means the lease is already lost, so the
// loop stops and lets redelivery take over.
func (d *Dispatcher) keepAlive(ctx context.Context, receipt string, log *slog.Logger) {
	interval := d.cfg.Visibility / 2
	if interval <= 0 {
		interval = time.Second
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.clk.After(interval):
			if err := d.client.Renew(ctx, receipt, d.cfg.Visibility); err != nil {
				log.Warn("lease renewal failed", "error", err)
				return
			}
			log.Debug("lease renewed")
		}
	}
}
