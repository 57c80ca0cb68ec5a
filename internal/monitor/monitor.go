// Package monitor runs the decision core as cooperating tasks: one
// goroutine per inbound domain queue, each draining its bounded channel in
// order and forwarding derived events to a single outbound channel. The
// modules never call each other; they share only the clock, read-only.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/coldchain-sensor/internal/clock"
	"github.com/sweeney/coldchain-sensor/internal/logic"
	"github.com/sweeney/coldchain-sensor/internal/metrics"
)

// Config wires the core modules.
type Config struct {
	QueueSize int // capacity of every inbound queue and the outbound queue

	Ambient logic.TemperatureConfig
	Storage logic.TemperatureConfig

	InitialDoor  logic.DoorPosition
	InitialPower logic.PowerStatus

	DoorAlarmThreshold  time.Duration
	PowerAlarmThreshold time.Duration
}

// Snapshot is a point-in-time view of all four modules.
type Snapshot struct {
	At      clock.Timestamp
	Ambient logic.TemperatureState
	Storage logic.TemperatureState
	Door    logic.DoorSnapshot
	Power   logic.PowerSnapshot
}

// PeriodRecord is the finalized accumulation for one reporting period.
type PeriodRecord struct {
	At      clock.Timestamp
	Ambient logic.TemperatureRecord
	Storage logic.TemperatureRecord
	Door    logic.DoorSnapshot
	Power   logic.PowerSnapshot
}

// Monitor owns the four core modules and their queues.
type Monitor struct {
	clk *clock.Clock
	log logrus.FieldLogger
	met *metrics.Metrics

	// mu guards the modules. Each module is written only by its own task;
	// the lock exists so Snapshot and FinalizeRecords can read across all
	// of them consistently.
	mu      sync.Mutex
	ambient *logic.TemperatureAggregator
	storage *logic.TemperatureAggregator
	door    *logic.Door
	power   *logic.Power

	temps  chan logic.TemperatureSample
	doors  chan logic.DoorEdge
	powers chan logic.PowerEdge
	events chan logic.Event
}

// New creates a Monitor. The metrics argument may be nil.
func New(clk *clock.Clock, cfg Config, log logrus.FieldLogger, met *metrics.Metrics) *Monitor {
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 8
	}
	now := clk.Now()
	return &Monitor{
		clk:     clk,
		log:     log,
		met:     met,
		ambient: logic.NewTemperatureAggregator(logic.ChannelAmbient, cfg.Ambient),
		storage: logic.NewTemperatureAggregator(logic.ChannelStorage, cfg.Storage),
		door:    logic.NewDoor(cfg.InitialDoor, now, cfg.DoorAlarmThreshold),
		power:   logic.NewPower(cfg.InitialPower, now, cfg.PowerAlarmThreshold),
		temps:   make(chan logic.TemperatureSample, cfg.QueueSize),
		doors:   make(chan logic.DoorEdge, cfg.QueueSize),
		powers:  make(chan logic.PowerEdge, cfg.QueueSize),
		events:  make(chan logic.Event, cfg.QueueSize),
	}
}

// Temperatures is the inbound queue for temperature samples. The producer
// must deliver samples for a given channel in timestamp order.
func (m *Monitor) Temperatures() chan<- logic.TemperatureSample {
	return m.temps
}

// DoorEdges is the inbound queue for debounced door edges.
func (m *Monitor) DoorEdges() chan<- logic.DoorEdge {
	return m.doors
}

// PowerEdges is the inbound queue for debounced power edges.
func (m *Monitor) PowerEdges() chan<- logic.PowerEdge {
	return m.powers
}

// Events is the outbound event queue. The consumer must drain it; events
// from different domains arrive in no promised relative order.
func (m *Monitor) Events() <-chan logic.Event {
	return m.events
}

// Run drains the inbound queues until ctx is canceled. It always returns
// ctx.Err(); nothing the core does is fatal.
func (m *Monitor) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return m.temperatureLoop(ctx) })
	g.Go(func() error { return m.doorLoop(ctx) })
	g.Go(func() error { return m.powerLoop(ctx) })
	return g.Wait()
}

func (m *Monitor) temperatureLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s := <-m.temps:
			m.mu.Lock()
			agg := m.ambient
			if s.Channel == logic.ChannelStorage {
				agg = m.storage
			}
			ev, err := agg.Ingest(s)
			m.mu.Unlock()
			if err != nil {
				m.noteIngestError(err, "temperature", string(s.Channel))
				continue
			}
			if m.met != nil {
				m.met.Temperature.WithLabelValues(string(s.Channel)).Set(s.Value)
			}
			if ev != nil {
				if err := m.emit(ctx, *ev); err != nil {
					return err
				}
			}
		}
	}
}

func (m *Monitor) doorLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-m.doors:
			m.mu.Lock()
			ev, err := m.door.Ingest(e)
			m.mu.Unlock()
			if err != nil {
				m.noteIngestError(err, "door", "")
				continue
			}
			if m.met != nil {
				if e.Position == logic.DoorOpen {
					m.met.DoorOpen.Set(1)
				} else {
					m.met.DoorOpen.Set(0)
				}
			}
			if ev != nil {
				if err := m.emit(ctx, *ev); err != nil {
					return err
				}
			}
		}
	}
}

func (m *Monitor) powerLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-m.powers:
			m.mu.Lock()
			ev, err := m.power.Ingest(e)
			m.mu.Unlock()
			if err != nil {
				m.noteIngestError(err, "power", "")
				continue
			}
			if m.met != nil {
				if e.Status == logic.PowerPresent {
					m.met.PowerPresent.Set(1)
				} else {
					m.met.PowerPresent.Set(0)
				}
			}
			if ev != nil {
				if err := m.emit(ctx, *ev); err != nil {
					return err
				}
			}
		}
	}
}

func (m *Monitor) emit(ctx context.Context, ev logic.Event) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case m.events <- ev:
		return nil
	}
}

func (m *Monitor) noteIngestError(err error, domain, channel string) {
	fields := logrus.Fields{"domain": domain}
	if channel != "" {
		fields["channel"] = channel
	}
	m.log.WithFields(fields).WithError(err).Warn("input rejected")
	if m.met == nil {
		return
	}
	switch err {
	case logic.ErrInvalidSample:
		m.met.InvalidSamples.WithLabelValues(channel).Inc()
	case logic.ErrOutOfOrder:
		m.met.OutOfOrderInputs.WithLabelValues(domain).Inc()
	}
}

// Snapshot returns a consistent view across all four modules.
func (m *Monitor) Snapshot() Snapshot {
	now := m.clk.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		At:      now,
		Ambient: m.ambient.State(),
		Storage: m.storage.State(),
		Door:    m.door.Snapshot(now),
		Power:   m.power.Snapshot(now),
	}
}

// FinalizeRecords closes the current reporting period: it returns the
// period's accumulated records and resets the accumulators.
func (m *Monitor) FinalizeRecords() PeriodRecord {
	now := m.clk.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	return PeriodRecord{
		At:      now,
		Ambient: m.ambient.FinalizeRecord(),
		Storage: m.storage.FinalizeRecord(),
		Door:    m.door.ResetCounters(now),
		Power:   m.power.ResetCounters(now),
	}
}
