package main

import (
	"context"
	"io"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/coldchain-sensor/internal/clock"
	"github.com/sweeney/coldchain-sensor/internal/config"
	"github.com/sweeney/coldchain-sensor/internal/gpio"
	"github.com/sweeney/coldchain-sensor/internal/logic"
	"github.com/sweeney/coldchain-sensor/internal/metrics"
	"github.com/sweeney/coldchain-sensor/internal/monitor"
	"github.com/sweeney/coldchain-sensor/internal/mqtt"
	"github.com/sweeney/coldchain-sensor/internal/sensor"
	"github.com/sweeney/coldchain-sensor/internal/status"
)

type testDaemon struct {
	*daemon
	ticks *clock.FakeTicks
	pub   *mqtt.FakePublisher
	reg   *prometheus.Registry
}

func newTestDaemon(t *testing.T, inputSamples []gpio.Sample, tempSamples []sensor.Sample) *testDaemon {
	t.Helper()

	cfg := config.Default()
	log := logrus.New()
	log.SetOutput(io.Discard)

	ticks := clock.NewFakeTicks()
	clk := clock.New(ticks)

	reg := prometheus.NewRegistry()
	met := metrics.New(reg)

	mon := monitor.New(clk, monitor.Config{
		QueueSize: cfg.QueueSize,
		Ambient: logic.TemperatureConfig{
			Low:    cfg.Temperature.Ambient.Low,
			High:   cfg.Temperature.Ambient.High,
			Window: cfg.Temperature.Window,
		},
		Storage: logic.TemperatureConfig{
			Low:    cfg.Temperature.Storage.Low,
			High:   cfg.Temperature.Storage.High,
			Window: cfg.Temperature.Window,
		},
		InitialDoor:         logic.DoorClosed,
		InitialPower:        logic.PowerPresent,
		DoorAlarmThreshold:  cfg.Door.AlarmThreshold.Std(),
		PowerAlarmThreshold: cfg.Power.AlarmThreshold.Std(),
	}, log, met)

	pub := mqtt.NewFakePublisher()
	pub.Connected = true

	tracker := status.NewTracker(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), status.Config{
		Broker: cfg.Broker,
	})

	return &testDaemon{
		daemon: &daemon{
			cfg:      cfg,
			log:      log,
			clk:      clk,
			mon:      mon,
			met:      met,
			inputs:   gpio.NewFakeReader(inputSamples),
			temps:    sensor.NewFakeReader(tempSamples),
			pub:      pub,
			pubStat:  pub,
			tracker:  tracker,
			doorDeb:  gpio.NewDebouncer(cfg.Door.Debounce.Std()),
			powerDeb: gpio.NewDebouncer(cfg.Power.Debounce.Std()),
			wallNow:  time.Now,
		},
		ticks: ticks,
		pub:   pub,
		reg:   reg,
	}
}

// waitEvent receives one core event or fails the test.
func waitEvent(t *testing.T, mon *monitor.Monitor) logic.Event {
	t.Helper()
	select {
	case ev := <-mon.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return logic.Event{}
	}
}

func expectNoEvent(t *testing.T, mon *monitor.Monitor) {
	t.Helper()
	select {
	case ev := <-mon.Events():
		t.Fatalf("unexpected event %s", ev.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPollOnceEmitsDoorEvent(t *testing.T) {
	steady := gpio.Sample{DoorOpen: false, PowerPresent: true}
	open := gpio.Sample{DoorOpen: true, PowerPresent: true}
	td := newTestDaemon(t,
		[]gpio.Sample{steady, steady, open, open},
		[]sensor.Sample{{Ambient: 22, Storage: 5}},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go td.mon.Run(ctx)

	// Two polls establish the baseline (closed, present) — matches the
	// monitor's initial state, so no events.
	td.ticks.Advance(time.Second)
	td.pollOnce(ctx)
	td.ticks.Advance(time.Second)
	td.pollOnce(ctx)
	expectNoEvent(t, td.mon)

	// Door opens and holds past the debounce dwell.
	td.ticks.Advance(time.Second)
	td.pollOnce(ctx)
	td.ticks.Advance(time.Second)
	td.pollOnce(ctx)

	ev := waitEvent(t, td.mon)
	if ev.Type != logic.EventDoorOpened {
		t.Fatalf("expected DOOR_OPENED, got %s", ev.Type)
	}
	if ev.Door == nil || ev.Door.Position != logic.DoorOpen {
		t.Errorf("unexpected door snapshot: %+v", ev.Door)
	}
}

func TestPollOnceEmitsExcursion(t *testing.T) {
	steady := gpio.Sample{DoorOpen: false, PowerPresent: true}
	td := newTestDaemon(t,
		[]gpio.Sample{steady},
		[]sensor.Sample{{Ambient: 22, Storage: 9.5}}, // storage above the 8.0 bound
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go td.mon.Run(ctx)

	td.ticks.Advance(time.Second)
	td.pollOnce(ctx)

	ev := waitEvent(t, td.mon)
	if ev.Type != logic.EventExcursionStarted {
		t.Fatalf("expected TEMPERATURE_EXCURSION_STARTED, got %s", ev.Type)
	}
	if ev.Temperature == nil || ev.Temperature.Channel != logic.ChannelStorage {
		t.Errorf("unexpected temperature snapshot: %+v", ev.Temperature)
	}
	if ev.Temperature.Status != logic.ExcursionAbove {
		t.Errorf("status: got %s, want ABOVE_RANGE", ev.Temperature.Status)
	}
}

func TestPollOnceSensorErrorSkipsSamples(t *testing.T) {
	steady := gpio.Sample{DoorOpen: false, PowerPresent: true}
	td := newTestDaemon(t, []gpio.Sample{steady}, []sensor.Sample{{Ambient: 22, Storage: 5}})
	td.temps.(*sensor.FakeReader).ReadError = io.ErrUnexpectedEOF

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go td.mon.Run(ctx)

	td.ticks.Advance(time.Second)
	td.pollOnce(ctx)
	expectNoEvent(t, td.mon)
}

func TestPollOnceRefreshesTracker(t *testing.T) {
	steady := gpio.Sample{DoorOpen: false, PowerPresent: true}
	td := newTestDaemon(t, []gpio.Sample{steady}, []sensor.Sample{{Ambient: 22, Storage: 5}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go td.mon.Run(ctx)

	// Nominal readings produce no events, but each poll must still push
	// fresh state to the tracker. Sample ingestion is asynchronous, so keep
	// polling until a later refresh has picked the samples up.
	deadline := time.Now().Add(2 * time.Second)
	for td.tracker.Snapshot().State.Ambient.SampleCount < 1 {
		if time.Now().After(deadline) {
			t.Fatal("tracker never saw the polled samples")
		}
		td.ticks.Advance(time.Second)
		td.pollOnce(ctx)
		time.Sleep(5 * time.Millisecond)
	}
	expectNoEvent(t, td.mon)

	snap := td.tracker.Snapshot()
	if snap.State.Ambient.Last != 22 {
		t.Errorf("tracker ambient last: got %v, want 22", snap.State.Ambient.Last)
	}
	if snap.State.Storage.Last != 5 {
		t.Errorf("tracker storage last: got %v, want 5", snap.State.Storage.Last)
	}
	if !snap.MQTTConnected {
		t.Error("tracker should report MQTT connected")
	}
}

func TestRunLoopShutdownOnSignal(t *testing.T) {
	steady := gpio.Sample{DoorOpen: false, PowerPresent: true}
	td := newTestDaemon(t, []gpio.Sample{steady}, []sensor.Sample{{Ambient: 22, Storage: 5}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	done := make(chan error, 1)
	go func() {
		done <- td.runLoop(ctx, nil, nil, nil, nil, sigCh)
	}()

	sigCh <- syscall.SIGTERM
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runLoop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("runLoop did not return after signal")
	}

	if len(td.pub.SystemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(td.pub.SystemEvents))
	}
	ev := td.pub.SystemEvents[0]
	if ev.Event != "SHUTDOWN" || ev.Reason != "SIGTERM" {
		t.Errorf("unexpected shutdown event: %+v", ev)
	}
	if !ev.Retained {
		t.Error("shutdown event should be retained")
	}
	if !strings.Contains(string(td.pub.SystemPayloads[0]), `"SHUTDOWN"`) {
		t.Errorf("payload missing SHUTDOWN: %s", td.pub.SystemPayloads[0])
	}
}

func TestDrainEventsPublishes(t *testing.T) {
	steady := gpio.Sample{DoorOpen: false, PowerPresent: true}
	td := newTestDaemon(t, []gpio.Sample{steady}, []sensor.Sample{{Ambient: 22, Storage: 5}})

	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return td.mon.Run(ctx) })
	g.Go(func() error { return td.drainEvents(ctx) })

	td.ticks.Advance(time.Second)
	td.mon.DoorEdges() <- logic.DoorEdge{Position: logic.DoorOpen, At: td.clk.Now()}

	// Let the pipeline settle, then stop everything before asserting.
	time.Sleep(200 * time.Millisecond)
	cancel()
	g.Wait()

	if len(td.pub.Events) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(td.pub.Events))
	}
	if td.pub.Events[0].Type != logic.EventDoorOpened {
		t.Errorf("unexpected event type: %s", td.pub.Events[0].Type)
	}

	snap := td.tracker.Snapshot()
	if snap.State.Door.Position != logic.DoorOpen {
		t.Errorf("tracker door: got %s, want OPEN", snap.State.Door.Position)
	}
	if !snap.MQTTConnected {
		t.Error("tracker should report MQTT connected")
	}
}

func TestPublishHeartbeat(t *testing.T) {
	steady := gpio.Sample{DoorOpen: false, PowerPresent: true}
	td := newTestDaemon(t, []gpio.Sample{steady}, []sensor.Sample{{Ambient: 22, Storage: 5}})

	td.ticks.Advance(time.Minute)
	td.publishHeartbeat()

	if len(td.pub.SystemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(td.pub.SystemEvents))
	}
	if td.pub.SystemEvents[0].Event != "HEARTBEAT" {
		t.Errorf("unexpected event: %s", td.pub.SystemEvents[0].Event)
	}
	if !strings.Contains(string(td.pub.SystemPayloads[0]), `"HEARTBEAT"`) {
		t.Errorf("payload missing HEARTBEAT: %s", td.pub.SystemPayloads[0])
	}
}

func TestPublishRecord(t *testing.T) {
	steady := gpio.Sample{DoorOpen: false, PowerPresent: true}
	td := newTestDaemon(t, []gpio.Sample{steady}, []sensor.Sample{{Ambient: 22, Storage: 5}})

	td.ticks.Advance(15 * time.Minute)
	td.publishRecord()

	if len(td.pub.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(td.pub.Records))
	}
	if td.pub.Records[0].At != td.clk.Now() {
		t.Errorf("record timestamp: got %v", td.pub.Records[0].At)
	}
}

func TestSyncClockRegressionClamped(t *testing.T) {
	steady := gpio.Sample{DoorOpen: false, PowerPresent: true}
	td := newTestDaemon(t, []gpio.Sample{steady}, []sensor.Sample{{Ambient: 22, Storage: 5}})

	// First sync far in the future, then a sync that jumps backward.
	future := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	td.wallNow = func() time.Time { return future }
	td.syncClock()
	td.clk.Now()

	td.wallNow = func() time.Time { return future.Add(-time.Hour) }
	td.syncClock()

	if !td.clk.Tracking() {
		t.Error("clock should be tracking after sync")
	}
	if got := counterValue(t, td.reg, "coldchain_clock_regressions_total"); got != 1 {
		t.Errorf("clock regressions: got %v, want 1", got)
	}
	if !td.tracker.Snapshot().ClockTracking {
		t.Error("tracker should report clock tracking")
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			for _, m := range mf.GetMetric() {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestMaybeTicker(t *testing.T) {
	if maybeTicker(0) != nil {
		t.Error("zero interval should return nil channel")
	}
	if maybeTicker(time.Minute) == nil {
		t.Error("positive interval should return a channel")
	}
}

func TestSignalName(t *testing.T) {
	if got := signalName(syscall.SIGINT); got != "SIGINT" {
		t.Errorf("SIGINT: got %s", got)
	}
	if got := signalName(syscall.SIGTERM); got != "SIGTERM" {
		t.Errorf("SIGTERM: got %s", got)
	}
	if got := signalName(syscall.SIGHUP); got != "UNKNOWN" {
		t.Errorf("SIGHUP: got %s", got)
	}
}
