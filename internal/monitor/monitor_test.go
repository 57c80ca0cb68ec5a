package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/coldchain-sensor/internal/clock"
	"github.com/sweeney/coldchain-sensor/internal/logic"
)

func testConfig() Config {
	return Config{
		QueueSize:           8,
		Ambient:             logic.TemperatureConfig{Low: 10, High: 35, Window: 8},
		Storage:             logic.TemperatureConfig{Low: 2, High: 8, Window: 8},
		InitialDoor:         logic.DoorClosed,
		InitialPower:        logic.PowerPresent,
		DoorAlarmThreshold:  5 * time.Minute,
		PowerAlarmThreshold: 24 * time.Hour,
	}
}

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func startMonitor(t *testing.T) (*Monitor, *clock.FakeTicks, context.CancelFunc) {
	t.Helper()
	ticks := clock.NewFakeTicks()
	clk := clock.New(ticks)
	m := New(clk, testConfig(), testLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return m, ticks, cancel
}

func waitEvent(t *testing.T, m *Monitor) logic.Event {
	t.Helper()
	select {
	case ev := <-m.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return logic.Event{}
	}
}

func expectNoEvent(t *testing.T, m *Monitor) {
	t.Helper()
	select {
	case ev := <-m.Events():
		t.Fatalf("unexpected event %s", ev.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTemperatureEventFlow(t *testing.T) {
	m, _, _ := startMonitor(t)

	m.Temperatures() <- logic.TemperatureSample{Channel: logic.ChannelStorage, Value: 5, At: clock.FromMicros(1_000_000)}
	m.Temperatures() <- logic.TemperatureSample{Channel: logic.ChannelStorage, Value: 11, At: clock.FromMicros(2_000_000)}

	ev := waitEvent(t, m)
	if ev.Type != logic.EventExcursionStarted {
		t.Fatalf("expected ExcursionStarted, got %s", ev.Type)
	}
	if ev.Temperature.Channel != logic.ChannelStorage {
		t.Errorf("expected storage channel, got %s", ev.Temperature.Channel)
	}
}

func TestDoorAndPowerEventFlow(t *testing.T) {
	m, _, _ := startMonitor(t)

	m.DoorEdges() <- logic.DoorEdge{Position: logic.DoorOpen, At: clock.FromMicros(1_000_000)}
	ev := waitEvent(t, m)
	if ev.Type != logic.EventDoorOpened {
		t.Fatalf("expected DoorOpened, got %s", ev.Type)
	}

	m.PowerEdges() <- logic.PowerEdge{Status: logic.PowerAbsent, At: clock.FromMicros(2_000_000)}
	ev = waitEvent(t, m)
	if ev.Type != logic.EventPowerLost {
		t.Fatalf("expected PowerLost, got %s", ev.Type)
	}
}

func TestInvalidSampleProducesNoEvent(t *testing.T) {
	m, _, _ := startMonitor(t)

	m.Temperatures() <- logic.TemperatureSample{Channel: logic.ChannelStorage, Value: -300, At: clock.FromMicros(1_000_000)}
	expectNoEvent(t, m)

	// The rejected sample must not have seeded the statistics.
	snap := m.Snapshot()
	if snap.Storage.SampleCount != 0 {
		t.Errorf("invalid sample entered the window: %d", snap.Storage.SampleCount)
	}
}

func TestDuplicateEdgesProduceOneEvent(t *testing.T) {
	m, _, _ := startMonitor(t)

	m.DoorEdges() <- logic.DoorEdge{Position: logic.DoorOpen, At: clock.FromMicros(1_000_000)}
	m.DoorEdges() <- logic.DoorEdge{Position: logic.DoorOpen, At: clock.FromMicros(2_000_000)}

	ev := waitEvent(t, m)
	if ev.Type != logic.EventDoorOpened {
		t.Fatalf("expected DoorOpened, got %s", ev.Type)
	}
	expectNoEvent(t, m)
}

func TestSnapshotSeesAllModules(t *testing.T) {
	m, ticks, _ := startMonitor(t)

	m.Temperatures() <- logic.TemperatureSample{Channel: logic.ChannelAmbient, Value: 21, At: clock.FromMicros(1_000_000)}
	m.DoorEdges() <- logic.DoorEdge{Position: logic.DoorOpen, At: clock.FromMicros(1_000_000)}
	waitEvent(t, m) // DoorOpened

	// The temperature task runs independently of the door task, so wait for
	// the sample to land before reading the snapshot.
	deadline := time.Now().Add(2 * time.Second)
	for m.Snapshot().Ambient.SampleCount < 1 {
		if time.Now().After(deadline) {
			t.Fatal("ambient sample not processed in time")
		}
		time.Sleep(5 * time.Millisecond)
	}

	ticks.Advance(10 * time.Second)
	snap := m.Snapshot()
	if snap.Ambient.Last != 21 {
		t.Errorf("ambient last = %v, want 21", snap.Ambient.Last)
	}
	if snap.Door.Position != logic.DoorOpen {
		t.Errorf("door position = %s, want OPEN", snap.Door.Position)
	}
	if snap.Power.Status != logic.PowerPresent {
		t.Errorf("power status = %s, want PRESENT", snap.Power.Status)
	}
}

func TestFinalizeRecordsResets(t *testing.T) {
	m, _, _ := startMonitor(t)

	m.Temperatures() <- logic.TemperatureSample{Channel: logic.ChannelStorage, Value: 4, At: clock.FromMicros(0)}
	m.Temperatures() <- logic.TemperatureSample{Channel: logic.ChannelStorage, Value: 6, At: clock.FromMicros(900_000_000)}

	// Wait until both samples are processed.
	deadline := time.Now().Add(2 * time.Second)
	for m.Snapshot().Storage.SampleCount < 2 {
		if time.Now().After(deadline) {
			t.Fatal("samples not processed in time")
		}
		time.Sleep(5 * time.Millisecond)
	}

	rec := m.FinalizeRecords()
	if rec.Storage.Samples != 2 {
		t.Errorf("expected 2 samples in record, got %d", rec.Storage.Samples)
	}
	if rec.Storage.Mean() != 5 {
		t.Errorf("expected mean 5, got %v", rec.Storage.Mean())
	}

	rec = m.FinalizeRecords()
	if !rec.Storage.Empty() {
		t.Error("second finalize should return an empty record")
	}
}
