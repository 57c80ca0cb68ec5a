package logic

import (
	"errors"
	"testing"
	"time"
)

func TestDoorOpenCloseEvents(t *testing.T) {
	d := NewDoor(DoorClosed, ts(0), 5*time.Minute)

	ev, err := d.Ingest(DoorEdge{Position: DoorOpen, At: ts(100)})
	if err != nil {
		t.Fatalf("Ingest open: %v", err)
	}
	if ev == nil || ev.Type != EventDoorOpened {
		t.Fatalf("expected DoorOpened, got %+v", ev)
	}
	if ev.Duration != 100*time.Second {
		t.Errorf("expected closed interval 100s, got %v", ev.Duration)
	}
	if ev.Door.OpenCount != 1 {
		t.Errorf("expected open count 1, got %d", ev.Door.OpenCount)
	}

	ev, err = d.Ingest(DoorEdge{Position: DoorClosed, At: ts(160)})
	if err != nil {
		t.Fatalf("Ingest close: %v", err)
	}
	if ev == nil || ev.Type != EventDoorClosed {
		t.Fatalf("expected DoorClosed, got %+v", ev)
	}
	if ev.Duration != 60*time.Second {
		t.Errorf("expected open interval 60s, got %v", ev.Duration)
	}
	if ev.Door.OpenDuration != 60*time.Second {
		t.Errorf("expected cumulative 60s, got %v", ev.Door.OpenDuration)
	}
}

func TestDoorIdempotentEdges(t *testing.T) {
	d := NewDoor(DoorClosed, ts(0), 0)

	ev, _ := d.Ingest(DoorEdge{Position: DoorOpen, At: ts(10)})
	if ev == nil {
		t.Fatal("first open edge should emit")
	}
	afterFirst := d.OpenDuration(ts(50))

	// Feeding the same edge again: no event, no double counting.
	ev, err := d.Ingest(DoorEdge{Position: DoorOpen, At: ts(20)})
	if err != nil {
		t.Fatalf("duplicate edge errored: %v", err)
	}
	if ev != nil {
		t.Errorf("duplicate open edge emitted %v", ev.Type)
	}
	if got := d.OpenDuration(ts(50)); got != afterFirst {
		t.Errorf("duplicate edge changed open duration: %v != %v", got, afterFirst)
	}
	if d.Snapshot(ts(50)).OpenCount != 1 {
		t.Errorf("duplicate edge changed open count: %d", d.Snapshot(ts(50)).OpenCount)
	}
}

func TestDoorLazyOpenDuration(t *testing.T) {
	d := NewDoor(DoorClosed, ts(0), 0)

	// Open at t=0, query at t=100 mid-interval: 100.
	d.Ingest(DoorEdge{Position: DoorOpen, At: ts(0)})
	if got := d.OpenDuration(ts(100)); got != 100*time.Second {
		t.Errorf("expected 100s mid-open, got %v", got)
	}

	// Close at 150, reopen at 200, query at 250: 150 + (250-200) = 200.
	d.Ingest(DoorEdge{Position: DoorClosed, At: ts(150)})
	d.Ingest(DoorEdge{Position: DoorOpen, At: ts(200)})
	if got := d.OpenDuration(ts(250)); got != 200*time.Second {
		t.Errorf("expected 150+50=200s, got %v", got)
	}
}

func TestDoorOutOfOrderEdge(t *testing.T) {
	d := NewDoor(DoorClosed, ts(100), 0)
	_, err := d.Ingest(DoorEdge{Position: DoorOpen, At: ts(50)})
	if !errors.Is(err, ErrOutOfOrder) {
		t.Errorf("expected ErrOutOfOrder, got %v", err)
	}
	if d.Position() != DoorClosed {
		t.Error("out-of-order edge changed position")
	}
}

func TestDoorAlarm(t *testing.T) {
	d := NewDoor(DoorClosed, ts(0), 5*time.Minute)

	d.Ingest(DoorEdge{Position: DoorOpen, At: ts(10)})
	if d.Alarmed(ts(10 + 60)) {
		t.Error("alarmed after 1 minute with 5 minute threshold")
	}
	if !d.Alarmed(ts(10 + 300)) {
		t.Error("not alarmed after 5 minutes open")
	}

	d.Ingest(DoorEdge{Position: DoorClosed, At: ts(400)})
	if d.Alarmed(ts(10_000)) {
		t.Error("alarmed while closed")
	}
}

func TestDoorResetCounters(t *testing.T) {
	d := NewDoor(DoorClosed, ts(0), 0)

	d.Ingest(DoorEdge{Position: DoorOpen, At: ts(100)})
	d.Ingest(DoorEdge{Position: DoorClosed, At: ts(130)})
	d.Ingest(DoorEdge{Position: DoorOpen, At: ts(200)})

	snap := d.ResetCounters(ts(260))
	if snap.OpenCount != 2 {
		t.Errorf("expected 2 opens in period, got %d", snap.OpenCount)
	}
	if snap.OpenDuration != 90*time.Second {
		t.Errorf("expected 30+60=90s in period, got %v", snap.OpenDuration)
	}

	// Still open: the next period starts accumulating at the reset point.
	if got := d.OpenDuration(ts(300)); got != 40*time.Second {
		t.Errorf("expected 40s into new period, got %v", got)
	}
	if d.Snapshot(ts(300)).OpenCount != 0 {
		t.Error("open count should reset")
	}
}
