package progress

import "testing"

// TestBusSince verifies incremental snapshot reads by sequence.
func TestBusSince(t *testing.T) {
	bus := NewBus(3)
	bus.Publish(Snapshot{State: StateInitiating})
	bus.Publish(Snapshot{State: StateLoadingTarget})
	bus.Publish(Snapshot{State: StateAnalyzing})

	snaps := bus.Since(1)
	if len(snaps) != 2 {
		t.Fatalf("len = %d, want 2", len(snaps))
	}
	if snaps[0].Seq != 2 || snaps[1].Seq != 3 {
		t.Fatalf("unexpected seqs: %+v", snaps)
	}
}

// TestBusCapsHistory verifies buffer limit trimming behavior.
func TestBusCapsHistory(t *testing.T) {
	bus := NewBus(2)
	bus.Publish(Snapshot{Message: "1"})
	bus.Publish(Snapshot{Message: "2"})
	bus.Publish(Snapshot{Message: "3"})

	snaps := bus.Since(0)
	if len(snaps) != 2 {
		t.Fatalf("len = %d, want 2", len(snaps))
	}
	if snaps[0].Message != "2" || snaps[1].Message != "3" {
		t.Fatalf("unexpected snapshots: %+v", snaps)
	}
}

// TestBusLatest verifies the most-recent accessor.
func TestBusLatest(t *testing.T) {
	bus := NewBus(5)
	if _, ok := bus.Latest(); ok {
		t.Fatal("expected no latest on empty bus")
	}

	bus.Publish(Snapshot{State: StateInitiating})
	bus.Publish(Snapshot{State: StateAnalyzing})

	latest, ok := bus.Latest()
	if !ok || latest.State != StateAnalyzing {
		t.Fatalf("latest = %+v, ok = %v", latest, ok)
	}
}

// TestBusSubscribeReceivesPublishes verifies independent observers.
func TestBusSubscribeReceivesPublishes(t *testing.T) {
	bus := NewBus(10)
	first, cancelFirst := bus.Subscribe()
	second, cancelSecond := bus.Subscribe()
	defer cancelSecond()

	bus.Publish(Snapshot{State: StateInitiating})

	a := <-first
	b := <-second
	if a.State != StateInitiating || b.State != StateInitiating {
		t.Fatalf("subscriber snapshots = %+v / %+v", a, b)
	}

	cancelFirst()
	bus.Publish(Snapshot{State: StateAnalyzing})

	if got := <-second; got.State != StateAnalyzing {
		t.Fatalf("second subscriber got %+v", got)
	}
	if _, open := <-first; open {
		t.Fatal("cancelled subscriber channel should be closed")
	}
}

// TestBusCancelIsIdempotent verifies double-cancel does not panic.
func TestBusCancelIsIdempotent(t *testing.T) {
	bus := NewBus(10)
	_, cancel := bus.Subscribe()
	cancel()
	cancel()
}
