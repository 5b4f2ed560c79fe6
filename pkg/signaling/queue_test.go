package signaling

import "testing"

func TestOutboundQueueFIFO(t *testing.T) {
	var q outboundQueue
	q.Enqueue(Envelope{Type: "a"})
	q.Enqueue(Envelope{Type: "b"})
	q.Enqueue(Envelope{Type: "c"})
	if q.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", q.Len())
	}

	drained := q.DrainAll()
	if len(drained) != 3 {
		t.Fatalf("len(drained) = %d, want 3", len(drained))
	}
	for i, want := range []string{"a", "b", "c"} {
		if drained[i].Type != want {
			t.Fatalf("drained[%d].Type = %q, want %q", i, drained[i].Type, want)
		}
	}
	if q.Len() != 0 {
		t.Fatalf("Len() after drain = %d, want 0", q.Len())
	}
}

func TestOutboundQueueDrainEmpty(t *testing.T) {
	var q outboundQueue
	if drained := q.DrainAll(); len(drained) != 0 {
		t.Fatalf("DrainAll on empty queue returned %d items", len(drained))
	}
}

func TestOutboundQueueClear(t *testing.T) {
	var q outboundQueue
	q.Enqueue(Envelope{Type: "a"})
	q.Clear()
	if q.Len() != 0 {
		t.Fatalf("Len() after Clear = %d, want 0", q.Len())
	}
}
