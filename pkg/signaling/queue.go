package signaling

// outboundQueue accumulates envelopes while the session is not open. Flush
// order is submission order. Callers guard it with the client mutex.
type outboundQueue struct {
	items []Envelope
}

func (q *outboundQueue) Enqueue(env Envelope) {
	q.items = append(q.items, env)
}

// DrainAll removes and returns every queued envelope in FIFO order.
func (q *outboundQueue) DrainAll() []Envelope {
	items := q.items
	q.items = nil
	return items
}

func (q *outboundQueue) Len() int {
	return len(q.items)
}

func (q *outboundQueue) Clear() {
	q.items = nil
}
