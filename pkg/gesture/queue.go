package gesture

// frameQueue is a bounded FIFO. On overflow the oldest entries are evicted
// first: for live classification a fresh frame is worth more than a stale one.
// Callers guard it with the client mutex.
type frameQueue struct {
	max   int
	items []Frame
}

func newFrameQueue(max int) *frameQueue {
	if max <= 0 {
		max = 1
	}
	return &frameQueue{max: max}
}

// Push appends frame and returns how many old entries were evicted to stay
// within the maximum length.
func (q *frameQueue) Push(frame Frame) int {
	q.items = append(q.items, frame)
	evicted := 0
	if over := len(q.items) - q.max; over > 0 {
		q.items = q.items[over:]
		evicted = over
	}
	return evicted
}

// Pop removes and returns the oldest frame.
func (q *frameQueue) Pop() (Frame, bool) {
	if len(q.items) == 0 {
		return Frame{}, false
	}
	frame := q.items[0]
	q.items = q.items[1:]
	return frame, true
}

func (q *frameQueue) Len() int {
	return len(q.items)
}

func (q *frameQueue) Clear() {
	q.items = nil
}
