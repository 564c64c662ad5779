package pulse

// pulseQueue holds the pending deliveries of a press in arrival order.
type pulseQueue struct {
	items []*Delivery
	head  int
}

func newPulseQueue() *pulseQueue {
	return &pulseQueue{items: make([]*Delivery, 0, 64)}
}

func (q *pulseQueue) Push(d *Delivery) {
	q.items = append(q.items, d)
}

func (q *pulseQueue) Pop() *Delivery {
	if q.head == len(q.items) {
		return nil
	}

	d := q.items[q.head]
	q.items[q.head] = nil
	q.head++

	if q.head == len(q.items) {
		q.Clear()
	}

	return d
}

func (q *pulseQueue) Len() int {
	return len(q.items) - q.head
}

func (q *pulseQueue) Clear() {
	for i := q.head; i < len(q.items); i++ {
		q.items[i] = nil
	}

	q.items = q.items[:0]
	q.head = 0
}
