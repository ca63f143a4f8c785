package payload

// Queue is an ordered append/pop-front sequence of Values.
//
// It stands in for a cross-process queue: it only gains cross-process
// semantics by being embedded in a record that itself crosses the result
// channel. It is not safe for concurrent use and does not need to be; by
// construction it is filled on one side of the boundary and drained on the
// other.
type Queue struct {
	items []Value
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Put appends an item to the back of the queue.
func (q *Queue) Put(v Value) {
	q.items = append(q.items, v)
}

// Get removes and returns the front item. The second return is false when
// the queue is empty.
func (q *Queue) Get() (Value, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	v := q.items[0]
	q.items = q.items[1:]
	return v, true
}

// Empty reports whether the queue has no items.
func (q *Queue) Empty() bool {
	return len(q.items) == 0
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	return len(q.items)
}
