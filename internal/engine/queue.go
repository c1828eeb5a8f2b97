package engine

import "container/list"

// RequestQueue is a bounded FIFO of requests awaiting backend capacity.
// It is not safe for concurrent use; the scheduler goroutine owns it.
type RequestQueue struct {
	max   int
	order *list.List
	index map[string]*list.Element
}

// NewRequestQueue returns an empty queue holding at most max requests.
func NewRequestQueue(max int) *RequestQueue {
	if max <= 0 {
		max = defaultMaxQueueDepth
	}
	return &RequestQueue{max: max, order: list.New(), index: make(map[string]*list.Element)}
}

// Enqueue appends req, or fails with a capacity error once the bound is reached.
func (q *RequestQueue) Enqueue(req *GenerationRequest) error {
	if q.order.Len() >= q.max {
		return capacityExceededError{depth: q.order.Len()}
	}
	q.index[req.ID] = q.order.PushBack(req)
	return nil
}

// DequeueNext removes and returns the oldest request, or nil when empty.
func (q *RequestQueue) DequeueNext() *GenerationRequest {
	front := q.order.Front()
	if front == nil {
		return nil
	}
	req := q.order.Remove(front).(*GenerationRequest)
	delete(q.index, req.ID)
	return req
}

// Remove takes the request with the given id out of the queue, preserving
// the order of the rest.
func (q *RequestQueue) Remove(id string) (*GenerationRequest, bool) {
	el, ok := q.index[id]
	if !ok {
		return nil, false
	}
	delete(q.index, id)
	return q.order.Remove(el).(*GenerationRequest), true
}

// Get returns a queued request without removing it.
func (q *RequestQueue) Get(id string) (*GenerationRequest, bool) {
	el, ok := q.index[id]
	if !ok {
		return nil, false
	}
	return el.Value.(*GenerationRequest), true
}

func (q *RequestQueue) Len() int { return q.order.Len() }
func (q *RequestQueue) Cap() int { return q.max }

// Drain empties the queue and returns its former contents in FIFO order.
func (q *RequestQueue) Drain() []*GenerationRequest {
	out := make([]*GenerationRequest, 0, q.order.Len())
	for req := q.DequeueNext(); req != nil; req = q.DequeueNext() {
		out = append(out, req)
	}
	return out
}
