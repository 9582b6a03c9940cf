package lock

import (
	"minirel/pkg/primitives"
)

// waitQueue holds the FIFO queues of blocked lock requests, one queue
// per page. The manager's mutex guards every call.
type waitQueue struct {
	byPage map[primitives.PageID][]*request
}

func newWaitQueue() *waitQueue {
	return &waitQueue{byPage: make(map[primitives.PageID][]*request)}
}

func (wq *waitQueue) enqueue(req *request) {
	wq.byPage[req.pid] = append(wq.byPage[req.pid], req)
}

// peek returns the head of pid's queue without removing it.
func (wq *waitQueue) peek(pid primitives.PageID) *request {
	queue := wq.byPage[pid]
	if len(queue) == 0 {
		return nil
	}
	return queue[0]
}

// dequeue removes and returns the head of pid's queue.
func (wq *waitQueue) dequeue(pid primitives.PageID) *request {
	queue := wq.byPage[pid]
	if len(queue) == 0 {
		return nil
	}
	head := queue[0]
	if len(queue) == 1 {
		delete(wq.byPage, pid)
	} else {
		wq.byPage[pid] = queue[1:]
	}
	return head
}

// isEmpty reports whether pid has no blocked requests.
func (wq *waitQueue) isEmpty(pid primitives.PageID) bool {
	return len(wq.byPage[pid]) == 0
}

// waiters returns pid's blocked requests in FIFO order.
func (wq *waitQueue) waiters(pid primitives.PageID) []*request {
	return wq.byPage[pid]
}

// removeByTID drops and returns every request by tid, across all
// pages, preserving FIFO order among the rest.
func (wq *waitQueue) removeByTID(tid *primitives.TransactionID) []*request {
	var removed []*request
	for pid, queue := range wq.byPage {
		kept := queue[:0]
		for _, req := range queue {
			if req.tid.Equals(tid) {
				removed = append(removed, req)
			} else {
				kept = append(kept, req)
			}
		}
		if len(kept) == 0 {
			delete(wq.byPage, pid)
		} else {
			wq.byPage[pid] = kept
		}
	}
	return removed
}
