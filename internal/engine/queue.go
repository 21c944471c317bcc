package engine

import (
	"container/heap"
	"time"
)

// dueEntry is a pending evaluation for one contact. Each contact has at most
// one entry; scheduling again keeps the earlier due time.
type dueEntry struct {
	contactID string
	at        time.Time
	index     int
}

// dueQueue is a min-heap of dueEntry ordered by due time. Not safe for
// concurrent use; the engine serializes access.
type dueQueue struct {
	entries   []*dueEntry
	byContact map[string]*dueEntry
}

func newDueQueue() *dueQueue {
	return &dueQueue{byContact: make(map[string]*dueEntry)}
}

func (q *dueQueue) Len() int { return len(q.entries) }

func (q *dueQueue) Less(i, j int) bool { return q.entries[i].at.Before(q.entries[j].at) }

func (q *dueQueue) Swap(i, j int) {
	q.entries[i], q.entries[j] = q.entries[j], q.entries[i]
	q.entries[i].index = i
	q.entries[j].index = j
}

func (q *dueQueue) Push(x any) {
	e := x.(*dueEntry)
	e.index = len(q.entries)
	q.entries = append(q.entries, e)
}

func (q *dueQueue) Pop() any {
	old := q.entries
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	q.entries = old[:n-1]
	return e
}

// schedule records that the contact should be evaluated no later than at.
// An existing later entry is pulled forward; an earlier one is kept.
func (q *dueQueue) schedule(contactID string, at time.Time) {
	if e, ok := q.byContact[contactID]; ok {
		if at.Before(e.at) {
			e.at = at
			heap.Fix(q, e.index)
		}
		return
	}
	e := &dueEntry{contactID: contactID, at: at}
	q.byContact[contactID] = e
	heap.Push(q, e)
}

// remove drops the contact's pending entry, if any.
func (q *dueQueue) remove(contactID string) {
	e, ok := q.byContact[contactID]
	if !ok {
		return
	}
	delete(q.byContact, contactID)
	heap.Remove(q, e.index)
}

// nextAt returns the earliest due time, or false if the queue is empty.
func (q *dueQueue) nextAt() (time.Time, bool) {
	if len(q.entries) == 0 {
		return time.Time{}, false
	}
	return q.entries[0].at, true
}

// popDue removes and returns every contact whose entry is due at or before now.
func (q *dueQueue) popDue(now time.Time) []string {
	var due []string
	for len(q.entries) > 0 && !q.entries[0].at.After(now) {
		e := heap.Pop(q).(*dueEntry)
		delete(q.byContact, e.contactID)
		due = append(due, e.contactID)
	}
	return due
}
