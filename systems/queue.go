package systems

import "container/heap"

// Commands due at the same time run players first, then game-internal
// work, then sync checks, so a sync hash covers everything due with it.
const (
	categoryPlayer = iota
	categoryGame
	categorySync
)

type queuedCommand struct {
	due      int32
	category int
	serial   uint64
	run      func(g *Game)
}

func (a *queuedCommand) less(b *queuedCommand) bool {
	if a.due != b.due {
		return a.due < b.due
	}
	if a.category != b.category {
		return a.category < b.category
	}
	return a.serial < b.serial
}

type commandHeap []*queuedCommand

func (h commandHeap) Len() int           { return len(h) }
func (h commandHeap) Less(i, j int) bool { return h[i].less(h[j]) }
func (h commandHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *commandHeap) Push(x any)        { *h = append(*h, x.(*queuedCommand)) }
func (h *commandHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// commandQueue orders commands by due time, category and per-category
// enqueue order.
type commandQueue struct {
	items   commandHeap
	serials [categorySync + 1]uint64
}

func (q *commandQueue) push(due int32, category int, run func(g *Game)) {
	q.serials[category]++
	heap.Push(&q.items, &queuedCommand{
		due:      due,
		category: category,
		serial:   q.serials[category],
		run:      run,
	})
}

// popDue removes and returns the next command due at or before t.
func (q *commandQueue) popDue(t int32) (*queuedCommand, bool) {
	if len(q.items) == 0 || q.items[0].due > t {
		return nil, false
	}
	return heap.Pop(&q.items).(*queuedCommand), true
}

func (q *commandQueue) Len() int { return len(q.items) }
