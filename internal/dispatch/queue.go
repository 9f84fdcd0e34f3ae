package dispatch

import (
	"context"
	"sync"

	"github.com/shiwa/timecard-mini/dgtclock/internal/command"
)

// Queue — неограниченная FIFO-очередь команд: много писателей, один читатель.
// Push никогда не блокируется.
type Queue struct {
	mu     sync.Mutex
	items  []*command.Command
	notify chan struct{}
}

// NewQueue создаёт пустую очередь.
func NewQueue() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// Push добавляет команду в конец.
func (q *Queue) Push(c *command.Command) {
	q.mu.Lock()
	q.items = append(q.items, c)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// TryPop забирает первую команду, если она есть.
func (q *Queue) TryPop() (*command.Command, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	c := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return c, true
}

// Pop ждёт команду или отмену ctx.
func (q *Queue) Pop(ctx context.Context) (*command.Command, error) {
	for {
		if c, ok := q.TryPop(); ok {
			return c, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.notify:
		}
	}
}

// Len — число команд в очереди.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
