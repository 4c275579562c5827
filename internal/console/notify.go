package console

import (
	"log"
	"sync"
	"time"
)

type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelError:
		return "error"
	}
	return "info"
}

// Notification is a transient message for the operator.
type Notification struct {
	Level Level
	Text  string
	At    time.Time
}

// Notifier receives notifications. It is never called with the console
// state locked, but may be called from the poll goroutine.
type Notifier interface {
	Notify(Notification)
}

type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// LogNotifier writes notifications to the standard logger.
var LogNotifier = NotifierFunc(func(n Notification) {
	log.Printf("[CONSOLE] %s: %s", n.Level, n.Text)
})

// Queue buffers notifications until they are drained.
type Queue struct {
	mu    sync.Mutex
	items []Notification
	limit int
}

// NewQueue keeps at most limit notifications, dropping the oldest. A limit
// of zero keeps everything.
func NewQueue(limit int) *Queue {
	return &Queue{limit: limit}
}

func (q *Queue) Notify(n Notification) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, n)
	if q.limit > 0 && len(q.items) > q.limit {
		q.items = append(q.items[:0], q.items[len(q.items)-q.limit:]...)
	}
}

// Drain returns the buffered notifications in arrival order and empties the queue.
func (q *Queue) Drain() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}

func (c *Console) notify(level Level, text string) {
	if c.notifier == nil {
		return
	}
	c.notifier.Notify(Notification{Level: level, Text: text, At: c.now()})
}
