package engine

import (
	"context"
	"sync"

	"github.com/jobs/taskengine/internal/biz/task"
)

// Queue 无界FIFO队列，多生产者单消费者
type Queue struct {
	mu     sync.Mutex
	items  []*task.Task
	signal chan struct{}
}

func NewQueue() *Queue {
	return &Queue{signal: make(chan struct{}, 1)}
}

// Add 非阻塞入队
func (q *Queue) Add(t *task.Task) error {
	if t == nil {
		return ErrNilTask
	}
	q.mu.Lock()
	q.items = append(q.items, t)
	q.mu.Unlock()
	q.notify()
	return nil
}

// Take 阻塞直到有任务或ctx结束
func (q *Queue) Take(ctx context.Context) (*task.Task, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			t := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			more := len(q.items) > 0
			q.mu.Unlock()
			if more {
				q.notify()
			}
			return t, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.signal:
		}
	}
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}
