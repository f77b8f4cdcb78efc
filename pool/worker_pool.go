package pool

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

const (
	minConcurrency = 1
)

// Config controls a worker pool's parallelism and task buffering.
type Config struct {
	Concurrency int
	Capacity    int
}

// WorkerPool fans tasks out across a fixed set of workers. The first executor
// error cancels the remaining workers and is returned from Close.
type WorkerPool[T any] struct {
	tasks       chan *T
	executor    func(v *T) error
	g           *errgroup.Group
	ctxCancel   func(error)
	concurrency int
	capacity    int
}

func NewWorkerPool[T any](executor func(v *T) error, config *Config) (*WorkerPool[T], error) {
	if config.Concurrency < minConcurrency {
		return nil, errors.New("number of workers must be greater than 0")
	}

	return &WorkerPool[T]{
		tasks:       make(chan *T, config.Capacity),
		executor:    executor,
		g:           new(errgroup.Group),
		concurrency: config.Concurrency,
		capacity:    config.Capacity,
	}, nil
}

func (w *WorkerPool[T]) Start() {
	w.reset()

	ctx, cancel := context.WithCancelCause(context.Background())
	w.ctxCancel = cancel

	for i := 0; i < w.concurrency; i++ {
		w.g.Go(func() error {
			if err := w.listen(ctx); err != nil {
				w.ctxCancel(err)
				return err
			}

			return nil
		})
	}
}

func (w *WorkerPool[T]) Enqueue(v *T) {
	w.tasks <- v
}

func (w *WorkerPool[T]) PendingTasks() int {
	return len(w.tasks)
}

func (w *WorkerPool[T]) Close() error {
	close(w.tasks)
	err := w.g.Wait()
	w.ctxCancel(err)
	return err
}

func (w *WorkerPool[T]) listen(ctx context.Context) error {
	for task := range w.tasks {
		if err := w.executor(task); err != nil {
			return errors.Wrap(err, "ERROR: could not process task")
		} else if err := ctx.Err(); err != nil {
			return err
		}
	}

	return nil
}

func (w *WorkerPool[T]) reset() {
	w.tasks = make(chan *T, w.capacity)
}
