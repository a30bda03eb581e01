package utils

import (
	"errors"
	"sync"

	"github.com/eapache/queue"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

var ErrLoopStopped = errors.New("run loop stopped")

type Task = func()

// RunLoop runs posted tasks one at a time, in posting order, on a single
// goroutine supervised by a tomb. Whatever a RunLoop owns is only ever touched
// from that goroutine.
//
// The task queue is unbounded so that two loops posting to each other can
// never block on a full queue.
type RunLoop struct {
	name string
	t    *tomb.Tomb

	mu    sync.Mutex
	tasks *queue.Queue
	wake  chan struct{}
}

func NewRunLoop(t *tomb.Tomb, name string) *RunLoop {
	loop := &RunLoop{
		name:  name,
		t:     t,
		tasks: queue.New(),
		wake:  make(chan struct{}, 1),
	}
	t.Go(loop.run)
	return loop
}

func (loop *RunLoop) Name() string {
	return loop.name
}

// Post queues a task without waiting for it to run.
func (loop *RunLoop) Post(task Task) error {
	select {
	case <-loop.t.Dying():
		return ErrLoopStopped
	default:
	}

	loop.mu.Lock()
	loop.tasks.Add(task)
	loop.mu.Unlock()

	select {
	case loop.wake <- struct{}{}:
	default:
	}
	return nil
}

func (loop *RunLoop) run() error {
	log.Debug().Str("loop", loop.name).Msg("run loop started")
	for {
		select {
		case <-loop.t.Dying():
			log.Debug().Str("loop", loop.name).Msg("run loop exiting")
			return nil
		case <-loop.wake:
			for task := loop.next(); task != nil; task = loop.next() {
				task()
				select {
				case <-loop.t.Dying():
					return nil
				default:
				}
			}
		}
	}
}

func (loop *RunLoop) next() Task {
	loop.mu.Lock()
	defer loop.mu.Unlock()

	if loop.tasks.Length() == 0 {
		return nil
	}
	return loop.tasks.Remove().(Task)
}

// Submit runs fn on the loop and blocks until its result is back.
func Submit[T any](loop *RunLoop, fn func() T) (T, error) {
	var zero T
	reply := make(chan T, 1)
	if err := loop.Post(func() { reply <- fn() }); err != nil {
		return zero, err
	}

	select {
	case v := <-reply:
		return v, nil
	case <-loop.t.Dying():
		// The task may still have completed before the loop noticed.
		select {
		case v := <-reply:
			return v, nil
		default:
			return zero, ErrLoopStopped
		}
	}
}

// Call runs fn on the loop and waits for it to finish.
func Call(loop *RunLoop, fn func()) error {
	_, err := Submit(loop, func() struct{} {
		fn()
		return struct{}{}
	})
	return err
}
