package feed

import (
	"log/slog"
	"runtime/debug"
	"sync"
)

const mailboxSize = 64

// actor runs tasks one at a time on its own goroutine.
type actor struct {
	mailbox chan func()
	done    chan struct{}
	once    sync.Once
	logger  *slog.Logger
}

func newActor(logger *slog.Logger) *actor {
	a := &actor{
		mailbox: make(chan func(), mailboxSize),
		done:    make(chan struct{}),
		logger:  logger,
	}
	go a.loop()
	return a
}

func (a *actor) loop() {
	for {
		select {
		case <-a.done:
			return
		case task := <-a.mailbox:
			a.run(task)
		}
	}
}

func (a *actor) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("PANIC in feed actor task",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	task()
}

// post queues task. It reports false once the actor has stopped.
func (a *actor) post(task func()) bool {
	select {
	case <-a.done:
		return false
	default:
	}
	select {
	case a.mailbox <- task:
		return true
	case <-a.done:
		return false
	}
}

// call queues task and waits for it to finish. It reports false if the actor
// stopped before the task ran.
func (a *actor) call(task func()) bool {
	finished := make(chan struct{})
	if !a.post(func() {
		defer close(finished)
		task()
	}) {
		return false
	}
	select {
	case <-finished:
		return true
	case <-a.done:
		select {
		case <-finished:
			return true
		default:
			return false
		}
	}
}

func (a *actor) stop() {
	a.once.Do(func() { close(a.done) })
}
