package looper

import (
	"sync"

	"go.uber.org/zap"
)

// Looper runs posted functions one at a time, in order, on a single goroutine.
// It stands in for the host's UI-affine thread.
type Looper struct {
	log *zap.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func()
	quit    bool
	running bool

	done chan struct{}
}

func New(log *zap.Logger) *Looper {
	l := &Looper{
		log:  log,
		done: make(chan struct{}),
	}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Start launches the loop goroutine and returns the looper.
func (l *Looper) Start() *Looper {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running || l.quit {
		return l
	}
	l.running = true
	go l.loop()
	return l
}

// Post queues f. It never blocks. Functions posted after Quit are dropped.
func (l *Looper) Post(f func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.quit {
		l.log.Debug("Dropping task posted after quit")
		return
	}
	l.queue = append(l.queue, f)
	l.cond.Signal()
}

// Quit stops the loop once everything already queued has run.
func (l *Looper) Quit() {
	l.mu.Lock()
	if l.quit {
		l.mu.Unlock()
		return
	}
	l.quit = true
	running := l.running
	l.cond.Broadcast()
	l.mu.Unlock()

	if !running {
		close(l.done)
	}
}

// Done is closed when the loop has exited.
func (l *Looper) Done() <-chan struct{} {
	return l.done
}

func (l *Looper) loop() {
	defer close(l.done)

	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.quit {
			l.cond.Wait()
		}
		if len(l.queue) == 0 && l.quit {
			l.mu.Unlock()
			return
		}
		f := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		l.run(f)
	}
}

func (l *Looper) run(f func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("Posted task panicked", zap.Any("panic", r))
		}
	}()
	f()
}
