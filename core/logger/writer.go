package logger

import (
	"errors"
	"io"
	"sync"
)

// asyncWriter fans log lines out to multiple writers from a single background
// goroutine so that handler calls never block on slow sinks.
type asyncWriter struct {
	writers []io.Writer

	mu     sync.Mutex
	lines  chan []byte
	flush  chan chan struct{}
	done   chan struct{}
	closed bool
	err    error
}

func newAsyncWriter(writers []io.Writer, queue int) *asyncWriter {
	if queue <= 0 {
		queue = 1024
	}
	w := &asyncWriter{
		writers: writers,
		lines:   make(chan []byte, queue),
		flush:   make(chan chan struct{}),
		done:    make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *asyncWriter) loop() {
	defer close(w.done)
	for {
		select {
		case line, ok := <-w.lines:
			if !ok {
				return
			}
			w.writeAll(line)
		case ack := <-w.flush:
			w.drain()
			close(ack)
		}
	}
}

func (w *asyncWriter) drain() {
	for {
		select {
		case line, ok := <-w.lines:
			if !ok {
				return
			}
			w.writeAll(line)
		default:
			return
		}
	}
}

// Write enqueues a line; when the queue is full the line is written synchronously
// so nothing is ever dropped.
func (w *asyncWriter) Write(p []byte) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return errors.New("logger: writer closed")
	}
	w.mu.Unlock()

	buf := make([]byte, len(p))
	copy(buf, p)
	select {
	case w.lines <- buf:
		return nil
	default:
		w.writeAll(buf)
		return w.getErr()
	}
}

// Flush blocks until every queued line has been written.
func (w *asyncWriter) Flush() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return w.getErr()
	}
	w.mu.Unlock()

	ack := make(chan struct{})
	select {
	case w.flush <- ack:
		<-ack
	case <-w.done:
	}
	return w.getErr()
}

// Close stops the background goroutine after draining the queue.
func (w *asyncWriter) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.lines)
	w.mu.Unlock()
	<-w.done
	return w.getErr()
}

func (w *asyncWriter) writeAll(p []byte) {
	for _, out := range w.writers {
		if _, err := out.Write(p); err != nil {
			w.setErr(err)
		}
	}
}

func (w *asyncWriter) getErr() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *asyncWriter) setErr(err error) {
	if err == nil {
		return
	}
	w.mu.Lock()
	if w.err == nil {
		w.err = err
	}
	w.mu.Unlock()
}
