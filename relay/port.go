package relay

import (
	"context"
	"sync"
)

// Port carries whole messages in one direction each way. Implementations
// must allow Send and Recv from different goroutines.
type Port interface {
	Send(ctx context.Context, msg []byte) error
	Recv(ctx context.Context) ([]byte, error)
	Close() error
}

// Pipe returns two connected in-process ports. Closing either end closes both.
func Pipe() (Port, Port) {
	ab := make(chan []byte, 64)
	ba := make(chan []byte, 64)
	done := make(chan struct{})
	once := new(sync.Once)
	a := &pipePort{in: ba, out: ab, done: done, once: once}
	b := &pipePort{in: ab, out: ba, done: done, once: once}
	return a, b
}

type pipePort struct {
	in   <-chan []byte
	out  chan<- []byte
	done chan struct{}
	once *sync.Once
}

func (p *pipePort) Send(ctx context.Context, msg []byte) error {
	select {
	case <-p.done:
		return ErrClosed
	default:
	}
	select {
	case p.out <- msg:
		return nil
	case <-p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipePort) Recv(ctx context.Context) ([]byte, error) {
	select {
	case msg := <-p.in:
		return msg, nil
	case <-p.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *pipePort) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}
