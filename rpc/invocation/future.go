package invocation

import (
	"context"
	"errors"

	"github.com/dgrid/dgrid/lib/errs"
	"github.com/dgrid/dgrid/rpc/common"
)

// Future is the result of an asynchronous invocation. It is resolved exactly
// once, with a response or with an error.
type Future struct {
	done chan struct{}
	resp *common.Message
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Done is closed once the future is resolved
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Get waits for the result. If ctx ends first, Get stops waiting without
// cancelling the invocation: a passed deadline yields a Timeout error, a
// cancellation yields ctx.Err().
func (f *Future) Get(ctx context.Context) (*common.Message, error) {
	select {
	case <-f.done:
		return f.resp, f.err
	default:
	}

	select {
	case <-f.done:
		return f.resp, f.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errs.Wrap(errs.CodeTimeout, ctx.Err(), "invocation")
		}
		return nil, ctx.Err()
	}
}

// resolve must only be called once
func (f *Future) resolve(resp *common.Message, err error) {
	f.resp = resp
	f.err = err
	close(f.done)
}
