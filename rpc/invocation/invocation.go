package invocation

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgrid/dgrid/lib/errs"
	"github.com/dgrid/dgrid/rpc/common"
	"github.com/dgrid/dgrid/rpc/transport"
)

// invocation is one request with its retry state. Attempts run one after the
// other; a response or failure of an older attempt is ignored.
type invocation struct {
	service  *Service
	id       int64
	request  *common.Message
	target   Target
	start    time.Time
	deadline time.Time
	future   *Future

	resolved atomic.Bool
	attempt  atomic.Int32
	retries  atomic.Int32

	mu            sync.Mutex // protects timer, conn and correlationID
	conn          transport.IConnection
	correlationID int64
	timer         *time.Timer
}

// run starts the next attempt
func (inv *invocation) run() {
	if inv.resolved.Load() {
		return
	}
	s := inv.service
	if !s.active.Load() {
		inv.complete(nil, errs.New(errs.CodeClientNotActive, "client is shut down"))
		return
	}
	n := inv.attempt.Add(1)

	ctx, cancel := context.WithDeadline(context.Background(), inv.deadline)
	conn, err := s.connectionFor(ctx, inv.target)
	cancel()
	if err != nil {
		inv.failed(n, err)
		return
	}

	id := s.manager.NextCorrelationID()
	inv.mu.Lock()
	if inv.resolved.Load() {
		// resolved while the connection was being set up
		inv.mu.Unlock()
		return
	}
	inv.conn, inv.correlationID = conn, id
	inv.mu.Unlock()

	if err := conn.Send(id, inv.request, &attempt{inv: inv, n: n}); err != nil {
		inv.failed(n, err)
		return
	}
	// complete may have deregistered id before Send registered it
	if inv.resolved.Load() {
		conn.Deregister(id)
	}
}

// failed handles the failure of attempt n
func (inv *invocation) failed(n int32, err error) {
	if inv.attempt.Load() != n || inv.resolved.Load() {
		return
	}
	s := inv.service
	if !s.active.Load() {
		inv.complete(nil, errs.New(errs.CodeClientNotActive, "client is shut down"))
		return
	}

	retries := int(inv.retries.Load())
	if !isRetryable(err) || inv.target.kind == targetConnection || retries >= s.config.RetryCount {
		inv.complete(nil, err)
		return
	}

	remaining := time.Until(inv.deadline)
	if remaining <= 0 {
		inv.complete(nil, errs.Wrap(errs.CodeTimeout, err, "invocation deadline passed while retrying"))
		return
	}

	switch errs.CodeOf(err) {
	case errs.CodePartitionMigrating, errs.CodeWrongTarget:
		if s.refresh != nil {
			go s.refresh()
		}
	}

	inv.retries.Add(1)
	s.retries.Inc()
	delay := min(s.backoff(retries), remaining)
	Logger.Debugf("Retrying %s to %s in %s (retry %d): %v", inv.request.MsgType, inv.target, delay, retries+1, err)
	time.AfterFunc(delay, inv.run)
}

// expire resolves the invocation with a timeout error
func (inv *invocation) expire() {
	if inv.complete(nil, errs.Newf(errs.CodeTimeout, "%s to %s timed out after %s", inv.request.MsgType, inv.target, time.Since(inv.start).Round(time.Millisecond))) {
		inv.service.timeouts.Inc()
	}
}

// complete resolves the future. Only the first call has an effect; it
// reports whether it was that call.
func (inv *invocation) complete(resp *common.Message, err error) bool {
	if !inv.resolved.CompareAndSwap(false, true) {
		return false
	}
	s := inv.service

	inv.mu.Lock()
	if inv.timer != nil {
		inv.timer.Stop()
	}
	if inv.conn != nil {
		inv.conn.Deregister(inv.correlationID)
	}
	inv.mu.Unlock()

	s.outstanding.Delete(inv.id)
	s.latency.UpdateDuration(inv.start)
	if err != nil {
		s.failures.Inc()
	}
	inv.future.resolve(resp, err)
	return true
}

// attempt is the handle registered on a connection for one attempt
type attempt struct {
	inv   *invocation
	n     int32
	fired atomic.Bool
}

func (a *attempt) NotifyResponse(resp *common.Message) {
	if !a.fired.CompareAndSwap(false, true) || a.inv.attempt.Load() != a.n {
		return
	}
	if err := resp.Error(); err != nil {
		a.inv.failed(a.n, err)
		return
	}
	a.inv.complete(resp, nil)
}

func (a *attempt) NotifyError(err error) {
	if !a.fired.CompareAndSwap(false, true) {
		return
	}
	a.inv.failed(a.n, err)
}
