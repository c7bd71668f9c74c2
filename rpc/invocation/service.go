package invocation

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"net"
	"sync/atomic"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/dgrid/dgrid/lib/cluster"
	"github.com/dgrid/dgrid/lib/errs"
	"github.com/dgrid/dgrid/rpc/common"
	"github.com/dgrid/dgrid/rpc/transport"
)

var Logger = logger.GetLogger("invocation")

// Service sends requests to members and resolves their responses. Failed
// attempts with a retryable error are repeated with exponential backoff
// until the retry budget or the deadline is exhausted.
type Service struct {
	manager    transport.IConnectionManager
	partitions *cluster.PartitionTable
	members    *cluster.MemberList
	config     common.ClientConfig
	refresh    func()

	active      atomic.Bool
	nextID      atomic.Int64
	outstanding *xsync.MapOf[int64, *invocation]

	// metrics
	invocations *metrics.Counter
	retries     *metrics.Counter
	timeouts    *metrics.Counter
	failures    *metrics.Counter
	latency     *metrics.Histogram
}

// NewService creates an invocation service. refresh is called asynchronously
// when a member reports a stale partition table and may be nil. set collects
// the invocation metrics and may be nil.
func NewService(
	manager transport.IConnectionManager,
	partitions *cluster.PartitionTable,
	members *cluster.MemberList,
	config common.ClientConfig,
	refresh func(),
	set *metrics.Set,
) *Service {
	if set == nil {
		set = metrics.NewSet()
	}
	s := &Service{
		manager:     manager,
		partitions:  partitions,
		members:     members,
		config:      config,
		refresh:     refresh,
		outstanding: xsync.NewMapOf[int64, *invocation](),
		invocations: set.GetOrCreateCounter("dgrid_client_invocations_total"),
		retries:     set.GetOrCreateCounter("dgrid_client_invocation_retries_total"),
		timeouts:    set.GetOrCreateCounter("dgrid_client_invocation_timeouts_total"),
		failures:    set.GetOrCreateCounter("dgrid_client_invocation_failures_total"),
		latency:     set.GetOrCreateHistogram("dgrid_client_invocation_duration_seconds"),
	}
	s.active.Store(true)
	return s
}

// Invoke sends req to target and waits for the response. Error responses of
// members are returned as errors.
func (s *Service) Invoke(ctx context.Context, req *common.Message, target Target) (*common.Message, error) {
	return s.InvokeAsync(ctx, req, target).Get(ctx)
}

// InvokeAsync sends req to target and returns immediately. The invocation
// deadline is the configured invocation timeout, or the deadline of ctx if
// that is earlier. Cancelling ctx does not stop the invocation.
func (s *Service) InvokeAsync(ctx context.Context, req *common.Message, target Target) *Future {
	now := time.Now()
	deadline := now.Add(s.config.InvocationTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	inv := &invocation{
		service:  s,
		id:       s.nextID.Add(1),
		request:  req,
		target:   target,
		start:    now,
		deadline: deadline,
		future:   newFuture(),
	}
	s.invocations.Inc()

	if !s.active.Load() {
		inv.complete(nil, errs.New(errs.CodeClientNotActive, "client is shut down"))
		return inv.future
	}
	s.outstanding.Store(inv.id, inv)

	inv.mu.Lock()
	inv.timer = time.AfterFunc(time.Until(deadline), inv.expire)
	inv.mu.Unlock()
	go inv.run()
	return inv.future
}

// Shutdown fails every outstanding invocation with ClientNotActive. Later
// invocations fail immediately.
func (s *Service) Shutdown() {
	if !s.active.CompareAndSwap(true, false) {
		return
	}
	cause := errs.New(errs.CodeClientNotActive, "client is shutting down")
	s.outstanding.Range(func(_ int64, inv *invocation) bool {
		inv.complete(nil, cause)
		return true
	})
}

// Outstanding returns the number of unresolved invocations
func (s *Service) Outstanding() int {
	return s.outstanding.Size()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// connectionFor resolves the target to a connection
func (s *Service) connectionFor(ctx context.Context, t Target) (transport.IConnection, error) {
	switch t.kind {
	case targetConnection:
		if !t.conn.IsAlive() {
			return nil, errs.Newf(errs.CodeTargetDisconnected, "connection to %s is closed", t.conn.Address())
		}
		return t.conn, nil

	case targetMember:
		m, ok := s.members.Get(t.member)
		if !ok {
			return nil, errs.Newf(errs.CodeTargetNotMember, "%s is not in the member list", t.member)
		}
		return s.manager.ConnectionFor(ctx, m)

	case targetPartition:
		if s.config.SmartRouting {
			if owner, ok := s.partitions.OwnerOf(t.partitionID); ok {
				if m, ok := s.members.Get(owner); ok {
					return s.manager.ConnectionFor(ctx, m)
				}
			}
		}
		return s.manager.AnyConnection(ctx)

	default:
		return s.manager.AnyConnection(ctx)
	}
}

// backoff returns the delay before retry number n (starting at 0) with up to
// 20% jitter
func (s *Service) backoff(n int) time.Duration {
	d := float64(s.config.InitialBackoff)
	for i := 0; i < n && d < float64(s.config.MaxBackoff); i++ {
		d *= s.config.BackoffMultiplier
	}
	d = min(d, float64(s.config.MaxBackoff))
	jitter := d * 0.2 * (rand.Float64()*2 - 1)
	return time.Duration(max(d+jitter, 0))
}

// isRetryable reports whether a failed attempt may be repeated
func isRetryable(err error) bool {
	if errs.IsRetryable(err) {
		return true
	}
	if errs.CodeOf(err) != errs.CodeUnknown {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
