// Package realtime keeps cached lists fresh by polling the API. A poller
// fetches once on Start, then on every tick, retrying failed fetches with
// exponential backoff before it reports the view offline.
package realtime

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lizet96/frontdesk/client"
	"github.com/lizet96/frontdesk/logger"
	"github.com/lizet96/frontdesk/querycache"
	"github.com/lizet96/frontdesk/uistate"
	"github.com/sirupsen/logrus"
)

type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusLive         Status = "live"
	StatusReconnecting Status = "reconnecting"
	StatusOffline      Status = "offline"
)

const (
	QueueInterval        = 3 * time.Second
	DashboardInterval    = 5 * time.Second
	AppointmentsInterval = 5 * time.Second
	DoctorsInterval      = 10 * time.Second
	PatientsInterval     = 10 * time.Second

	DefaultMaxRetries     = 3
	DefaultInitialBackoff = time.Second
	DefaultMaxBackoff     = 30 * time.Second
)

// DefaultInterval returns the poll interval for a cache key such as
// "queue?date=2026-10-19"
func DefaultInterval(key string) time.Duration {
	resource, _, _ := strings.Cut(key, "?")
	switch resource {
	case "queue":
		return QueueInterval
	case "dashboard", "dashboard/stats":
		return DashboardInterval
	case "appointments":
		return AppointmentsInterval
	case "doctors":
		return DoctorsInterval
	case "patients":
		return PatientsInterval
	}
	return DashboardInterval
}

// FetchFunc loads the current value of a key
type FetchFunc func(ctx context.Context) (interface{}, error)

type Poller struct {
	Key      string
	Interval time.Duration
	Fetch    FetchFunc
	Cache    *querycache.Cache
	UI       *uistate.Store

	// OnStatus is called after every status change, outside the poller lock
	OnStatus func(Status)

	MaxRetries     uint64
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	Now func() time.Time

	mu          sync.Mutex
	status      Status
	lastUpdated time.Time
	cancel      context.CancelFunc
	done        chan struct{}
	refetch     chan struct{}
	log         logrus.FieldLogger
}

// NewPoller returns a poller for key with the default interval and retry
// policy. UI may be nil.
func NewPoller(key string, fetch FetchFunc, cache *querycache.Cache, ui *uistate.Store) *Poller {
	return &Poller{
		Key:            key,
		Interval:       DefaultInterval(key),
		Fetch:          fetch,
		Cache:          cache,
		UI:             ui,
		MaxRetries:     DefaultMaxRetries,
		InitialBackoff: DefaultInitialBackoff,
		MaxBackoff:     DefaultMaxBackoff,
	}
}

// Start begins polling until ctx is cancelled or Stop is called. Calling
// Start on a running poller does nothing.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		return
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	if p.Interval <= 0 {
		p.Interval = DefaultInterval(p.Key)
	}
	p.log = logger.Client.WithField("key", p.Key)
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	p.refetch = make(chan struct{}, 1)
	done, refetch := p.done, p.refetch
	p.mu.Unlock()

	p.setStatus(StatusConnecting)
	go p.run(ctx, done, refetch)
}

// Stop ends polling and waits for an in-flight fetch to return
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Refetch asks for a fetch now instead of waiting for the next tick
func (p *Poller) Refetch() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.refetch == nil {
		return
	}
	select {
	case p.refetch <- struct{}{}:
	default:
	}
}

func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// LastUpdated is when the last successful fetch landed
func (p *Poller) LastUpdated() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastUpdated
}

func (p *Poller) run(ctx context.Context, done chan struct{}, refetch chan struct{}) {
	defer close(done)

	events, unsubscribe := p.Cache.Subscribe(p.Key)
	defer unsubscribe()

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-refetch:
			ticker.Reset(p.Interval)
		case ev := <-events:
			if ev.Type != querycache.EventInvalidated {
				continue
			}
			ticker.Reset(p.Interval)
		}
		p.poll(ctx)
	}
}

func (p *Poller) poll(ctx context.Context) {
	p.dispatch(uistate.StartLoading(p.Key))
	p.dispatch(uistate.SyncStarted())
	p.Cache.SetLoading(p.Key)

	var data interface{}
	op := func() error {
		result, err := p.Fetch(ctx)
		if err != nil {
			if !client.Retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		data = result
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialBackoff
	b.MaxInterval = p.MaxBackoff
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, p.MaxRetries), ctx)

	err := backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		p.log.WithError(err).WithField("retry_in", wait.String()).Debug("poll failed, retrying")
		p.setStatus(StatusReconnecting)
	})
	if ctx.Err() != nil {
		p.dispatch(uistate.FinishLoading(p.Key))
		return
	}

	if err != nil {
		p.log.WithError(err).Warn("poll failed")
		p.Cache.SetError(p.Key, err)
		p.dispatch(uistate.SetError(p.Key, err.Error()))
		p.dispatch(uistate.SyncFailed(err.Error()))
		if client.KindOf(err) == client.KindNetwork {
			p.dispatch(uistate.SetOnline(false))
		}
		p.setStatus(StatusOffline)
		return
	}

	now := p.Now()
	p.Cache.Set(p.Key, data)
	p.mu.Lock()
	p.lastUpdated = now
	p.mu.Unlock()

	p.dispatch(uistate.FinishLoading(p.Key))
	p.dispatch(uistate.ClearError(p.Key))
	p.dispatch(uistate.SyncSucceeded(now))
	p.setStatus(StatusLive)
}

func (p *Poller) dispatch(a uistate.Action) {
	if p.UI != nil {
		p.UI.Dispatch(a)
	}
}

func (p *Poller) setStatus(s Status) {
	p.mu.Lock()
	if p.status == s {
		p.mu.Unlock()
		return
	}
	p.status = s
	fn := p.OnStatus
	p.mu.Unlock()

	if fn != nil {
		fn(s)
	}
}
