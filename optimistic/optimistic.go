// Package optimistic applies a change to the cache before the server confirms
// it and puts the old value back when the server says no.
package optimistic

import (
	"context"

	"github.com/lizet96/frontdesk/logger"
	"github.com/lizet96/frontdesk/notify"
	"github.com/lizet96/frontdesk/querycache"
	"github.com/sirupsen/logrus"
)

// Mutation describes one optimistic change of the entry at Key
type Mutation struct {
	Key string

	// Apply returns the expected data after the change. It must not modify
	// its argument.
	Apply func(data interface{}) interface{}

	// Revert undoes Apply on failure, given the data from before Apply and
	// the current data. When nil the whole entry goes back to its old data,
	// which also drops other local changes made in the meantime.
	Revert func(before, current interface{}) interface{}

	// Call performs the change on the server
	Call func(ctx context.Context) (interface{}, error)

	// Reconcile merges the server result into the cached data. When nil the
	// optimistic data stays until the next fetch.
	Reconcile func(data interface{}, result interface{}) interface{}

	OnError   func(err error)
	OnSuccess func(result interface{})

	// Invalidate lists key prefixes to mark stale on success, besides Key
	Invalidate []string

	// SuccessMessage, when set, is shown as a success toast
	SuccessMessage string
}

type Mutator struct {
	Cache  *querycache.Cache
	Toasts *notify.Center
	log    logrus.FieldLogger
}

func New(cache *querycache.Cache, toasts *notify.Center) *Mutator {
	return &Mutator{Cache: cache, Toasts: toasts, log: logger.Client}
}

// Mutate runs m and returns the server result. On failure Apply is undone,
// unless server data (a poll) replaced the entry in the meantime; then the
// newer data is kept and the key is invalidated.
func (mt *Mutator) Mutate(ctx context.Context, m Mutation) (interface{}, error) {
	snapshot := mt.Cache.Snapshot(m.Key)
	if m.Apply != nil {
		mt.Cache.Update(m.Key, m.Apply)
	}

	result, err := m.Call(ctx)
	if err != nil {
		if m.Apply != nil {
			mt.rollback(snapshot, m.Revert)
		}
		mt.logger().WithError(err).WithField("key", m.Key).Info("optimistic update rolled back")
		if mt.Toasts != nil {
			mt.Toasts.Notify(notify.FromError(err))
		}
		if m.OnError != nil {
			m.OnError(err)
		}
		return nil, err
	}

	if m.Reconcile != nil {
		mt.Cache.Update(m.Key, func(data interface{}) interface{} {
			return m.Reconcile(data, result)
		})
	}
	mt.Cache.Invalidate(m.Key)
	for _, prefix := range m.Invalidate {
		mt.Cache.Invalidate(prefix)
	}
	if mt.Toasts != nil && m.SuccessMessage != "" {
		mt.Toasts.Success(m.SuccessMessage, "")
	}
	if m.OnSuccess != nil {
		m.OnSuccess(result)
	}
	return result, nil
}

func (mt *Mutator) rollback(snapshot querycache.Snapshot, revert func(before, current interface{}) interface{}) {
	if !mt.Cache.Rollback(snapshot, revert) {
		mt.Cache.Invalidate(snapshot.Key)
	}
}

func (mt *Mutator) logger() logrus.FieldLogger {
	if mt.log == nil {
		return logger.Client
	}
	return mt.log
}
