// Package notify is the toast center of the dashboard. Toasts disappear on
// their own after their duration and only the newest few stay on screen.
package notify

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lizet96/frontdesk/client"
	"github.com/pkg/errors"
)

type Kind string

const (
	Success Kind = "success"
	Error   Kind = "error"
	Warning Kind = "warning"
	Info    Kind = "info"
)

const (
	DefaultMaxVisible = 5
	DefaultDuration   = 4 * time.Second
	ErrorDuration     = 6 * time.Second
)

type Toast struct {
	ID        string
	Kind      Kind
	Title     string
	Message   string
	Duration  time.Duration
	CreatedAt time.Time
}

type Center struct {
	mu      sync.Mutex
	toasts  []Toast
	timers  map[string]*time.Timer
	subs    map[int]func([]Toast)
	nextSub int
	closed  bool

	MaxVisible int
	Now        func() time.Time
}

func New() *Center {
	return &Center{
		timers:     map[string]*time.Timer{},
		subs:       map[int]func([]Toast){},
		MaxVisible: DefaultMaxVisible,
		Now:        time.Now,
	}
}

// Notify shows t and returns its id. A zero Duration picks the default for
// the kind; a negative one keeps the toast until it is dismissed.
func (c *Center) Notify(t Toast) string {
	if t.Kind == "" {
		t.Kind = Info
	}
	if t.Duration == 0 {
		t.Duration = DefaultDuration
		if t.Kind == Error {
			t.Duration = ErrorDuration
		}
	}
	t.ID = uuid.NewString()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return t.ID
	}
	t.CreatedAt = c.Now()

	c.toasts = append(c.toasts, t)
	for len(c.toasts) > c.MaxVisible {
		c.drop(c.toasts[0].ID)
	}
	if t.Duration > 0 {
		id := t.ID
		c.timers[id] = time.AfterFunc(t.Duration, func() { c.Dismiss(id) })
	}
	c.publish()
	return t.ID
}

func (c *Center) Success(title, msg string) string {
	return c.Notify(Toast{Kind: Success, Title: title, Message: msg})
}

func (c *Center) Error(title, msg string) string {
	return c.Notify(Toast{Kind: Error, Title: title, Message: msg})
}

func (c *Center) Warning(title, msg string) string {
	return c.Notify(Toast{Kind: Warning, Title: title, Message: msg})
}

func (c *Center) Info(title, msg string) string {
	return c.Notify(Toast{Kind: Info, Title: title, Message: msg})
}

// Dismiss removes the toast with id. Unknown ids are ignored.
func (c *Center) Dismiss(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.drop(id) {
		c.publish()
	}
}

// Toasts returns the visible toasts, oldest first
func (c *Center) Toasts() []Toast {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Toast(nil), c.toasts...)
}

// Subscribe calls fn with the visible toasts after every change
func (c *Center) Subscribe(fn func([]Toast)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

// Close stops every pending timer. Later toasts are dropped.
func (c *Center) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
	c.toasts = nil
	c.closed = true
}

// drop removes id and its timer. Callers hold mu.
func (c *Center) drop(id string) bool {
	if t, ok := c.timers[id]; ok {
		t.Stop()
		delete(c.timers, id)
	}
	for i, t := range c.toasts {
		if t.ID == id {
			c.toasts = append(c.toasts[:i:i], c.toasts[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Center) publish() {
	snapshot := append([]Toast(nil), c.toasts...)
	for id := 0; id < c.nextSub; id++ {
		if fn, ok := c.subs[id]; ok {
			fn(snapshot)
		}
	}
}

// FromError builds the error toast shown for a failed call
func FromError(err error) Toast {
	t := Toast{Kind: Error, Title: "Something went wrong", Message: err.Error()}

	var msg string
	var fields []string
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		msg = apiErr.Message
		for name, problem := range apiErr.Fields {
			fields = append(fields, name+" "+problem)
		}
		sort.Strings(fields)
	}

	switch client.KindOf(err) {
	case client.KindNetwork:
		t.Title, t.Message = "Connection problem", "Could not reach the server. Check your connection."
	case client.KindUnauthorized:
		t.Title, t.Message = "Session expired", "Please log in again."
	case client.KindForbidden:
		t.Title, t.Message = "Not allowed", "You do not have permission to do that."
	case client.KindNotFound:
		t.Title, t.Message = "Not found", orDefault(msg, "The record no longer exists.")
	case client.KindConflict:
		t.Title, t.Message = "Conflict", orDefault(msg, "The record was changed by someone else.")
	case client.KindValidation:
		t.Title = "Check the form"
		t.Message = orDefault(msg, "Some fields are invalid.")
		if len(fields) > 0 {
			t.Message += ": " + strings.Join(fields, "; ")
		}
	case client.KindRateLimited:
		t.Kind = Warning
		t.Title, t.Message = "Slow down", "Too many requests. Try again in a moment."
	case client.KindServer:
		t.Title, t.Message = "Server error", "The server could not complete the request."
	}
	return t
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
