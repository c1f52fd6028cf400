package filter

import (
	"sync"
	"time"
)

// DefaultDebounce is the delay used for search boxes
const DefaultDebounce = 300 * time.Millisecond

// Debouncer calls fn with the last value set once no new value has arrived
// for the delay
type Debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	fn      func(string)
	timer   *time.Timer
	pending string
	gen     uint64
	armed   bool
	stopped bool
}

func NewDebouncer(delay time.Duration, fn func(string)) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Debouncer{delay: delay, fn: fn}
}

// Set records value and restarts the delay
func (d *Debouncer) Set(value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.pending = value
	d.armed = true
	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
}

// Flush delivers a pending value right away
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
	}
	gen := d.gen
	d.mu.Unlock()
	d.fire(gen)
}

// Stop drops any pending value. Later Sets are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.armed = false
	if d.timer != nil {
		d.timer.Stop()
	}
}

// fire delivers the pending value if no Set came after generation gen
func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if !d.armed || d.stopped || gen != d.gen {
		d.mu.Unlock()
		return
	}
	value := d.pending
	d.armed = false
	d.mu.Unlock()

	d.fn(value)
}
