package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/lizet96/frontdesk/notify"
	"github.com/lizet96/frontdesk/optimistic"
	"github.com/lizet96/frontdesk/querycache"
	"github.com/lizet96/frontdesk/realtime"
	"github.com/lizet96/frontdesk/uistate"
	"github.com/pkg/errors"
)

// watchView is one live screen: what to poll, how to draw it and the
// commands it accepts on stdin
type watchView struct {
	key      string
	interval time.Duration
	fetch    realtime.FetchFunc
	draw     func(w io.Writer, data interface{}, state uistate.State)
	help     string

	// command runs one typed line. It is called on its own goroutine, so
	// the view keeps redrawing while the server call is in flight.
	command func(ctx context.Context, ws *watchSession, fields []string) error
}

// watchSession is what a running view shares with its commands
type watchSession struct {
	fd      *frontdesk
	key     string
	cache   *querycache.Cache
	ui      *uistate.Store
	toasts  *notify.Center
	mutator *optimistic.Mutator
	poller  *realtime.Poller
}

func (ws *watchSession) data() interface{} {
	e, _ := ws.cache.Get(ws.key)
	return e.Data
}

// usageError is a command the view could not understand. Server failures
// are reported by toasts instead.
type usageError struct{ error }

func badUsage(format string, args ...interface{}) error {
	return usageError{errors.Errorf(format, args...)}
}

// toastPrinter prints each toast once. It only remembers the toasts still
// on screen.
type toastPrinter struct {
	fd   *frontdesk
	seen map[string]bool
}

func (p *toastPrinter) print(toasts []notify.Toast) {
	visible := make(map[string]bool, len(toasts))
	for _, t := range toasts {
		visible[t.ID] = true
		if !p.seen[t.ID] {
			p.fd.printf("[%s] %s %s\n", t.Kind, t.Title, t.Message)
		}
	}
	p.seen = visible
}

// watch polls v.key, redraws on every change and runs the commands typed on
// stdin until quit, end of input or ctx is done. At end of input it waits for
// commands still in flight.
func (fd *frontdesk) watch(ctx context.Context, v watchView) error {
	cache := querycache.New(querycache.DefaultGCTime)
	ui := uistate.NewStore()
	toasts := notify.New()
	defer toasts.Close()
	printer := &toastPrinter{fd: fd}
	toasts.Subscribe(printer.print)

	ws := &watchSession{
		fd:      fd,
		key:     v.key,
		cache:   cache,
		ui:      ui,
		toasts:  toasts,
		mutator: optimistic.New(cache, toasts),
	}
	ws.poller = realtime.NewPoller(v.key, v.fetch, cache, ui)
	if v.interval > 0 {
		ws.poller.Interval = v.interval
	}
	ws.poller.OnStatus = func(s realtime.Status) { fd.printf("-- %s --\n", s) }

	events, unsubscribe := cache.Subscribe(v.key)
	defer unsubscribe()

	ws.poller.Start(ctx)
	defer ws.poller.Stop()

	cmdCtx, cancelCmds := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancelCmds()
		wg.Wait()
	}()

	var drawn uint64
	draw := func(ev querycache.Event) {
		if ev.Entry.Status != querycache.StatusSuccess || ev.Entry.Version == drawn {
			return
		}
		drawn = ev.Entry.Version
		state := ui.State()
		fd.render(func(w io.Writer) { v.draw(w, ev.Entry.Data, state) })
	}

	lines := readLines(ctx)
	results := make(chan error)
	pending := 0

	fd.printf("%s\n", v.help)
	for {
		if lines == nil && pending == 0 {
			for {
				select {
				case ev := <-events:
					draw(ev)
				default:
					return nil
				}
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			draw(ev)
		case err := <-results:
			pending--
			var usage usageError
			if errors.As(err, &usage) {
				fd.printf("%v\n%s\n", usage.error, v.help)
			}
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}
			switch fields[0] {
			case "quit", "exit":
				return nil
			case "refresh":
				ws.poller.Refetch()
				continue
			case "help":
				fd.printf("%s\n", v.help)
				continue
			}
			if v.command == nil {
				fd.printf("this view takes no commands\n%s\n", v.help)
				continue
			}

			pending++
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := v.command(cmdCtx, ws, fields)
				select {
				case results <- err:
				case <-cmdCtx.Done():
				}
			}()
		}
	}
}

// readLines feeds the trimmed lines of input until it ends or ctx is done
func readLines(ctx context.Context) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(input)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

// viewHeader is the first line of every redraw
func viewHeader(w io.Writer, title string, count int, state uistate.State) {
	fmt.Fprintf(w, "\n%s (%d, synced %s)\n", title, count, syncLabel(state))
}
