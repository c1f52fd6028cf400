package main

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/lizet96/frontdesk/client"
	"github.com/lizet96/frontdesk/filter"
	"github.com/lizet96/frontdesk/models"
	"github.com/lizet96/frontdesk/optimistic"
	"github.com/lizet96/frontdesk/realtime"
	"github.com/lizet96/frontdesk/uistate"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

func queueCommand(fd *frontdesk) cli.Command {
	return cli.Command{
		Name:     "queue",
		Category: "Front desk",
		Usage:    "Walk-in queue",
		Subcommands: []cli.Command{
			{
				Name:  "list",
				Usage: "List the queue",
				Flags: []cli.Flag{
					cli.StringFlag{Name: "date", Usage: `Day (YYYY-MM-DD) or "all", default today`},
					cli.StringFlag{Name: "status", Usage: "Only this status"},
					cli.StringFlag{Name: "priority", Usage: "normal or urgent"},
					cli.UintFlag{Name: "doctor", Usage: "Only this doctor id"},
					cli.StringFlag{Name: "search", Usage: "Patient name, record number or ticket"},
					cli.StringFlag{Name: "sort", Value: "priority", Usage: "number, checkedInAt, status, priority or patient"},
					cli.StringFlag{Name: "order", Value: "asc", Usage: "asc or desc"},
				},
				Action: func(c *cli.Context) error {
					ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
					defer cancel()
					page, err := fd.api.ListQueue(ctx, client.QueueListOptions{
						ListOptions: client.ListOptions{Limit: 100},
						Date:        c.String("date"),
						Status:      models.QueueStatus(c.String("status")),
						DoctorID:    c.Uint("doctor"),
					})
					if err != nil {
						return err
					}
					items := filter.Apply(page.Items, filter.QueueFilter{
						Priority: models.QueuePriority(c.String("priority")),
						Search:   c.String("search"),
					}.Match)
					items = filter.Sort(items, filter.QueueComparator(c.String("sort")), filter.ParseDirection(c.String("order")))
					fd.render(func(w io.Writer) { renderQueue(w, items, time.Now()) })
					return nil
				},
			},
			{
				Name:  "watch",
				Usage: "Live view of today's queue with quick actions",
				Flags: []cli.Flag{
					cli.DurationFlag{Name: "interval", Value: realtime.QueueInterval, Usage: "Poll interval"},
				},
				Action: func(c *cli.Context) error {
					return fd.watchUntilInterrupt(fd.queueView(c.Duration("interval")))
				},
			},
			{
				Name:  "checkin",
				Usage: "Add a walk-in patient to today's queue",
				Flags: []cli.Flag{
					cli.UintFlag{Name: "patient", Usage: "Patient id"},
					cli.UintFlag{Name: "doctor", Usage: "Doctor id, if the patient asks for one"},
					cli.BoolFlag{Name: "urgent", Usage: "Put the patient ahead of normal priority"},
					cli.StringFlag{Name: "reason", Usage: "Reason for the visit"},
				},
				Action: func(c *cli.Context) error {
					req := models.CheckInRequest{PatientID: c.Uint("patient"), Reason: c.String("reason"), Priority: models.PriorityNormal}
					if c.Bool("urgent") {
						req.Priority = models.PriorityUrgent
					}
					if doctor := c.Uint("doctor"); doctor != 0 {
						req.DoctorID = &doctor
					}
					ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
					defer cancel()
					entry, err := fd.api.CheckIn(ctx, req)
					if err != nil {
						return err
					}
					fd.printf("Checked in, ticket #%d\n", entry.Number)
					return nil
				},
			},
			{
				Name:  "call-next",
				Usage: "Call the next waiting patient",
				Flags: []cli.Flag{
					cli.UintFlag{Name: "doctor", Usage: "Only patients waiting for this doctor"},
				},
				Action: func(c *cli.Context) error {
					ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
					defer cancel()
					entry, err := fd.api.CallNext(ctx, optionalID(c.Uint("doctor")))
					if err != nil {
						return err
					}
					fd.printf("Calling ticket #%d: %s\n", entry.Number, patientName(entry.Patient))
					return nil
				},
			},
			{
				Name:      "status",
				Usage:     "Move a queue entry to a new status",
				ArgsUsage: "<id> <waiting|called|in_progress|completed|cancelled|no_show>",
				Action: func(c *cli.Context) error {
					id, err := idArg(c, 0)
					if err != nil {
						return err
					}
					status := models.QueueStatus(c.Args().Get(1))
					if !status.Valid() {
						return errors.Errorf("unknown queue status %q", status)
					}
					ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
					defer cancel()
					entry, err := fd.api.UpdateQueueStatus(ctx, id, status)
					if err != nil {
						return err
					}
					fd.printf("Ticket #%d is now %s\n", entry.Number, entry.Status)
					return nil
				},
			},
		},
	}
}

// watch commands map to the status they set
var watchActions = map[string]models.QueueStatus{
	"start":  models.QueueInProgress,
	"done":   models.QueueCompleted,
	"cancel": models.QueueCancelled,
	"noshow": models.QueueNoShow,
	"recall": models.QueueWaiting,
}

const queueHelp = "commands: next [doctor-id], start N, done N, cancel N, noshow N, recall N, refresh, quit (N is the ticket number)"

// queueView is today's active queue. Actions typed on stdin are applied to
// the view right away and rolled back if the server refuses them.
func (fd *frontdesk) queueView(interval time.Duration) watchView {
	date := time.Now().Format(dateLayout)
	return watchView{
		key:      "queue?date=" + date + "&active=true",
		interval: interval,
		fetch: func(ctx context.Context) (interface{}, error) {
			page, err := fd.api.ListQueue(ctx, client.QueueListOptions{
				ListOptions: client.ListOptions{Limit: 100},
				Date:        date,
				Active:      true,
			})
			if err != nil {
				return nil, err
			}
			return page.Items, nil
		},
		draw: func(w io.Writer, data interface{}, state uistate.State) {
			entries, _ := data.([]models.QueueEntry)
			entries = filter.Sort(entries, queueOrder, filter.Asc)
			viewHeader(w, "Queue for "+date, len(entries), state)
			renderQueue(w, entries, time.Now())
		},
		help:    queueHelp,
		command: fd.queueAction,
	}
}

func (fd *frontdesk) queueAction(ctx context.Context, ws *watchSession, fields []string) error {
	entries, _ := ws.data().([]models.QueueEntry)

	if fields[0] == "next" {
		var doctorID *uint
		if len(fields) > 1 {
			id, err := strconv.ParseUint(fields[1], 10, 64)
			if err != nil {
				return badUsage("bad doctor id %q", fields[1])
			}
			doctorID = optionalID(uint(id))
		}
		guess, ok := nextWaiting(entries, doctorID)
		if !ok {
			return badUsage("nobody is waiting")
		}
		_, err := ws.mutator.Mutate(ctx, optimistic.Mutation{
			Key: ws.key,
			Apply: optimistic.Items(func(list []models.QueueEntry) []models.QueueEntry {
				return optimistic.PatchItem(list, guess.ID, func(e *models.QueueEntry) { e.MarkStatus(models.QueueCalled, time.Now()) })
			}),
			Revert: optimistic.RevertItems[models.QueueEntry](guess.ID),
			Call: func(ctx context.Context) (interface{}, error) {
				return fd.api.CallNext(ctx, doctorID)
			},
			Reconcile:  optimistic.Reconciled(optimistic.ReplaceItem[models.QueueEntry]),
			Invalidate: []string{"dashboard"},
		})
		return err
	}

	status, known := watchActions[fields[0]]
	if !known || len(fields) < 2 {
		return badUsage("unknown command %q", strings.Join(fields, " "))
	}
	number, err := strconv.Atoi(fields[1])
	if err != nil {
		return badUsage("bad ticket number %q", fields[1])
	}
	idx := slices.IndexFunc(entries, func(e models.QueueEntry) bool { return e.Number == number })
	if idx < 0 {
		return badUsage("ticket #%d is not in the queue", number)
	}
	target := entries[idx]

	// the view lists active entries only, finished ones leave it
	apply := func(list []models.QueueEntry) []models.QueueEntry {
		if !status.Active() {
			return optimistic.RemoveItem(list, target.ID)
		}
		return optimistic.PatchItem(list, target.ID, func(e *models.QueueEntry) { e.MarkStatus(status, time.Now()) })
	}
	reconcile := func(list []models.QueueEntry, updated models.QueueEntry) []models.QueueEntry {
		if !updated.Status.Active() {
			return optimistic.RemoveItem(list, updated.ID)
		}
		return optimistic.ReplaceItem(list, updated)
	}

	_, err = ws.mutator.Mutate(ctx, optimistic.Mutation{
		Key:    ws.key,
		Apply:  optimistic.Items(apply),
		Revert: optimistic.RevertItems[models.QueueEntry](target.ID),
		Call: func(ctx context.Context) (interface{}, error) {
			return fd.api.UpdateQueueStatus(ctx, target.ID, status)
		},
		Reconcile:      optimistic.Reconciled(reconcile),
		Invalidate:     []string{"dashboard"},
		SuccessMessage: fmt.Sprintf("Ticket #%d %s", number, status),
	})
	return err
}

// queueOrder is the order the desk works in: urgent first, then by arrival
func queueOrder(a, b models.QueueEntry) int {
	if c := filter.QueueComparator("priority")(a, b); c != 0 {
		return c
	}
	return filter.QueueComparator("checkedInAt")(a, b)
}

// nextWaiting picks the entry the server is expected to call next
func nextWaiting(entries []models.QueueEntry, doctorID *uint) (models.QueueEntry, bool) {
	waiting := filter.Apply(entries, func(e models.QueueEntry) bool {
		if e.Status != models.QueueWaiting {
			return false
		}
		return doctorID == nil || e.DoctorID == nil || *e.DoctorID == *doctorID
	})
	if len(waiting) == 0 {
		return models.QueueEntry{}, false
	}
	return filter.Sort(waiting, queueOrder, filter.Asc)[0], true
}

func optionalID(id uint) *uint {
	if id == 0 {
		return nil
	}
	return &id
}

func syncLabel(s uistate.State) string {
	if s.Sync.LastSync.IsZero() {
		return "never"
	}
	label := s.Sync.LastSync.Local().Format("15:04:05")
	if !s.Online {
		label += ", offline"
	}
	return label
}
