package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lizet96/frontdesk/client"
	"github.com/lizet96/frontdesk/filter"
	"github.com/lizet96/frontdesk/models"
	"github.com/lizet96/frontdesk/realtime"
	"github.com/lizet96/frontdesk/session"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

// App name and usage
const (
	Name    = "frontdesk"
	Usage   = "Clinic front desk dashboard"
	Version = "1.0.0"
)

const (
	requestTimeout = 30 * time.Second
	dateLayout     = "2006-01-02"
)

// input is where interactive commands read from
var input io.Reader = os.Stdin

// frontdesk carries what every command needs once the global flags are read
type frontdesk struct {
	api     *client.Client
	session *session.Store

	mu  sync.Mutex
	out io.Writer
}

// printf writes to the app output. Pollers and toasts print from their own
// goroutines, so writes are serialized.
func (fd *frontdesk) printf(format string, args ...interface{}) {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	fmt.Fprintf(fd.out, format, args...)
}

func (fd *frontdesk) render(fn func(w io.Writer)) {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	fn(fd.out)
}

func GetApp() *cli.App {
	return setUpApp()
}

func setUpApp() *cli.App {
	app := cli.NewApp()
	app.Name = Name
	app.Usage = Usage
	app.Version = Version

	fd := &frontdesk{}

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "api",
			Usage:  "Base URL of the front desk API",
			Value:  client.DefaultBaseURL,
			EnvVar: "FRONTDESK_API_URL",
		},
		cli.StringFlag{
			Name:   "session",
			Usage:  "File holding the session cookies",
			Value:  session.DefaultPath(),
			EnvVar: "FRONTDESK_SESSION_FILE",
		},
	}

	app.Before = func(c *cli.Context) error {
		store, err := session.Open(c.String("session"))
		if err != nil {
			return err
		}
		fd.session = store
		fd.out = app.Writer
		fd.api = client.New(c.String("api"), client.WithTokenSource(store))
		return nil
	}

	var email, password, mfaCode string

	app.Commands = []cli.Command{
		{
			Name:     "login",
			Category: "Session",
			Usage:    "Sign in and keep the session for later commands",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "email", Usage: "Staff email", Destination: &email},
				cli.StringFlag{Name: "password", Usage: "Password (read from stdin when empty)", Destination: &password},
				cli.StringFlag{Name: "mfa", Usage: "Six digit code from the authenticator app", Destination: &mfaCode},
			},
			Action: func(c *cli.Context) error {
				if email == "" {
					return errors.New("--email is required")
				}
				if password == "" {
					line, err := bufio.NewReader(input).ReadString('\n')
					if err != nil && line == "" {
						return errors.New("no password given")
					}
					password = strings.TrimSpace(line)
				}
				ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
				defer cancel()

				resp, err := fd.api.Login(ctx, email, password, mfaCode)
				if errors.Is(err, client.ErrMFARequired) {
					return errors.New("this account uses MFA, pass the code with --mfa")
				}
				if err != nil {
					return err
				}
				fd.printf("Logged in as %s (%s)\n", resp.User.Name, resp.User.Role)
				return nil
			},
		},
		{
			Name:     "logout",
			Category: "Session",
			Usage:    "End the session",
			Action: func(c *cli.Context) error {
				ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
				defer cancel()
				if err := fd.api.Logout(ctx); err != nil {
					return err
				}
				fd.printf("Logged out\n")
				return nil
			},
		},
		{
			Name:     "whoami",
			Category: "Session",
			Usage:    "Show the signed in user",
			Action: func(c *cli.Context) error {
				claims, err := fd.session.Claims()
				if errors.Is(err, session.ErrNoSession) {
					fd.printf("Not logged in\n")
					return nil
				}
				if err != nil {
					return err
				}
				expiry := "unknown"
				if claims.ExpiresAt != nil {
					expiry = claims.ExpiresAt.Local().Format(time.RFC1123)
				}
				fd.printf("%s <%s>\nrole: %s\nsession expires: %s\n", claims.Name, claims.Email, claims.Role, expiry)
				if fd.session.Expired() {
					fd.printf("The access token has expired; it is refreshed on the next request.\n")
				}
				return nil
			},
		},
		{
			Name:     "stats",
			Category: "Dashboard",
			Usage:    "Show today's numbers",
			Flags: []cli.Flag{
				cli.BoolFlag{Name: "watch", Usage: "Keep the numbers on screen and refresh them"},
				cli.DurationFlag{Name: "interval", Value: realtime.DashboardInterval, Usage: "Poll interval with --watch"},
			},
			Action: func(c *cli.Context) error {
				if c.Bool("watch") {
					return fd.watchUntilInterrupt(fd.statsView(c.Duration("interval")))
				}
				ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
				defer cancel()
				stats, err := fd.api.DashboardStats(ctx)
				if err != nil {
					return err
				}
				fd.render(func(w io.Writer) { renderStats(w, stats) })
				return nil
			},
		},
		queueCommand(fd),
		appointmentsCommand(fd),
		doctorsCommand(fd),
		patientsCommand(fd),
	}
	return app
}

func appointmentsCommand(fd *frontdesk) cli.Command {
	return cli.Command{
		Name:     "appointments",
		Aliases:  []string{"appt"},
		Category: "Scheduling",
		Usage:    "Book and manage appointments",
		Subcommands: []cli.Command{
			{
				Name:  "watch",
				Usage: "Live view of a day's appointments with quick actions",
				Flags: []cli.Flag{
					cli.StringFlag{Name: "date", Usage: "Day (YYYY-MM-DD), default today"},
					cli.DurationFlag{Name: "interval", Value: realtime.AppointmentsInterval, Usage: "Poll interval"},
				},
				Action: func(c *cli.Context) error {
					day := c.String("date")
					if day == "" {
						day = time.Now().Format(dateLayout)
					}
					if _, err := time.Parse(dateLayout, day); err != nil {
						return errors.Errorf("cannot read date %q", day)
					}
					return fd.watchUntilInterrupt(fd.appointmentsView(day, c.Duration("interval")))
				},
			},
			{
				Name:  "list",
				Usage: "List appointments",
				Flags: []cli.Flag{
					cli.StringFlag{Name: "from", Usage: "First day (YYYY-MM-DD), default today"},
					cli.StringFlag{Name: "to", Usage: "Last day (YYYY-MM-DD), default --from"},
					cli.StringFlag{Name: "status", Usage: "Only this status"},
					cli.UintFlag{Name: "doctor", Usage: "Only this doctor id"},
					cli.StringFlag{Name: "search", Usage: "Patient, doctor or reason text"},
					cli.StringFlag{Name: "sort", Value: "scheduledAt", Usage: "scheduledAt, status or patient"},
					cli.StringFlag{Name: "order", Value: "asc", Usage: "asc or desc"},
				},
				Action: func(c *cli.Context) error {
					from := c.String("from")
					if from == "" {
						from = time.Now().Format(dateLayout)
					}
					to := c.String("to")
					if to == "" {
						to = from
					}
					ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
					defer cancel()
					page, err := fd.api.ListAppointments(ctx, client.AppointmentListOptions{
						ListOptions: client.ListOptions{Limit: 100},
						Status:      models.AppointmentStatus(c.String("status")),
						DoctorID:    c.Uint("doctor"),
						From:        from,
						To:          to,
					})
					if err != nil {
						return err
					}
					items := filter.Apply(page.Items, filter.AppointmentFilter{Search: c.String("search")}.Match)
					items = filter.Sort(items, filter.AppointmentComparator(c.String("sort")), filter.ParseDirection(c.String("order")))
					fd.render(func(w io.Writer) { renderAppointments(w, items) })
					return nil
				},
			},
			{
				Name:  "book",
				Usage: "Book an appointment",
				Flags: []cli.Flag{
					cli.UintFlag{Name: "patient", Usage: "Patient id"},
					cli.UintFlag{Name: "doctor", Usage: "Doctor id"},
					cli.StringFlag{Name: "at", Usage: `Start time, RFC 3339 or "YYYY-MM-DD HH:MM" local`},
					cli.IntFlag{Name: "minutes", Value: models.DefaultAppointmentMinutes, Usage: "Duration"},
					cli.StringFlag{Name: "reason", Usage: "Reason for the visit"},
				},
				Action: func(c *cli.Context) error {
					at, err := parseTime(c.String("at"))
					if err != nil {
						return err
					}
					ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
					defer cancel()
					appt, err := fd.api.CreateAppointment(ctx, models.AppointmentRequest{
						PatientID:       c.Uint("patient"),
						DoctorID:        c.Uint("doctor"),
						ScheduledAt:     at,
						DurationMinutes: c.Int("minutes"),
						Reason:          c.String("reason"),
					})
					if err != nil {
						return err
					}
					fd.printf("Booked appointment %d for %s\n", appt.ID, appt.ScheduledAt.Local().Format("Mon 2 Jan 15:04"))
					return nil
				},
			},
			{
				Name:      "cancel",
				Usage:     "Cancel an appointment",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := idArg(c, 0)
					if err != nil {
						return err
					}
					ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
					defer cancel()
					if _, err := fd.api.CancelAppointment(ctx, id); err != nil {
						return err
					}
					fd.printf("Cancelled appointment %d\n", id)
					return nil
				},
			},
			{
				Name:      "checkin",
				Usage:     "Check in the patient of an appointment",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := idArg(c, 0)
					if err != nil {
						return err
					}
					ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
					defer cancel()
					resp, err := fd.api.CheckInAppointment(ctx, id)
					if err != nil {
						return err
					}
					fd.printf("Checked in, ticket #%d\n", resp.QueueEntry.Number)
					return nil
				},
			},
		},
	}
}

func doctorsCommand(fd *frontdesk) cli.Command {
	return cli.Command{
		Name:     "doctors",
		Category: "Staff",
		Usage:    "Doctor availability",
		Subcommands: []cli.Command{
			{
				Name:  "watch",
				Usage: "Live view of doctor availability",
				Flags: []cli.Flag{
					cli.DurationFlag{Name: "interval", Value: realtime.DoctorsInterval, Usage: "Poll interval"},
				},
				Action: func(c *cli.Context) error {
					return fd.watchUntilInterrupt(fd.doctorsView(c.Duration("interval")))
				},
			},
			{
				Name:  "list",
				Usage: "List doctors",
				Flags: []cli.Flag{
					cli.StringFlag{Name: "status", Usage: "available, busy, on_break or off_duty"},
					cli.StringFlag{Name: "specialty", Usage: "Only this specialty"},
					cli.StringFlag{Name: "search", Usage: "Name, specialty, email or room"},
					cli.StringFlag{Name: "sort", Value: "name", Usage: "name, specialty or status"},
					cli.StringFlag{Name: "order", Value: "asc", Usage: "asc or desc"},
				},
				Action: func(c *cli.Context) error {
					ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
					defer cancel()
					page, err := fd.api.ListDoctors(ctx, client.DoctorListOptions{
						ListOptions: client.ListOptions{Limit: 100},
						Status:      models.DoctorStatus(c.String("status")),
					})
					if err != nil {
						return err
					}
					items := filter.Apply(page.Items, filter.DoctorFilter{Specialty: c.String("specialty"), Search: c.String("search")}.Match)
					items = filter.Sort(items, filter.DoctorComparator(c.String("sort")), filter.ParseDirection(c.String("order")))
					fd.render(func(w io.Writer) { renderDoctors(w, items) })
					return nil
				},
			},
			{
				Name:      "status",
				Usage:     "Set a doctor's availability",
				ArgsUsage: "<id> <available|busy|on_break|off_duty>",
				Action: func(c *cli.Context) error {
					id, err := idArg(c, 0)
					if err != nil {
						return err
					}
					status := models.DoctorStatus(c.Args().Get(1))
					if !status.Valid() {
						return errors.Errorf("unknown doctor status %q", status)
					}
					ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
					defer cancel()
					doc, err := fd.api.UpdateDoctorStatus(ctx, id, status)
					if err != nil {
						return err
					}
					fd.printf("%s is now %s\n", doc.Name, doc.Status)
					return nil
				},
			},
		},
	}
}

func patientsCommand(fd *frontdesk) cli.Command {
	return cli.Command{
		Name:     "patients",
		Category: "Records",
		Usage:    "Find and register patients",
		Subcommands: []cli.Command{
			{
				Name:  "watch",
				Usage: "Live list of patients",
				Flags: []cli.Flag{
					cli.StringFlag{Name: "search", Usage: "Name, record number, phone or email"},
					cli.DurationFlag{Name: "interval", Value: realtime.PatientsInterval, Usage: "Poll interval"},
				},
				Action: func(c *cli.Context) error {
					return fd.watchUntilInterrupt(fd.patientsView(c.String("search"), c.Duration("interval")))
				},
			},
			{
				Name:  "list",
				Usage: "List patients",
				Flags: []cli.Flag{
					cli.StringFlag{Name: "search", Usage: "Name, record number, phone or email"},
					cli.IntFlag{Name: "page", Value: 1},
					cli.IntFlag{Name: "limit", Value: 20},
				},
				Action: func(c *cli.Context) error {
					ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
					defer cancel()
					page, err := fd.api.ListPatients(ctx, client.ListOptions{
						Page: c.Int("page"), Limit: c.Int("limit"), Search: c.String("search"),
					})
					if err != nil {
						return err
					}
					fd.render(func(w io.Writer) {
						renderPatients(w, page.Items)
						fmt.Fprintf(w, "page %d of %d (%d patients)\n", page.Meta.Page, page.Meta.TotalPages, page.Meta.Total)
					})
					return nil
				},
			},
			{
				Name:  "add",
				Usage: "Register a patient",
				Flags: []cli.Flag{
					cli.StringFlag{Name: "first", Usage: "First name"},
					cli.StringFlag{Name: "last", Usage: "Last name"},
					cli.StringFlag{Name: "dob", Usage: "Date of birth (YYYY-MM-DD)"},
					cli.StringFlag{Name: "phone"},
					cli.StringFlag{Name: "email"},
				},
				Action: func(c *cli.Context) error {
					ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
					defer cancel()
					p, err := fd.api.CreatePatient(ctx, models.PatientRequest{
						FirstName:   c.String("first"),
						LastName:    c.String("last"),
						DateOfBirth: c.String("dob"),
						Phone:       c.String("phone"),
						Email:       c.String("email"),
					})
					if err != nil {
						return err
					}
					fd.printf("Registered %s as patient %d (%s)\n", p.FullName(), p.ID, p.MedicalRecordNumber)
					return nil
				},
			},
			{
				Name:  "find",
				Usage: "Search patients as you type, one query per line",
				Flags: []cli.Flag{
					cli.DurationFlag{Name: "debounce", Value: filter.DefaultDebounce},
				},
				Action: func(c *cli.Context) error {
					return fd.findPatients(c.Duration("debounce"))
				},
			},
		},
	}
}

// findPatients loads the patient list once and filters it locally on every
// query that survives the debounce
func (fd *frontdesk) findPatients(delay time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	var all []models.Patient
	for page := 1; ; page++ {
		p, err := fd.api.ListPatients(ctx, client.ListOptions{Page: page, Limit: 100})
		if err != nil {
			return err
		}
		all = append(all, p.Items...)
		if page >= p.Meta.TotalPages {
			break
		}
	}

	queries := make(chan string, 16)
	d := filter.NewDebouncer(delay, func(q string) { queries <- q })
	defer d.Stop()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(input)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		scanErr <- scanner.Err()
		close(lines)
	}()

	show := func(q string) {
		matches := filter.Apply(all, filter.PatientFilter{Search: q}.Match)
		matches = filter.Sort(matches, filter.PatientComparator(""), filter.Asc)
		fd.render(func(w io.Writer) {
			fmt.Fprintf(w, "%d match(es) for %q\n", len(matches), q)
			renderPatients(w, matches)
		})
	}

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				d.Flush()
				for {
					select {
					case q := <-queries:
						show(q)
					default:
						return <-scanErr
					}
				}
			}
			d.Set(line)
		case q := <-queries:
			show(q)
		}
	}
}

// watchUntilInterrupt runs v until Ctrl-C
func (fd *frontdesk) watchUntilInterrupt(v watchView) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return fd.watch(ctx, v)
}

func idArg(c *cli.Context, i int) (uint, error) {
	raw := c.Args().Get(i)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, errors.Errorf("expected a numeric id, got %q", raw)
	}
	return uint(id), nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("--at is required")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", s, time.Local)
	if err != nil {
		return time.Time{}, errors.Errorf("cannot read time %q", s)
	}
	return t, nil
}
