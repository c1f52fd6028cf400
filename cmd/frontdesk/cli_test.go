package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lizet96/frontdesk/auth"
	"github.com/lizet96/frontdesk/client"
	"github.com/lizet96/frontdesk/models"
	"github.com/lizet96/frontdesk/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// syncBuffer is the app output. Watch views write to it from several
// goroutines while the test reads it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

type CLITestSuite struct {
	suite.Suite
	srv     *httptest.Server
	mu      sync.Mutex
	routes  map[string]http.HandlerFunc
	session string
	out     *syncBuffer
}

func (s *CLITestSuite) SetupTest() {
	s.routes = map[string]http.HandlerFunc{}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		h, ok := s.routes[r.Method+" "+r.URL.Path]
		s.mu.Unlock()
		if ok {
			h(w, r)
			return
		}
		reply(w, http.StatusNotFound, models.Envelope{Message: "not found"})
	}))
	s.session = filepath.Join(s.T().TempDir(), "session.json")
	s.out = &syncBuffer{}
	input = strings.NewReader("")
}

func (s *CLITestSuite) TearDownTest() {
	s.srv.Close()
}

func (s *CLITestSuite) run(args ...string) error {
	app := GetApp()
	app.Writer = s.out
	return app.Run(append([]string{Name, "--api", s.srv.URL, "--session", s.session}, args...))
}

func reply(w http.ResponseWriter, status int, env models.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func accessToken(t *testing.T, exp time.Time) string {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		UserID:           2,
		Name:             "Rita Desk",
		Email:            "rita@clinic.test",
		Role:             string(models.RoleReceptionist),
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func (s *CLITestSuite) login() {
	token := accessToken(s.T(), time.Now().Add(15*time.Minute))
	s.routes["POST /auth/login"] = func(w http.ResponseWriter, r *http.Request) {
		var body models.LoginRequest
		s.NoError(json.NewDecoder(r.Body).Decode(&body))
		if body.Password != "secret" {
			reply(w, http.StatusUnauthorized, models.Envelope{Message: "Invalid credentials"})
			return
		}
		reply(w, http.StatusOK, models.Envelope{Success: true, Data: models.LoginResponse{
			AccessToken: token, RefreshToken: "refresh-1",
			User: models.User{ID: 2, Name: "Rita Desk", Email: body.Email, Role: models.RoleReceptionist},
		}})
	}
	s.Require().NoError(s.run("login", "--email", "rita@clinic.test", "--password", "secret"))
}

func (s *CLITestSuite) TestLoginAndWhoami() {
	s.Require().NoError(s.run("whoami"))
	s.Contains(s.out.String(), "Not logged in")

	s.login()
	s.Contains(s.out.String(), "Logged in as Rita Desk (receptionist)")

	s.out.Reset()
	s.Require().NoError(s.run("whoami"))
	s.Contains(s.out.String(), "Rita Desk <rita@clinic.test>")
	s.Contains(s.out.String(), "role: receptionist")
}

func (s *CLITestSuite) TestLoginReadsPasswordFromInput() {
	s.routes["POST /auth/login"] = func(w http.ResponseWriter, r *http.Request) {
		var body models.LoginRequest
		s.NoError(json.NewDecoder(r.Body).Decode(&body))
		s.Equal("from-stdin", body.Password)
		reply(w, http.StatusUnauthorized, models.Envelope{Message: "MFA code required"})
	}
	input = strings.NewReader("from-stdin\n")

	err := s.run("login", "--email", "rita@clinic.test")
	s.EqualError(err, "this account uses MFA, pass the code with --mfa")
}

func (s *CLITestSuite) TestQueueListFiltersAndSorts() {
	s.login()
	s.routes["GET /queue"] = func(w http.ResponseWriter, r *http.Request) {
		s.True(strings.HasPrefix(r.Header.Get("Authorization"), "Bearer "))
		reply(w, http.StatusOK, models.Envelope{Success: true, Data: []models.QueueEntry{
			{ID: 1, Number: 1, Priority: models.PriorityNormal, Status: models.QueueWaiting, Patient: &models.Patient{FirstName: "José", LastName: "Álvarez"}},
			{ID: 2, Number: 2, Priority: models.PriorityUrgent, Status: models.QueueWaiting, Patient: &models.Patient{FirstName: "Ben", LastName: "Carter"}},
		}, Meta: &models.Meta{Total: 2, Page: 1, Limit: 100, TotalPages: 1}})
	}

	s.out.Reset()
	s.Require().NoError(s.run("queue", "list"))
	out := s.out.String()
	s.Less(strings.Index(out, "Ben Carter"), strings.Index(out, "José Álvarez"), "urgent first")

	s.out.Reset()
	s.Require().NoError(s.run("queue", "list", "--search", "jose"))
	s.Contains(s.out.String(), "José Álvarez")
	s.NotContains(s.out.String(), "Ben Carter")
}

func (s *CLITestSuite) TestStats() {
	s.login()
	s.routes["GET /dashboard/stats"] = func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, models.Envelope{Success: true, Data: models.DashboardStats{
			Waiting: 3, AvailableDoctors: 2, TotalDoctors: 5, AverageWaitMinutes: 12.4,
		}})
	}
	s.out.Reset()
	s.Require().NoError(s.run("stats"))
	s.Contains(s.out.String(), "2 of 5")
	s.Contains(s.out.String(), "12 min")
}

func (s *CLITestSuite) TestExpiredSessionAsksForLogin() {
	s.login()
	s.routes["GET /doctors"] = func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusUnauthorized, models.Envelope{Message: "Token expired"})
	}
	s.routes["POST /auth/refresh"] = func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusUnauthorized, models.Envelope{Message: "Invalid refresh token"})
	}

	err := s.run("doctors", "list")
	s.ErrorIs(err, client.ErrUnauthorized)
	s.Contains(describe(err), "frontdesk login")

	s.out.Reset()
	s.Require().NoError(s.run("whoami"))
	s.Contains(s.out.String(), "Not logged in")
}

func (s *CLITestSuite) TestPatientsFindDebounces() {
	s.login()
	s.routes["GET /patients"] = func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, models.Envelope{Success: true, Data: []models.Patient{
			{ID: 1, FirstName: "Ana", LastName: "Núñez", MedicalRecordNumber: "MRN-1"},
			{ID: 2, FirstName: "Andrés", LastName: "Ortiz", MedicalRecordNumber: "MRN-2"},
		}, Meta: &models.Meta{Total: 2, Page: 1, Limit: 100, TotalPages: 1}})
	}
	input = strings.NewReader("an\nnun\n")

	s.out.Reset()
	s.Require().NoError(s.run("patients", "find", "--debounce", "1h"))
	out := s.out.String()
	s.Contains(out, `1 match(es) for "nun"`)
	s.NotContains(out, `for "an"`)
}

func (s *CLITestSuite) TestBadArguments() {
	s.login()
	s.Error(s.run("queue", "status", "abc", "called"))
	s.Error(s.run("queue", "status", "4", "teleported"))
	s.Error(s.run("appointments", "book", "--patient", "1", "--doctor", "2"))
}

// watchApp starts a watch command fed from a pipe. Closing the returned
// writer ends the input.
func (s *CLITestSuite) watchApp(args ...string) (*io.PipeWriter, <-chan error) {
	pr, pw := io.Pipe()
	input = pr
	done := make(chan error, 1)
	go func() { done <- s.run(args...) }()
	return pw, done
}

func (s *CLITestSuite) finish(pw *io.PipeWriter, done <-chan error) {
	s.Require().NoError(pw.Close())
	select {
	case err := <-done:
		s.NoError(err)
	case <-time.After(5 * time.Second):
		s.Fail("watch did not stop at end of input")
	}
}

func (s *CLITestSuite) eventuallyOutput(want string) {
	s.Eventually(func() bool { return strings.Contains(s.out.String(), want) }, 3*time.Second, 10*time.Millisecond, "waiting for %q", want)
}

// lastDraw is the output after the most recent view header
func lastDraw(out, header string) string {
	return out[strings.LastIndex(out, header):]
}

// rowOf is the first line of out mentioning name
func rowOf(out, name string) string {
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, name) {
			return line
		}
	}
	return ""
}

func (s *CLITestSuite) TestQueueWatchRollsBackRefusedAction() {
	s.login()
	patient := func(first string) *models.Patient { return &models.Patient{FirstName: first, LastName: "Test"} }
	s.routes["GET /queue"] = func(w http.ResponseWriter, r *http.Request) {
		s.Equal("true", r.URL.Query().Get("active"))
		reply(w, http.StatusOK, models.Envelope{Success: true, Data: []models.QueueEntry{
			{ID: 10, Number: 1, Priority: models.PriorityNormal, Status: models.QueueWaiting, Patient: patient("Ana")},
			{ID: 11, Number: 2, Priority: models.PriorityNormal, Status: models.QueueWaiting, Patient: patient("Ben")},
		}, Meta: &models.Meta{Total: 2, Page: 1, Limit: 100, TotalPages: 1}})
	}
	release := make(chan struct{})
	s.routes["PUT /queue/10/status"] = func(w http.ResponseWriter, r *http.Request) {
		<-release
		reply(w, http.StatusConflict, models.Envelope{Message: "Entry already moved on"})
	}

	s.out.Reset()
	pw, done := s.watchApp("queue", "watch", "--interval", "1h")
	s.eventuallyOutput("Queue for")

	_, err := io.WriteString(pw, "start 1\n")
	s.Require().NoError(err)
	s.eventuallyOutput("in_progress")
	s.NotContains(s.out.String(), "Conflict", "drawn before the server answered")

	close(release)
	s.eventuallyOutput("[error] Conflict Entry already moved on")
	s.Eventually(func() bool {
		last := lastDraw(s.out.String(), "Queue for")
		return strings.Contains(rowOf(last, "Ana Test"), "waiting") && !strings.Contains(last, "in_progress")
	}, 3*time.Second, 10*time.Millisecond, "rolled back redraw")

	out := s.out.String()
	s.Less(strings.Index(out, "in_progress"), strings.Index(out, "[error] Conflict"))

	s.finish(pw, done)
}

func (s *CLITestSuite) TestDoctorsWatchUpdatesStatus() {
	s.login()
	var mu sync.Mutex
	status := models.DoctorAvailable
	s.routes["GET /doctors"] = func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		reply(w, http.StatusOK, models.Envelope{Success: true, Data: []models.Doctor{
			{ID: 1, Name: "Gregory House", Specialty: "Diagnostics", Status: status},
		}, Meta: &models.Meta{Total: 1, Page: 1, Limit: 100, TotalPages: 1}})
	}
	s.routes["PUT /doctors/1/status"] = func(w http.ResponseWriter, r *http.Request) {
		var body models.DoctorStatusRequest
		s.NoError(json.NewDecoder(r.Body).Decode(&body))
		mu.Lock()
		status = body.Status
		mu.Unlock()
		reply(w, http.StatusOK, models.Envelope{Success: true, Data: models.Doctor{
			ID: 1, Name: "Gregory House", Specialty: "Diagnostics", Status: body.Status,
		}})
	}

	s.out.Reset()
	pw, done := s.watchApp("doctors", "watch", "--interval", "1h")
	s.eventuallyOutput("Gregory House")
	s.Contains(rowOf(s.out.String(), "Gregory House"), "available")

	_, err := io.WriteString(pw, "status 1 busy\nstatus 1 asleep\n")
	s.Require().NoError(err)
	s.eventuallyOutput("[success] Doctor 1 is now busy")
	s.eventuallyOutput(`unknown doctor status "asleep"`)
	s.Eventually(func() bool {
		return strings.Contains(rowOf(lastDraw(s.out.String(), "Doctors ("), "Gregory House"), "busy")
	}, 3*time.Second, 10*time.Millisecond)

	s.finish(pw, done)
}

func (s *CLITestSuite) TestStatsWatch() {
	s.login()
	s.routes["GET /dashboard/stats"] = func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, models.Envelope{Success: true, Data: models.DashboardStats{
			Waiting: 3, AvailableDoctors: 2, TotalDoctors: 5,
		}})
	}

	s.out.Reset()
	pw, done := s.watchApp("stats", "--watch", "--interval", "1h")
	s.eventuallyOutput("2 of 5")

	_, err := io.WriteString(pw, "cancel 3\n")
	s.Require().NoError(err)
	s.eventuallyOutput("this view takes no commands")

	s.finish(pw, done)
}

func TestToastPrinterForgetsDismissedToasts(t *testing.T) {
	out := &syncBuffer{}
	p := &toastPrinter{fd: &frontdesk{out: out}}

	p.print([]notify.Toast{{ID: "a", Kind: notify.Info, Title: "One"}})
	p.print([]notify.Toast{{ID: "a", Kind: notify.Info, Title: "One"}, {ID: "b", Kind: notify.Success, Title: "Two"}})
	assert.Equal(t, 1, strings.Count(out.String(), "One"))
	assert.Equal(t, 1, strings.Count(out.String(), "Two"))

	p.print([]notify.Toast{{ID: "b", Kind: notify.Success, Title: "Two"}})
	assert.Len(t, p.seen, 1)
	p.print(nil)
	assert.Empty(t, p.seen)
}

func TestCLITestSuite(t *testing.T) {
	suite.Run(t, new(CLITestSuite))
}

func TestNextWaiting(t *testing.T) {
	doctor := uint(4)
	other := uint(5)
	base := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	entries := []models.QueueEntry{
		{ID: 1, Number: 1, Status: models.QueueCalled, CheckedInAt: base},
		{ID: 2, Number: 2, Status: models.QueueWaiting, Priority: models.PriorityNormal, CheckedInAt: base.Add(time.Minute)},
		{ID: 3, Number: 3, Status: models.QueueWaiting, Priority: models.PriorityUrgent, CheckedInAt: base.Add(2 * time.Minute), DoctorID: &other},
	}

	next, ok := nextWaiting(entries, nil)
	require.True(t, ok)
	assert.Equal(t, uint(3), next.ID)

	next, ok = nextWaiting(entries, &doctor)
	require.True(t, ok)
	assert.Equal(t, uint(2), next.ID)

	_, ok = nextWaiting(entries[:1], nil)
	assert.False(t, ok)
}

func TestParseTime(t *testing.T) {
	at, err := parseTime("2026-10-20T10:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, 10, at.Hour())

	_, err = parseTime("2026-10-20 10:30")
	assert.NoError(t, err)

	_, err = parseTime("tomorrow")
	assert.Error(t, err)
}
