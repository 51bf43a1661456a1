package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/covidtrack/covid-server/internal/domain/caserecord"
	"github.com/covidtrack/covid-server/internal/domain/vaccination"
	"github.com/covidtrack/covid-server/internal/platform/auth"
	"github.com/covidtrack/covid-server/internal/platform/db"
	"github.com/covidtrack/covid-server/internal/platform/notification"
)

type mockHistoryRepo struct {
	histories []PatientHistory
	err       error
}

func (m *mockHistoryRepo) PatientHistory(_ context.Context, patientID uuid.UUID) (PatientHistory, error) {
	if m.err != nil {
		return PatientHistory{}, m.err
	}
	for _, h := range m.histories {
		if h.PatientID == patientID {
			return h, nil
		}
	}
	return PatientHistory{}, ErrPatientNotFound
}

func (m *mockHistoryRepo) AllHistories(_ context.Context) ([]PatientHistory, error) {
	return m.histories, m.err
}

// recordingTx records the options each transaction was opened with.
type recordingTx struct {
	opts []string
}

func (r *recordingTx) RunInTx(ctx context.Context, opts pgx.TxOptions, fn func(ctx context.Context) error) error {
	r.opts = append(r.opts, string(opts.IsoLevel))
	return fn(ctx)
}

func newTestService(histories ...PatientHistory) (*Service, *mockHistoryRepo) {
	repo := &mockHistoryRepo{histories: histories}
	svc := NewService(repo, db.NoTx{})
	svc.now = func() time.Time { return time.Date(2024, 6, 30, 10, 0, 0, 0, time.Local) }
	return svc, repo
}

func sampleHistories() (uuid.UUID, uuid.UUID, []PatientHistory) {
	a, b := uuid.New(), uuid.New()
	return a, b, []PatientHistory{
		{PatientID: a, Vaccinations: []vaccination.Vaccination{dose(a, "2024-01-01")}},
		{PatientID: b, CaseRecords: []caserecord.CaseRecord{caseOn(b, "2024-06-20", caserecord.StatusActive)}},
		{PatientID: uuid.New()},
	}
}

func TestService_Today(t *testing.T) {
	svc, _ := newTestService()
	if got := svc.Today().String(); got != "2024-06-30" {
		t.Errorf("expected 2024-06-30, got %s", got)
	}
}

func TestService_ForPatient(t *testing.T) {
	a, _, hs := sampleHistories()
	svc, _ := newTestService(hs...)

	got, err := svc.ForPatient(context.Background(), a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Status != StatusOverdue {
		t.Errorf("unexpected notifications: %+v", got)
	}

	if _, err := svc.ForPatient(context.Background(), uuid.New()); !errors.Is(err, ErrPatientNotFound) {
		t.Errorf("expected ErrPatientNotFound, got %v", err)
	}
}

func TestService_UsesSnapshotTx(t *testing.T) {
	_, _, hs := sampleHistories()
	tx := &recordingTx{}
	svc := NewService(&mockHistoryRepo{histories: hs}, tx)

	if _, err := svc.DueForAll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tx.opts) != 1 || tx.opts[0] != string(db.ReadSnapshot.IsoLevel) {
		t.Errorf("expected one repeatable read transaction, got %v", tx.opts)
	}
}

func TestService_DueForAll_RepoError(t *testing.T) {
	svc, repo := newTestService()
	repo.err = errors.New("connection reset")
	if _, err := svc.DueForAll(context.Background()); err == nil {
		t.Error("expected repository error")
	}
}

func TestHandler_Mine(t *testing.T) {
	a, _, hs := sampleHistories()
	svc, _ := newTestService(hs...)
	h := NewHandler(svc)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(auth.WithPrincipal(req.Context(), auth.Principal{UserID: a, Role: auth.RoleUser}))
	rec := httptest.NewRecorder()
	if err := h.Mine(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Notifications []struct {
			Type    string `json:"type"`
			Title   string `json:"title"`
			DueDate string `json:"due_date"`
		} `json:"notifications"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if len(body.Notifications) != 1 || body.Notifications[0].DueDate != "2024-06-29" || body.Notifications[0].Title != "Second dose due" {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestHandler_Mine_NoProfile(t *testing.T) {
	svc, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(auth.WithPrincipal(req.Context(), auth.Principal{UserID: uuid.New(), Role: auth.RoleAdmin}))
	rec := httptest.NewRecorder()
	if err := h.Mine(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Body.String() != "{\"notifications\":[]}\n" {
		t.Errorf("expected empty list, got %s", rec.Body.String())
	}
}

func TestHandler_AdminDue(t *testing.T) {
	a, b, hs := sampleHistories()
	svc, _ := newTestService(hs...)
	h := NewHandler(svc)
	e := echo.New()

	rec := httptest.NewRecorder()
	if err := h.AdminDue(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Items []Notification `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Items) != 2 || body.Items[0].PatientID != a || body.Items[1].PatientID != b {
		t.Errorf("unexpected items: %s", rec.Body.String())
	}
	if body.Items[1].RetestDate == nil || body.Items[1].RetestDate.String() != "2024-07-05" {
		t.Errorf("unexpected retest date: %+v", body.Items[1])
	}
}

func TestHandler_AdminDue_Malformed(t *testing.T) {
	svc, _ := newTestService(PatientHistory{PatientID: uuid.New(), Vaccinations: []vaccination.Vaccination{{ID: uuid.New()}}})
	h := NewHandler(svc)
	e := echo.New()

	err := h.AdminDue(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder()))
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %v", err)
	}
}

// selectivePublisher fails every message for one patient.
type selectivePublisher struct {
	mu      sync.Mutex
	failFor string
	sent    []notification.Message
}

func (p *selectivePublisher) Publish(_ context.Context, m notification.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if m.PatientID == p.failFor {
		return errors.New("broker unavailable")
	}
	p.sent = append(p.sent, m)
	return nil
}

func (p *selectivePublisher) Close() error { return nil }

func TestSweeper_RunOnce(t *testing.T) {
	a, b, hs := sampleHistories()
	svc, _ := newTestService(hs...)
	pub := &selectivePublisher{failFor: a.String()}
	d := notification.NewDispatcher(pub, 10)
	s := NewSweeper(svc, d, zerolog.Nop())

	res := s.RunOnce(context.Background())
	if res.Due != 2 || res.Sent != 1 || res.Failed != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(pub.sent) != 1 {
		t.Fatalf("expected one published message, got %d", len(pub.sent))
	}
	m := pub.sent[0]
	if m.PatientID != b.String() || m.Kind != string(KindRetestReminder) || m.Date != "2024-07-05" || m.Title != "Retest recommended" {
		t.Errorf("unexpected message: %+v", m)
	}
	if stats := d.Stats(); stats[notification.StatusFailed] != 1 || stats[notification.StatusSent] != 1 {
		t.Errorf("unexpected dispatcher stats: %v", stats)
	}
}

func TestSweeper_RepoErrorIsLogged(t *testing.T) {
	svc, repo := newTestService()
	repo.err = errors.New("timeout")
	pub := &notification.MemoryPublisher{}
	s := NewSweeper(svc, notification.NewDispatcher(pub, 10), zerolog.Nop())

	if res := s.RunOnce(context.Background()); res != (SweepResult{}) {
		t.Errorf("expected empty result, got %+v", res)
	}
	if len(pub.Messages()) != 0 {
		t.Error("nothing should be published")
	}
}

func TestSweeper_StartRejectsBadSpec(t *testing.T) {
	svc, _ := newTestService()
	s := NewSweeper(svc, notification.NewDispatcher(&notification.MemoryPublisher{}, 10), zerolog.Nop())
	if err := s.Start(context.Background(), "not a schedule"); err == nil {
		t.Error("expected error for invalid cron spec")
	}
	s.Stop()

	if err := s.Start(context.Background(), "@every 1h"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Stop()
}
