package dsar

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"consenthub/internal/domain/auth"
	"consenthub/internal/domain/errs"
	"consenthub/internal/domain/webhook"
	"consenthub/internal/platform/jobs"
)

type memoryStore struct {
	mu   sync.Mutex
	rows map[string]Request
}

func newMemoryStore() *memoryStore {
	return &memoryStore{rows: map[string]Request{}}
}

func (m *memoryStore) Create(_ context.Context, r Request) (Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = uuid.NewString()
	r.RowVersion = 1
	r.CreatedAt = r.SubmittedAt
	r.UpdatedAt = r.SubmittedAt
	m.rows[r.ID] = r
	return r, nil
}

func (m *memoryStore) Get(_ context.Context, id string) (Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ID == id || r.RequestID == id {
			return r, nil
		}
	}
	return Request{}, ErrRequestNotFound
}

func (m *memoryStore) List(_ context.Context, filter Filter, _ time.Time, _, _ int) ([]Request, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Request
	for _, r := range m.rows {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		out = append(out, r)
	}
	return out, len(out), nil
}

func (m *memoryStore) UpdateLifecycle(_ context.Context, r Request) (Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.rows[r.ID]
	if !ok || current.RowVersion != r.RowVersion {
		return Request{}, ErrConcurrentUpdate
	}
	r.RowVersion++
	m.rows[r.ID] = r
	return r, nil
}

func (m *memoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return ErrRequestNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memoryStore) CountOverdue(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, r := range m.rows {
		if !r.Status.Terminal() && now.After(r.DueDate) {
			count++
		}
	}
	return count, nil
}

type fakeSubjects struct {
	parties    map[string]string
	eraseErr   error
	rectified  map[string]string
	exportRows []map[string]any
}

func (f *fakeSubjects) ResolveParty(_ context.Context, email string) (string, error) {
	return f.parties[strings.ToLower(email)], nil
}

func (f *fakeSubjects) ExportSubject(_ context.Context, partyID, _ string) (map[string]any, error) {
	return map[string]any{
		"consents":    f.exportRows,
		"preferences": []map[string]any{},
		"partyId":     partyID,
	}, nil
}

func (f *fakeSubjects) EraseSubject(_ context.Context, partyID string) (Erasure, error) {
	if f.eraseErr != nil {
		return Erasure{}, f.eraseErr
	}
	if partyID == "" {
		return Erasure{Scope: []string{}}, nil
	}
	return Erasure{Scope: []string{ScopeProfile, ScopeContact, ScopePreferences}, RecordsDeleted: 4}, nil
}

func (f *fakeSubjects) RectifySubject(_ context.Context, partyID string, corrections map[string]string) ([]string, error) {
	if partyID == "" {
		return nil, ErrNoLinkedAccount
	}
	f.rectified = corrections
	return sortedKeys(corrections), nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(_ context.Context, eventType string, _ any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
}

// queueDispatcher holds jobs until run is called.
type queueDispatcher struct {
	mu      sync.Mutex
	pending []jobs.Runner
	types   []string
	full    bool
}

func (d *queueDispatcher) Enqueue(jobType, _ string, run jobs.Runner) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.full {
		return false
	}
	d.types = append(d.types, jobType)
	d.pending = append(d.pending, run)
	return true
}

func (d *queueDispatcher) drain(t *testing.T) {
	t.Helper()
	d.mu.Lock()
	queued := d.pending
	d.pending = nil
	d.mu.Unlock()
	for _, run := range queued {
		_, _ = run(context.Background())
	}
}

type fixture struct {
	svc        *Service
	store      *memoryStore
	subjects   *fakeSubjects
	events     *recordingPublisher
	dispatcher *queueDispatcher
	now        time.Time
}

var (
	csr      = auth.UserContext{UserID: "csr-1", Email: "csr@consenthub.local", RoleName: auth.RoleCSR}
	customer = auth.UserContext{UserID: "user-7", Email: "jane@example.com", RoleName: auth.RoleCustomer}
)

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		store:      newMemoryStore(),
		subjects:   &fakeSubjects{parties: map[string]string{"jane@example.com": "user-7"}},
		events:     &recordingPublisher{},
		dispatcher: &queueDispatcher{},
		now:        time.Date(2025, 5, 10, 8, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(f.store, f.subjects, f.events, nil, f.dispatcher, nil, Options{
		SLADays:       30,
		PublicBaseURL: "https://privacy.example.com/",
		PhoneRegion:   "GB",
	}, zaptest.NewLogger(t))
	f.svc.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) create(t *testing.T, typ RequestType) View {
	t.Helper()
	v, err := f.svc.Create(context.Background(), csr, NewRequest{
		RequesterName:  "Jane Doe",
		RequesterEmail: "jane@example.com",
		RequestType:    typ,
		Details:        map[string]any{"corrections": map[string]any{"name": "Jane Q. Doe"}},
	})
	require.NoError(t, err)
	return v
}

func TestCreateThenGetRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, csr, NewRequest{
		RequesterName:  "Jane Doe",
		RequesterEmail: "jane@example.com",
		RequesterPhone: "0121 234 5678",
		RequestType:    TypeAccess,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, created.Status)
	assert.Equal(t, PriorityMedium, created.Priority)
	assert.Equal(t, "user-7", created.PartyID)
	assert.Equal(t, "+441212345678", created.RequesterPhone)
	assert.Regexp(t, `^DSAR-20250510-[0-9A-F]{6}$`, created.RequestID)
	assert.Equal(t, f.now.AddDate(0, 0, 30), created.DueDate)

	fetched, err := f.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.RequesterEmail, fetched.RequesterEmail)
	assert.Equal(t, created.RequestType, fetched.RequestType)
	assert.Equal(t, StatusPending, fetched.Status)
	assert.Equal(t, "+441212345678", fetched.RequesterPhone)
	assert.Equal(t, []string{webhook.DSARCreateEvent}, f.events.events)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), csr, NewRequest{
		RequesterEmail: "not-an-email",
		RequesterPhone: "12",
		RequestType:    "shred",
		Priority:       "urgent",
	})
	require.ErrorIs(t, err, errs.ErrValidation)

	var fields []string
	for _, issue := range errs.IssuesOf(err) {
		fields = append(fields, issue.Field)
	}
	assert.ElementsMatch(t, []string{"requesterName", "requesterEmail", "requesterPhone", "requestType", "priority"}, fields)
}

func TestCustomerFilesOnlyForThemselves(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, customer, NewRequest{RequesterName: "Jane", RequesterEmail: "other@example.com", RequestType: TypeAccess})
	assert.ErrorIs(t, err, errs.ErrForbidden)

	own, err := f.svc.Create(ctx, customer, NewRequest{RequesterName: "Jane", RequestType: TypeAccess})
	require.NoError(t, err)
	assert.Equal(t, customer.Email, own.RequesterEmail)
	assert.Equal(t, customer.UserID, own.PartyID)
}

func TestAutoProcessAccessProducesExport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.create(t, TypeAccess)

	started, err := f.svc.StartAutoProcessing(ctx, csr, req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, started.Status)
	require.NotNil(t, started.ProcessingStartedAt)
	assert.Equal(t, []string{jobs.JobDSARAutoProcess}, f.dispatcher.types)

	f.dispatcher.drain(t)

	done, err := f.svc.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)
	require.NotNil(t, done.ProcessingResult)
	assert.True(t, done.ProcessingResult.DataExported)
	assert.True(t, done.ProcessingResult.Automated)
	assert.Equal(t, "https://privacy.example.com/api/v1/dsar/"+req.ID+"/export", done.ProcessingResult.DownloadLink)
	assert.Positive(t, done.ProcessingResult.ExportSize)
	require.NotNil(t, done.ProcessingResult.ExpiresAt)
	assert.Equal(t, f.now.Add(7*day), *done.ProcessingResult.ExpiresAt)
	assert.Contains(t, f.events.events, webhook.DSARCompletedEvent)
}

func TestAutoProcessErasureIssuesCertificate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.create(t, TypeErasure)

	_, err := f.svc.StartAutoProcessing(ctx, csr, req.ID)
	require.NoError(t, err)
	f.dispatcher.drain(t)

	done, err := f.svc.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)
	assert.True(t, done.ProcessingResult.DataDeleted)
	assert.NotEmpty(t, done.ProcessingResult.DeletionCertificate)
	assert.Equal(t, int64(4), done.ProcessingResult.RecordsDeleted)

	var pdf bytes.Buffer
	require.NoError(t, f.svc.Certificate(ctx, csr, req.ID, &pdf))
	assert.True(t, bytes.HasPrefix(pdf.Bytes(), []byte("%PDF")))
}

func TestAutoProcessErasureWithoutAccountIssuesNoCertificate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req, err := f.svc.Create(ctx, csr, NewRequest{
		RequesterName:  "Sam Roe",
		RequesterEmail: "sam@example.com",
		RequestType:    TypeErasure,
	})
	require.NoError(t, err)
	require.Empty(t, req.PartyID)

	_, err = f.svc.StartAutoProcessing(ctx, csr, req.ID)
	require.NoError(t, err)
	f.dispatcher.drain(t)

	done, err := f.svc.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)
	assert.False(t, done.ProcessingResult.DataDeleted)
	assert.Empty(t, done.ProcessingResult.DeletionScope)
	assert.Zero(t, done.ProcessingResult.RecordsDeleted)
	assert.Empty(t, done.ProcessingResult.DeletionCertificate)
	assert.Contains(t, done.ProcessingResult.Notes, NoteNothingErased)

	err = f.svc.Certificate(ctx, csr, req.ID, io.Discard)
	assert.ErrorIs(t, err, ErrNoCertificate)
}

func TestAutoProcessRectificationAppliesCorrections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.create(t, TypeRectification)

	_, err := f.svc.StartAutoProcessing(ctx, csr, req.ID)
	require.NoError(t, err)
	f.dispatcher.drain(t)

	done, err := f.svc.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)
	assert.Equal(t, []string{"name"}, done.ProcessingResult.FieldsUpdated)
	assert.Equal(t, map[string]string{"name": "Jane Q. Doe"}, f.subjects.rectified)
	assert.False(t, *done.ProcessingResult.VerificationRequired)
}

func TestAutoProcessFailureRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.subjects.eraseErr = errors.New("preference store unavailable")
	req := f.create(t, TypeErasure)

	_, err := f.svc.StartAutoProcessing(ctx, csr, req.ID)
	require.NoError(t, err)
	f.dispatcher.drain(t)

	done, err := f.svc.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, done.Status)
	assert.Contains(t, done.FailureReason, "preference store unavailable")
	assert.NotNil(t, done.FailedAt)
	assert.Nil(t, done.CompletedAt)
	assert.Contains(t, f.events.events, webhook.DSARRejectedEvent)
}

func TestAutoProcessRequiresPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.create(t, TypeAccess)

	_, err := f.svc.Approve(ctx, csr, req.ID)
	require.NoError(t, err)
	before, _ := f.store.Get(ctx, req.ID)

	_, err = f.svc.StartAutoProcessing(ctx, csr, req.ID)
	require.ErrorIs(t, err, errs.ErrInvalidState)

	after, _ := f.store.Get(ctx, req.ID)
	assert.Equal(t, before, after)
	assert.Empty(t, f.dispatcher.types)
}

func TestConcurrentAutoProcessOnlyOneWins(t *testing.T) {
	f := newFixture(t)
	req := f.create(t, TypeAccess)

	const callers = 8
	var wg sync.WaitGroup
	results := make(chan error, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.StartAutoProcessing(context.Background(), csr, req.ID)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		assert.True(t, errors.Is(err, errs.ErrInvalidState) || errors.Is(err, errs.ErrConflict), err.Error())
	}
	assert.Equal(t, 1, wins)
	assert.Len(t, f.dispatcher.types, 1)
}

func TestDroppedJobLeavesRequestInProgress(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.full = true
	req := f.create(t, TypeAccess)

	v, err := f.svc.StartAutoProcessing(context.Background(), csr, req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, v.Status)

	done, err := f.svc.Complete(context.Background(), csr, req.ID, "handled manually")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)
	assert.False(t, done.ProcessingResult.Automated)
	assert.Equal(t, "handled manually", done.ProcessingResult.Notes)
}

func TestRejectAndTerminalGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.create(t, TypePortability)

	_, err := f.svc.Reject(ctx, csr, req.ID, " ")
	require.ErrorIs(t, err, errs.ErrValidation)

	rejected, err := f.svc.Reject(ctx, csr, req.ID, "identity could not be verified")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, rejected.Status)

	_, err = f.svc.UpdateStatus(ctx, csr, req.ID, StatusInProgress, "")
	assert.ErrorIs(t, err, errs.ErrInvalidState)
	_, err = f.svc.Complete(ctx, csr, req.ID, "")
	assert.ErrorIs(t, err, errs.ErrInvalidState)

	stored, _ := f.store.Get(ctx, req.ID)
	assert.Equal(t, StatusRejected, stored.Status)
	assert.Nil(t, stored.CompletedAt)
}

func TestPurgeOnlyTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := auth.UserContext{UserID: "admin-1", RoleName: auth.RoleAdmin}
	req := f.create(t, TypeAccess)

	assert.ErrorIs(t, f.svc.Purge(ctx, admin, req.ID), errs.ErrInvalidState)

	_, err := f.svc.Reject(ctx, csr, req.ID, "duplicate")
	require.NoError(t, err)
	require.NoError(t, f.svc.Purge(ctx, admin, req.ID))

	_, err = f.svc.Get(ctx, req.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestExportAccessAndExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.subjects.exportRows = []map[string]any{{"purpose": "marketing", "status": "granted"}}
	req := f.create(t, TypePortability)

	_, err := f.svc.Export(ctx, csr, req.ID)
	require.ErrorIs(t, err, errs.ErrInvalidState)

	_, err = f.svc.StartAutoProcessing(ctx, csr, req.ID)
	require.NoError(t, err)
	f.dispatcher.drain(t)

	doc, err := f.svc.Export(ctx, customer, req.ID)
	require.NoError(t, err)
	assert.Equal(t, FormatJSONCSV, doc.Format)
	assert.Equal(t, "purpose,status\nmarketing,granted\n", doc.CSV["consents"])

	stranger := auth.UserContext{UserID: "user-9", Email: "mallory@example.com", RoleName: auth.RoleCustomer}
	_, err = f.svc.Export(ctx, stranger, req.ID)
	assert.ErrorIs(t, err, errs.ErrForbidden)

	f.now = f.now.Add(8 * day)
	_, err = f.svc.Export(ctx, csr, req.ID)
	assert.ErrorIs(t, err, ErrExportExpired)
}

func TestSweepOverdueIsAdvisory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	open := f.create(t, TypeAccess)
	closed := f.create(t, TypeAccess)
	_, err := f.svc.Reject(ctx, csr, closed.ID, "withdrawn")
	require.NoError(t, err)

	f.now = f.now.Add(31 * day)
	count, err := f.svc.SweepOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	still, err := f.svc.Get(ctx, open.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, still.Status)
	assert.True(t, still.Overdue)
	assert.Equal(t, RiskCritical, still.RiskLevel)
}

func TestProcessIgnoresCancelledContext(t *testing.T) {
	f := newFixture(t)
	f.svc.opts.SimulatedDelay = true
	f.svc.delays[TypeAccess] = time.Hour
	req := f.create(t, TypeAccess)
	_, err := f.svc.Approve(context.Background(), csr, req.ID)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done, err := f.svc.Process(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)
}
