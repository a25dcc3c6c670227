package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"academy/internal/auth"
	"academy/internal/authz"
	"academy/internal/domain/accesscontrol"
	"academy/internal/domain/admindashboard"
	"academy/internal/domain/coursereviews"
	"academy/internal/domain/identities"
	"academy/internal/domain/registrations"
	"academy/internal/domain/storage"
	"academy/internal/jobs"
	"academy/internal/provisioning"
	"academy/internal/ratelimiter"
	"academy/internal/realtime"
	"academy/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testApp struct {
	*application
	ids     *testutil.Identities
	roles   *testutil.Roles
	regs    *fakeRegistrations
	reviews *fakeReviews
	broker  *fakeBroker
	queue   *fakeQueue
	authn   *auth.JWTAuthenticator
}

func newTestApplication(t *testing.T, cfg config) *testApp {
	t.Helper()

	ids := testutil.NewIdentities()
	roles := testutil.NewRoles(ids)
	regs := &fakeRegistrations{byID: map[uuid.UUID]*registrations.Registration{}}
	reviews := &fakeReviews{}
	broker := &fakeBroker{}
	queue := &fakeQueue{}
	authn := auth.NewJWTAuthenticator("test-secret", "academy", "academy", time.Hour)
	checker := authz.NewRoleChecker(roles)
	logger := zap.NewNop().Sugar()

	if cfg.RateLimiter.RequestsPerTimeFrame == 0 {
		cfg.RateLimiter = ratelimiter.Config{RequestsPerTimeFrame: 100, TimeFrame: time.Minute, Enabled: true}
	}

	app := &application{
		config: cfg,
		logger: logger,
		store: &storage.Container{
			Identities:     ids,
			AccessControl:  roles,
			Registrations:  regs,
			CourseReviews:  reviews,
			AdminDashboard: admindashboard.NewService(regs, reviews, roles),
		},
		authenticator: authn,
		authz:         checker,
		provisioner: provisioning.NewService(provisioning.Config{
			Identities:    ids,
			Roles:         roles,
			Authenticator: authn,
			Checker:       checker,
			Logger:        logger,
		}),
		broker:      broker,
		queue:       queue,
		rateLimiter: ratelimiter.NewFixedWindowLimiter(cfg.RateLimiter.RequestsPerTimeFrame, cfg.RateLimiter.TimeFrame),
	}

	return &testApp{
		application: app,
		ids:         ids,
		roles:       roles,
		regs:        regs,
		reviews:     reviews,
		broker:      broker,
		queue:       queue,
		authn:       authn,
	}
}

// seedAdmin stores an identity holding role (none when empty) and returns it
// with a bearer token.
func (a *testApp) seedAdmin(t *testing.T, email string, role accesscontrol.Role) (*identities.Identity, string) {
	t.Helper()
	identity := a.ids.Seed(email, "password")
	if role != "" {
		a.roles.Grant(identity.ID, role)
	}
	token, err := a.authn.GenerateToken(identity.ID, identity.Email)
	require.NoError(t, err)
	return identity, token
}

func executeRequest(req *http.Request, mux http.Handler) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func newRequest(t *testing.T, method, path, token string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

var (
	_ registrations.Store = (*fakeRegistrations)(nil)
	_ coursereviews.Store = (*fakeReviews)(nil)
	_ broker              = (*fakeBroker)(nil)
	_ jobs.Enqueuer       = (*fakeQueue)(nil)
)

type fakeRegistrations struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*registrations.Registration
	seq  int
}

func (f *fakeRegistrations) Create(_ context.Context, r *registrations.Registration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	r.ID = uuid.New()
	r.Reference = "REG-TEST" + string(rune('0'+f.seq))
	r.Status = registrations.StatusPending
	r.CreatedAt = time.Now()
	r.UpdatedAt = r.CreatedAt
	cp := *r
	f.byID[r.ID] = &cp
	return nil
}

func (f *fakeRegistrations) GetByID(_ context.Context, id uuid.UUID) (*registrations.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byID[id]
	if !ok {
		return nil, registrations.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRegistrations) List(_ context.Context, status registrations.Status, limit, offset int) ([]registrations.Registration, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []registrations.Registration
	for _, r := range f.byID {
		if status == "" || r.Status == status {
			all = append(all, *r)
		}
	}
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := min(offset+limit, total)
	return all[offset:end], total, nil
}

func (f *fakeRegistrations) UpdateStatus(_ context.Context, id uuid.UUID, status registrations.Status) (*registrations.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byID[id]
	if !ok {
		return nil, registrations.ErrNotFound
	}
	r.Status = status
	cp := *r
	return &cp, nil
}

func (f *fakeRegistrations) Stats(_ context.Context) (*registrations.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var s registrations.Stats
	courses := map[string]int64{}
	packages := map[registrations.Package]int64{}
	for _, r := range f.byID {
		s.Total++
		switch r.Status {
		case registrations.StatusPending:
			s.Pending++
		case registrations.StatusConfirmed:
			s.Confirmed++
		case registrations.StatusShipped:
			s.Shipped++
		case registrations.StatusDelivered:
			s.Delivered++
		case registrations.StatusCancelled:
			s.Cancelled++
		}
		s.Revenue += r.TotalPrice
		courses[r.CourseSlug]++
		packages[r.PackageType]++
	}
	for slug, n := range courses {
		s.CourseBreakdown = append(s.CourseBreakdown, registrations.CourseCount{CourseSlug: slug, Count: n})
	}
	sort.Slice(s.CourseBreakdown, func(i, j int) bool { return s.CourseBreakdown[i].Count > s.CourseBreakdown[j].Count })
	for pkg, n := range packages {
		s.PackageBreakdown = append(s.PackageBreakdown, registrations.PackageCount{PackageType: pkg, Count: n})
	}
	return &s, nil
}

type fakeReviews struct {
	mu      sync.Mutex
	reviews []coursereviews.Review
}

func (f *fakeReviews) Create(_ context.Context, r *coursereviews.Review) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r.ID = uuid.New()
	r.CreatedAt = time.Now()
	f.reviews = append(f.reviews, *r)
	return nil
}

func (f *fakeReviews) ListByCourse(_ context.Context, slug string, limit int) ([]coursereviews.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []coursereviews.Review
	for _, r := range f.reviews {
		if r.CourseSlug == slug && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReviews) Stats(_ context.Context, slug string) (*coursereviews.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats(slug), nil
}

func (f *fakeReviews) Overall(_ context.Context) (*coursereviews.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats(""), nil
}

func (f *fakeReviews) stats(slug string) *coursereviews.Stats {
	var s coursereviews.Stats
	sum := 0
	for _, r := range f.reviews {
		if slug == "" || r.CourseSlug == slug {
			s.Total++
			sum += r.Rating
		}
	}
	if s.Total > 0 {
		s.Average = float64(sum) / float64(s.Total)
	}
	return &s
}

type published struct {
	channel   string
	eventType string
	payload   any
}

type fakeBroker struct {
	mu        sync.Mutex
	published []published
	pending   []realtime.Event
}

func (f *fakeBroker) Publish(_ context.Context, channel, eventType string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, published{channel, eventType, payload})
	return nil
}

// Subscribe delivers the pending events and then closes the stream.
func (f *fakeBroker) Subscribe(_ context.Context, channel string) (<-chan realtime.Event, func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan realtime.Event, len(f.pending))
	for _, ev := range f.pending {
		if ev.Channel == channel {
			ch <- ev
		}
	}
	close(ch)
	return ch, func() {}, nil
}

type fakeQueue struct {
	mu       sync.Mutex
	payloads []jobs.RegistrationNotifyPayload
	err      error
}

func (f *fakeQueue) EnqueueRegistrationNotify(_ context.Context, p jobs.RegistrationNotifyPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, p)
	return nil
}
