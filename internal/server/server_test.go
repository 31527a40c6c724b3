package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jonathan/resume-screener/internal/config"
	"github.com/jonathan/resume-screener/internal/db"
	"github.com/jonathan/resume-screener/internal/events"
	"github.com/jonathan/resume-screener/internal/ingestion/pdftest"
	"github.com/jonathan/resume-screener/internal/skills"
)

// memStore is an in-memory Store.
type memStore struct {
	mu      sync.Mutex
	users   map[string]*db.User
	resumes []*db.Resume
	jobs    []*db.Job
	clock   time.Time

	failCreateResume error
}

func newMemStore() *memStore {
	return &memStore{
		users: make(map[string]*db.User),
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memStore) CreateUser(_ context.Context, username, passwordHash string, email *string) (*db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[username]; ok {
		return nil, db.ErrDuplicate
	}
	u := &db.User{ID: uuid.New(), Username: username, Email: email, PasswordHash: passwordHash, CreatedAt: m.tick()}
	m.users[username] = u
	return u, nil
}

func (m *memStore) GetUserByUsername(_ context.Context, username string) (*db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) deleteUser(username string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, username)
}

func (m *memStore) CreateResume(_ context.Context, r *db.Resume) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreateResume != nil {
		return m.failCreateResume
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	r.CreatedAt = m.tick()
	cp := *r
	m.resumes = append(m.resumes, &cp)
	return nil
}

func (m *memStore) GetResume(_ context.Context, id uuid.UUID) (*db.Resume, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.resumes {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListResumesByOwner(_ context.Context, ownerID uuid.UUID) ([]db.Resume, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []db.Resume
	for _, r := range m.resumes {
		if r.OwnerID == ownerID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memStore) UpdateResumeSkills(_ context.Context, id uuid.UUID, set skills.SkillSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.resumes {
		if r.ID == id {
			if set == nil {
				set = skills.NewSkillSet()
			}
			r.Skills = set
			return nil
		}
	}
	return db.ErrNotFound
}

func (m *memStore) DeleteResume(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.resumes {
		if r.ID == id {
			m.resumes = slices.Delete(m.resumes, i, i+1)
			return nil
		}
	}
	return db.ErrNotFound
}

func (m *memStore) CreateJob(_ context.Context, j *db.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.RequiredSkills == nil {
		j.RequiredSkills = skills.NewSkillSet()
	}
	j.CreatedAt = m.tick()
	cp := *j
	m.jobs = append(m.jobs, &cp)
	return nil
}

func (m *memStore) GetJob(_ context.Context, id uuid.UUID) (*db.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.ID == id {
			cp := *j
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListJobsByOwner(_ context.Context, ownerID uuid.UUID) ([]db.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []db.Job
	for i := len(m.jobs) - 1; i >= 0; i-- {
		if m.jobs[i].OwnerID == ownerID {
			out = append(out, *m.jobs[i])
		}
	}
	return out, nil
}

func (m *memStore) resumeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.resumes)
}

// scriptedClassifier answers by the first rule whose marker appears in the text.
type scriptedClassifier struct {
	mu    sync.Mutex
	rules []classifierRule
	calls int
}

type classifierRule struct {
	marker string
	reply  string
	err    error
}

func (c *scriptedClassifier) Classify(_ context.Context, _, text string) (string, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	for _, rule := range c.rules {
		if strings.Contains(text, rule.marker) {
			return rule.reply, rule.err
		}
	}
	return "[]", nil
}

func (c *scriptedClassifier) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

// memArchive is an in-memory archive.Archive.
type memArchive struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMemArchive() *memArchive {
	return &memArchive{objects: make(map[string][]byte)}
}

func (a *memArchive) Put(_ context.Context, key string, data []byte, _ string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.putErr != nil {
		return a.putErr
	}
	a.objects[key] = data
	return nil
}

func (a *memArchive) Delete(_ context.Context, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.objects, key)
	return nil
}

func (a *memArchive) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.objects)
}

type testEnv struct {
	server    *Server
	handler   http.Handler
	store     *memStore
	resumeLLM *scriptedClassifier
	jobLLM    *scriptedClassifier
	events    *recordingPublisher
	archive   *memArchive
}

type testOption func(*config.AppConfig, *Deps)

func withRateLimit() testOption {
	return func(cfg *config.AppConfig, _ *Deps) {
		cfg.RateLimit = config.RateLimitConfig{
			Enabled:      true,
			DefaultLimit: 1000,
			LLMLimit:     30,
			Window:       time.Minute,
		}
	}
}

func withExtractOnUpload() testOption {
	return func(cfg *config.AppConfig, _ *Deps) {
		cfg.Resumes.ExtractOnUpload = true
	}
}

func withoutArchive() testOption {
	return func(_ *config.AppConfig, deps *Deps) {
		deps.Archive = nil
	}
}

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		Server: config.ServerConfig{Port: 0, CORSOrigins: []string{"*"}},
		Auth: config.AuthConfig{
			JWTSecret:  "test-secret-key-for-jwt-signing-minimum-32-bytes",
			TokenTTL:   2 * time.Hour,
			BcryptCost: bcrypt.MinCost,
		},
		LLM: config.LLMConfig{Provider: "openai", Timeout: 5 * time.Second},
		Resumes: config.ResumesConfig{
			BulkConcurrency: 2,
			MaxUploadMB:     5,
		},
	}
}

func newTestEnv(t *testing.T, opts ...testOption) *testEnv {
	t.Helper()

	env := &testEnv{
		store:     newMemStore(),
		resumeLLM: &scriptedClassifier{},
		jobLLM:    &scriptedClassifier{},
		events:    &recordingPublisher{},
		archive:   newMemArchive(),
	}
	cfg := testConfig()
	deps := Deps{
		Store:           env.store,
		ResumeExtractor: skills.NewExtractor(env.resumeLLM, skills.ExtractorConfig{Instruction: "resume"}),
		JobExtractor:    skills.NewExtractor(env.jobLLM, skills.ExtractorConfig{Instruction: "job"}),
		Archive:         env.archive,
		Events:          env.events,
	}
	for _, opt := range opts {
		opt(cfg, &deps)
	}

	srv, err := New(cfg, deps)
	require.NoError(t, err)
	t.Cleanup(srv.rateLimiter.Stop)

	env.server = srv
	env.handler = srv.Handler()
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) doJSON(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.do(req)
}

// login registers username and returns a bearer token for it.
func (e *testEnv) login(t *testing.T, username string) string {
	t.Helper()
	rec := e.doJSON(t, http.MethodPost, "/users/register", "", map[string]string{
		"username": username,
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	token, err := e.server.jwtService.GenerateToken(username)
	require.NoError(t, err)
	return token
}

type uploadFile struct {
	name        string
	contentType string
	data        []byte
}

func pdfFile(name string, data []byte) uploadFile {
	return uploadFile{name: name, contentType: "application/pdf", data: data}
}

func (e *testEnv) upload(t *testing.T, path, field, token string, files ...uploadFile) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(uploadRequest(t, path, field, token, files...))
}

func uploadRequest(t *testing.T, path, field, token string, files ...uploadFile) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+f.name+`"`)
		h.Set("Content-Type", f.contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(testConfig(), Deps{})
	assert.Error(t, err)

	_, err = New(testConfig(), Deps{Store: newMemStore()})
	assert.Error(t, err)

	cfg := testConfig()
	cfg.Auth.JWTSecret = ""
	_, err = New(cfg, Deps{
		Store:           newMemStore(),
		ResumeExtractor: skills.NewExtractor(&scriptedClassifier{}, skills.ExtractorConfig{}),
		JobExtractor:    skills.NewExtractor(&scriptedClassifier{}, skills.ExtractorConfig{}),
	})
	assert.Error(t, err)
}

func TestHandleRootAndHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to the AI Resume Screener!", decodeBody(t, rec)["message"])

	rec = env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])

	rec = env.do(httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/jobs/list", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := env.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestCORS_RestrictedOrigins(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.AppConfig, _ *Deps) {
		cfg.Server.CORSOrigins = []string{"https://app.example.com"}
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := env.do(req)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = env.do(req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit_UploadResumeUsesLLMBudgetWhenExtracting(t *testing.T) {
	tests := []struct {
		name      string
		opts      []testOption
		wantLimit string
	}{
		{name: "store only", opts: []testOption{withRateLimit()}, wantLimit: "1000"},
		{name: "extract on upload", opts: []testOption{withRateLimit(), withExtractOnUpload()}, wantLimit: "30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.opts...)
			env.resumeLLM.rules = []classifierRule{{marker: "resume", reply: `["go"]`}}
			token := env.login(t, "alice")

			rec := env.upload(t, "/resumes/upload-resume", "file", token, pdfFile("cv.pdf", pdftest.Build("resume")))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantLimit, rec.Header().Get("X-RateLimit-Limit"))
		})
	}
}

func TestRateLimit_Register(t *testing.T) {
	env := newTestEnv(t, withRateLimit())

	var codes []int
	for i := 0; i < 4; i++ {
		rec := env.doJSON(t, http.MethodPost, "/users/register", "", map[string]string{
			"username": "user" + string(rune('a'+i)),
			"password": "correct-horse",
		})
		codes = append(codes, rec.Code)
		if rec.Code == http.StatusTooManyRequests {
			assert.NotEmpty(t, rec.Header().Get("Retry-After"))
			assert.Equal(t, "Rate limit exceeded. Please try again later.", decodeBody(t, rec)["error"])
		} else {
			assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Limit"))
		}
	}
	assert.Equal(t, []int{200, 200, 200, 429}, codes)

	// health is never limited
	for i := 0; i < 10; i++ {
		rec := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestPublish_IgnoresBrokerErrors(t *testing.T) {
	env := newTestEnv(t)
	env.server.events = failingPublisher{}

	assert.NotPanics(t, func() {
		env.server.publish(context.Background(), events.New(events.JobCreated, "alice", "1", nil))
	})
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, events.Event) error { return errors.New("broker down") }
func (failingPublisher) Close() error { return nil }
