package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resume-screener/internal/events"
	"github.com/jonathan/resume-screener/internal/ingestion/pdftest"
	"github.com/jonathan/resume-screener/internal/skills"
)

func createJob(t *testing.T, env *testEnv, token, title, description string) string {
	t.Helper()
	rec := env.doJSON(t, http.MethodPost, "/jobs/create-job", token, map[string]string{
		"title":       title,
		"description": description,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decodeBody(t, rec)["job_id"].(string)
}

func TestCreateJob(t *testing.T) {
	env := newTestEnv(t)
	env.jobLLM.rules = []classifierRule{{marker: "backend", reply: `["Go", "PostgreSQL", "Kafka"]`}}
	token := env.login(t, "alice")

	rec := env.doJSON(t, http.MethodPost, "/jobs/create-job", token, map[string]string{
		"title":       "Backend Engineer",
		"description": "We need a backend engineer.",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "Job created and skills extracted successfully", body["message"])
	assert.Equal(t, []any{"go", "postgresql", "kafka"}, body["required_skills"])

	require.Len(t, env.store.jobs, 1)
	job := env.store.jobs[0]
	assert.Equal(t, body["job_id"], job.ID.String())
	assert.Equal(t, "alice", job.OwnerUsername)
	assert.Equal(t, "Backend Engineer", job.Title)
	assert.Equal(t, []string{events.JobCreated}, env.events.types())
}

func TestCreateJob_HTMLDescription(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "alice")

	createJob(t, env, token, "SRE", "<div><p>Run <b>Kubernetes</b></p><ul><li>Terraform</li></ul></div>")

	require.Len(t, env.store.jobs, 1)
	description := env.store.jobs[0].Description
	assert.NotContains(t, description, "<")
	assert.Contains(t, description, "Kubernetes")
	assert.Contains(t, description, "- Terraform")
}

func TestCreateJob_Validation(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "alice")

	tests := []struct {
		name string
		body any
	}{
		{name: "missing title", body: map[string]string{"description": "Go developer"}},
		{name: "missing description", body: map[string]string{"title": "Engineer"}},
		{name: "title too long", body: map[string]string{"title": strings.Repeat("x", 201), "description": "Go"}},
		{name: "markup only", body: map[string]string{"title": "Engineer", "description": "<div><br></div>"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.doJSON(t, http.MethodPost, "/jobs/create-job", token, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}

	req := authed(httptest.NewRequest(http.MethodPost, "/jobs/create-job", strings.NewReader("{")), token)
	rec := env.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body", decodeBody(t, rec)["error"])

	assert.Empty(t, env.store.jobs)
	assert.Equal(t, 0, env.jobLLM.callCount())
}

func TestCreateJob_ExtractionFailureStoresNothing(t *testing.T) {
	env := newTestEnv(t)
	env.jobLLM.rules = []classifierRule{{marker: "Go", err: errors.New("upstream 429")}}
	token := env.login(t, "alice")

	rec := env.doJSON(t, http.MethodPost, "/jobs/create-job", token, map[string]string{
		"title":       "Engineer",
		"description": "Go developer",
	})

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Empty(t, env.store.jobs)
	assert.Empty(t, env.events.types())
}

func TestListJobs(t *testing.T) {
	env := newTestEnv(t)
	alice := env.login(t, "alice")
	bob := env.login(t, "bob")

	createJob(t, env, alice, "First", "first job")
	createJob(t, env, alice, "Second", "second job")
	createJob(t, env, bob, "Other", "bob's job")

	rec := env.doJSON(t, http.MethodGet, "/jobs/list", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "alice", body["username"])
	jobs := body["jobs"].([]any)
	require.Len(t, jobs, 2)
	assert.Equal(t, "Second", jobs[0].(map[string]any)["title"])
	assert.Equal(t, "First", jobs[1].(map[string]any)["title"])
	assert.NotEmpty(t, jobs[0].(map[string]any)["_id"])
}

func TestMatchJob(t *testing.T) {
	env := newTestEnv(t)
	env.jobLLM.rules = []classifierRule{{marker: "fullstack", reply: `["Python", "SQL", "React"]`}}
	env.resumeLLM.rules = []classifierRule{
		{marker: "CANDIDATE-A", reply: `["python", "sql", "docker"]`},
		{marker: "CANDIDATE-B", reply: `["REACT"]`},
	}
	token := env.login(t, "alice")

	rec := env.upload(t, "/resumes/upload-multiple", "files", token,
		pdfFile("b.pdf", pdftest.Build("CANDIDATE-B")),
		pdfFile("a.pdf", pdftest.Build("CANDIDATE-A")),
	)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	// uploaded without extraction, so it scores zero
	uploadOne(t, env, token, "c.pdf", "CANDIDATE-C")

	jobID := createJob(t, env, token, "Fullstack", "fullstack developer")

	rec = env.doJSON(t, http.MethodPost, "/jobs/match/"+jobID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, jobID, body["job_id"])
	assert.Equal(t, "Fullstack", body["job_title"])

	matches := body["matches"].([]any)
	require.Len(t, matches, 3)

	first := matches[0].(map[string]any)
	assert.Equal(t, "a.pdf", first["filename"])
	assert.InDelta(t, 2.0/3.0, first["overlap_score"], 1e-9)
	assert.Equal(t, []any{"python", "sql"}, first["matched_skills"])

	second := matches[1].(map[string]any)
	assert.Equal(t, "b.pdf", second["filename"])
	assert.InDelta(t, 1.0/3.0, second["overlap_score"], 1e-9)
	assert.Equal(t, []any{"react"}, second["matched_skills"])

	third := matches[2].(map[string]any)
	assert.Equal(t, "c.pdf", third["filename"])
	assert.InDelta(t, 0.0, third["overlap_score"], 1e-9)
	assert.Equal(t, []any{}, third["matched_skills"])

	assert.Contains(t, env.events.types(), events.JobMatched)
}

func TestMatchJob_Ownership(t *testing.T) {
	env := newTestEnv(t)
	alice := env.login(t, "alice")
	bob := env.login(t, "bob")
	jobID := createJob(t, env, alice, "Engineer", "Go developer")

	rec := env.doJSON(t, http.MethodPost, "/jobs/match/"+jobID, bob, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Not authorized to access this job", decodeBody(t, rec)["error"])

	rec = env.doJSON(t, http.MethodPost, "/jobs/match/"+uuid.NewString(), alice, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Job not found", decodeBody(t, rec)["error"])

	rec = env.doJSON(t, http.MethodPost, "/jobs/match/123", alice, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMatchJob_NoResumes(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "alice")
	jobID := createJob(t, env, token, "Engineer", "Go developer")

	rec := env.doJSON(t, http.MethodPost, "/jobs/match/"+jobID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, decodeBody(t, rec)["matches"])
}

func TestMatchJob_EmptyRequiredSkills(t *testing.T) {
	env := newTestEnv(t)
	env.resumeLLM.rules = []classifierRule{{marker: "A", reply: `["go"]`}}
	token := env.login(t, "alice")
	env.upload(t, "/resumes/upload-multiple", "files", token, pdfFile("a.pdf", pdftest.Build("A")))
	jobID := createJob(t, env, token, "Vague", "no skills here")
	require.Equal(t, skills.SkillSet{}, env.store.jobs[0].RequiredSkills)

	rec := env.doJSON(t, http.MethodPost, "/jobs/match/"+jobID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	matches := decodeBody(t, rec)["matches"].([]any)
	require.Len(t, matches, 1)
	assert.InDelta(t, 0.0, matches[0].(map[string]any)["overlap_score"], 1e-9)
}
