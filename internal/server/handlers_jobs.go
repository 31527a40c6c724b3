package server

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/resume-screener/internal/db"
	"github.com/jonathan/resume-screener/internal/events"
	"github.com/jonathan/resume-screener/internal/ingestion"
	"github.com/jonathan/resume-screener/internal/ranking"
	"github.com/jonathan/resume-screener/internal/skills"
)

// CreateJobRequest is the body of POST /jobs/create-job.
type CreateJobRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"required"`
}

type jobView struct {
	ID             string          `json:"_id"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	RequiredSkills skills.SkillSet `json:"required_skills"`
	UserID         string          `json:"user_id"`
	Username       string          `json:"username"`
	CreatedAt      time.Time       `json:"created_at"`
}

func newJobView(j *db.Job) jobView {
	return jobView{
		ID:             j.ID.String(),
		Title:          j.Title,
		Description:    j.Description,
		RequiredSkills: j.RequiredSkills,
		UserID:         j.OwnerID.String(),
		Username:       j.OwnerUsername,
		CreatedAt:      j.CreatedAt,
	}
}

// handleCreateJob extracts the required skills from the description and stores the job.
// Nothing is stored when extraction fails.
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	p := principal(r)

	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, r, &ErrValidation{Message: "Invalid request body"})
		return
	}
	if err := s.validator.Struct(req); err != nil {
		s.fail(w, r, err)
		return
	}

	description, err := ingestion.NormalizeDescription(req.Description)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if trimmedEmpty(description) {
		s.fail(w, r, &ErrValidation{Field: "Description", Message: "required"})
		return
	}

	required, err := s.jobSkills.Extract(r.Context(), description)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	job := &db.Job{
		OwnerID:        p.ID,
		OwnerUsername:  p.Username,
		Title:          req.Title,
		Description:    description,
		RequiredSkills: required,
	}
	if err := s.store.CreateJob(r.Context(), job); err != nil {
		s.fail(w, r, err)
		return
	}

	s.logger.Info("job created",
		zap.String("job_id", job.ID.String()),
		zap.String("username", p.Username),
		zap.Int("required_skills", job.RequiredSkills.Len()),
	)
	s.publish(r.Context(), events.New(events.JobCreated, p.Username, job.ID.String(), map[string]any{
		"title":           job.Title,
		"required_skills": job.RequiredSkills,
	}))

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"message":         "Job created and skills extracted successfully",
		"job_id":          job.ID.String(),
		"required_skills": job.RequiredSkills,
	})
}

// handleListJobs lists the caller's jobs, newest first.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	jobs, err := s.store.ListJobsByOwner(r.Context(), p.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	views := make([]jobView, 0, len(jobs))
	for i := range jobs {
		views = append(views, newJobView(&jobs[i]))
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"username": p.Username,
		"jobs":     views,
	})
}

// handleMatchJob ranks the caller's resumes against one of the caller's jobs.
func (s *Server) handleMatchJob(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	id, err := pathID(r, "job_id", "job")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	job, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if job == nil {
		s.fail(w, r, &ErrNotFound{Resource: "Job"})
		return
	}
	if job.OwnerID != p.ID {
		s.fail(w, r, &ErrForbidden{Action: "access", Resource: "job"})
		return
	}

	resumes, err := s.store.ListResumesByOwner(r.Context(), p.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	candidates := make([]ranking.Candidate, 0, len(resumes))
	for _, resume := range resumes {
		candidates = append(candidates, ranking.Candidate{
			ResumeID: resume.ID.String(),
			Filename: resume.Filename,
			Skills:   resume.Skills,
		})
	}
	matches := ranking.Rank(job.RequiredSkills, candidates)

	s.publish(r.Context(), events.New(events.JobMatched, p.Username, job.ID.String(), map[string]any{
		"candidates": len(matches),
	}))

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"job_id":    job.ID.String(),
		"job_title": job.Title,
		"matches":   matches,
	})
}
