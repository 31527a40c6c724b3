package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/resume-screener/internal/archive"
	"github.com/jonathan/resume-screener/internal/db"
	"github.com/jonathan/resume-screener/internal/events"
	"github.com/jonathan/resume-screener/internal/ingestion"
	"github.com/jonathan/resume-screener/internal/server/middleware"
	"github.com/jonathan/resume-screener/internal/skills"
)

// resumeView is the JSON form of a stored resume.
type resumeView struct {
	ID          string          `json:"_id"`
	Filename    string          `json:"filename"`
	ContentType string          `json:"content_type"`
	ResumeText  string          `json:"resume_text"`
	UserID      string          `json:"user_id"`
	Username    string          `json:"username"`
	Skills      skills.SkillSet `json:"skills"`
	CreatedAt   time.Time       `json:"created_at"`
}

func newResumeView(r *db.Resume) resumeView {
	return resumeView{
		ID:          r.ID.String(),
		Filename:    r.Filename,
		ContentType: r.ContentType,
		ResumeText:  r.Text,
		UserID:      r.OwnerID.String(),
		Username:    r.OwnerUsername,
		Skills:      r.Skills,
		CreatedAt:   r.CreatedAt,
	}
}

// uploadedResume describes one file of a batch upload.
type uploadedResume struct {
	Filename        string          `json:"filename"`
	ResumeID        string          `json:"resume_id"`
	ExtractedSkills skills.SkillSet `json:"extracted_skills"`
}

// handleUploadResume stores a single PDF. Skills are extracted only when
// resumes.extract-on-upload is set.
func (s *Server) handleUploadResume(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if err := s.parseMultipart(w, r); err != nil {
		s.fail(w, r, err)
		return
	}

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		s.fail(w, r, &ErrValidation{Field: "file", Message: "required"})
		return
	}

	resume, err := s.ingestResume(r.Context(), p, files[0], s.resumes.ExtractOnUpload)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := map[string]any{
		"message":        "Resume uploaded and processed successfully",
		"resume_id":      resume.ID.String(),
		"linked_to_user": p.Username,
	}
	if resume.HasSkills() {
		resp["extracted_skills"] = resume.Skills
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// handleUploadMultiple stores several PDFs in order, extracting skills for each. The
// first failing file ends the request; files before it stay stored.
func (s *Server) handleUploadMultiple(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if err := s.parseMultipart(w, r); err != nil {
		s.fail(w, r, err)
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		s.fail(w, r, &ErrValidation{Field: "files", Message: "required"})
		return
	}

	uploaded := make([]uploadedResume, 0, len(files))
	for _, fh := range files {
		s.extendWriteDeadline(w)
		resume, err := s.ingestResume(r.Context(), p, fh, true)
		if err != nil {
			s.logger.Warn("batch upload stopped",
				zap.String("username", p.Username),
				zap.String("filename", fh.Filename),
				zap.Int("stored", len(uploaded)),
				zap.Error(err),
			)
			s.fail(w, r, &ErrFileFailed{Filename: fh.Filename, Err: err})
			return
		}
		uploaded = append(uploaded, uploadedResume{
			Filename:        resume.Filename,
			ResumeID:        resume.ID.String(),
			ExtractedSkills: resume.Skills,
		})
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"message":        "Files uploaded and processed successfully",
		"resumes":        uploaded,
		"linked_to_user": p.Username,
	})
}

func (s *Server) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	maxBytes := s.resumes.MaxUploadMB << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &ErrValidation{Message: fmt.Sprintf("Upload exceeds %d MB", s.resumes.MaxUploadMB)}
		}
		return &ErrValidation{Message: "Invalid multipart form"}
	}
	return nil
}

// ingestResume validates, reads and stores one uploaded file. With extract set, skills are
// extracted before the record is written, so a failed extraction stores nothing.
func (s *Server) ingestResume(ctx context.Context, p *middleware.Principal, fh *multipart.FileHeader, extract bool) (*db.Resume, error) {
	contentType := fh.Header.Get("Content-Type")
	if err := ingestion.ValidateContentType(fh.Filename, contentType); err != nil {
		return nil, err
	}

	data, err := readUpload(fh)
	if err != nil {
		return nil, &ingestion.ReadError{Filename: fh.Filename, Cause: err}
	}

	text, err := ingestion.ExtractPDFText(fh.Filename, data)
	if err != nil {
		return nil, err
	}

	resume := &db.Resume{
		ID:            uuid.New(),
		OwnerID:       p.ID,
		OwnerUsername: p.Username,
		Filename:      fh.Filename,
		ContentType:   ingestion.PDFContentType,
		Text:          text,
	}

	if extract {
		set, err := s.resumeSkills.Extract(ctx, text)
		if err != nil {
			return nil, err
		}
		resume.Skills = set
	}

	if s.archive != nil {
		key := archive.ResumeKey(p.ID, resume.ID)
		if err := s.archive.Put(ctx, key, data, ingestion.PDFContentType); err != nil {
			s.logger.Warn("failed to archive upload", zap.String("key", key), zap.Error(err))
		} else {
			resume.ObjectKey = &key
		}
	}

	if err := s.store.CreateResume(ctx, resume); err != nil {
		if resume.ObjectKey != nil {
			s.removeArchived(ctx, *resume.ObjectKey)
		}
		return nil, err
	}

	s.publish(ctx, events.New(events.ResumeUploaded, p.Username, resume.ID.String(), map[string]any{
		"filename": resume.Filename,
	}))
	if resume.HasSkills() {
		s.publish(ctx, events.New(events.ResumeSkillsExtracted, p.Username, resume.ID.String(), map[string]any{
			"skills": resume.Skills,
		}))
	}
	return resume, nil
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (s *Server) removeArchived(ctx context.Context, key string) {
	if s.archive == nil {
		return
	}
	if err := s.archive.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.logger.Warn("failed to remove archived upload", zap.String("key", key), zap.Error(err))
	}
}

// handleMyResumes lists the caller's resumes.
func (s *Server) handleMyResumes(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	resumes, err := s.store.ListResumesByOwner(r.Context(), p.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	views := make([]resumeView, 0, len(resumes))
	for i := range resumes {
		views = append(views, newResumeView(&resumes[i]))
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"username": p.Username,
		"resumes":  views,
	})
}

// handleDeleteResume deletes one of the caller's resumes.
func (s *Server) handleDeleteResume(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	resume, err := s.ownedResume(r, p, "delete")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.store.DeleteResume(r.Context(), resume.ID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			err = &ErrNotFound{Resource: "Resume"}
		}
		s.fail(w, r, err)
		return
	}
	if resume.ObjectKey != nil {
		s.removeArchived(r.Context(), *resume.ObjectKey)
	}

	s.publish(r.Context(), events.New(events.ResumeDeleted, p.Username, resume.ID.String(), nil))
	s.jsonResponse(w, http.StatusOK, map[string]string{"message": "Resume deleted successfully"})
}

// handleExtractSkills runs extraction for one resume and stores the result.
func (s *Server) handleExtractSkills(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	resume, err := s.ownedResume(r, p, "access")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if trimmedEmpty(resume.Text) {
		s.fail(w, r, &ErrValidation{Message: "Resume text is empty or missing"})
		return
	}

	set, err := s.extractAndStore(r.Context(), p, resume)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"message":   "Skills extracted successfully",
		"resume_id": resume.ID.String(),
		"skills":    set,
	})
}

// handleExtractSkillsBulk re-extracts skills for every resume of the caller that has
// text. Individual failures are counted; a missing API key fails the whole request.
func (s *Server) handleExtractSkillsBulk(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	resumes, err := s.store.ListResumesByOwner(r.Context(), p.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var updated, failed atomic.Int64
	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(s.resumes.BulkConcurrency)

	for i := range resumes {
		resume := &resumes[i]
		if trimmedEmpty(resume.Text) {
			continue
		}
		g.Go(func() error {
			s.extendWriteDeadline(w)
			if _, err := s.extractAndStore(ctx, p, resume); err != nil {
				var extractionErr *skills.ExtractionError
				if errors.As(err, &extractionErr) && extractionErr.MissingCredential() {
					return err
				}
				failed.Add(1)
				s.logger.Warn("bulk extraction failed for resume",
					zap.String("resume_id", resume.ID.String()),
					zap.Error(err),
				)
				return nil
			}
			updated.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.fail(w, r, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"message":         "Bulk skill extraction completed",
		"updated_resumes": updated.Load(),
		"failed_resumes":  failed.Load(),
	})
}

func (s *Server) extractAndStore(ctx context.Context, p *middleware.Principal, resume *db.Resume) (skills.SkillSet, error) {
	set, err := s.resumeSkills.Extract(ctx, resume.Text)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateResumeSkills(ctx, resume.ID, set); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, &ErrNotFound{Resource: "Resume"}
		}
		return nil, err
	}

	s.publish(ctx, events.New(events.ResumeSkillsExtracted, p.Username, resume.ID.String(), map[string]any{
		"skills": set,
	}))
	return set, nil
}

// ownedResume loads the resume named by the {id} path value and checks that p owns it.
func (s *Server) ownedResume(r *http.Request, p *middleware.Principal, action string) (*db.Resume, error) {
	id, err := pathID(r, "id", "resume")
	if err != nil {
		return nil, err
	}
	resume, err := s.store.GetResume(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if resume == nil {
		return nil, &ErrNotFound{Resource: "Resume"}
	}
	if resume.OwnerID != p.ID {
		return nil, &ErrForbidden{Action: action, Resource: "resume"}
	}
	return resume, nil
}

// pathID parses a UUID path value.
func pathID(r *http.Request, name, resource string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, &ErrValidation{Message: fmt.Sprintf("Invalid %s id", resource)}
	}
	return id, nil
}

// principal returns the authenticated caller. Routes using it are behind AuthMiddleware.
func principal(r *http.Request) *middleware.Principal {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		panic("server: handler reached without authentication")
	}
	return p
}
