package server

import (
	"context"

	"github.com/google/uuid"

	"github.com/jonathan/resume-screener/internal/db"
	"github.com/jonathan/resume-screener/internal/skills"
)

// Store is the persistence the handlers need. *db.DB implements it.
type Store interface {
	CreateUser(ctx context.Context, username, passwordHash string, email *string) (*db.User, error)
	GetUserByUsername(ctx context.Context, username string) (*db.User, error)

	CreateResume(ctx context.Context, r *db.Resume) error
	GetResume(ctx context.Context, id uuid.UUID) (*db.Resume, error)
	ListResumesByOwner(ctx context.Context, ownerID uuid.UUID) ([]db.Resume, error)
	UpdateResumeSkills(ctx context.Context, id uuid.UUID, set skills.SkillSet) error
	DeleteResume(ctx context.Context, id uuid.UUID) error

	CreateJob(ctx context.Context, j *db.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*db.Job, error)
	ListJobsByOwner(ctx context.Context, ownerID uuid.UUID) ([]db.Job, error)
}

var _ Store = (*db.DB)(nil)

// SkillExtractor turns free text into a skill set. *skills.Extractor implements it.
type SkillExtractor interface {
	Extract(ctx context.Context, text string) (skills.SkillSet, error)
}

var _ SkillExtractor = (*skills.Extractor)(nil)
