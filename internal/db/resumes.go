package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonathan/resume-screener/internal/skills"
)

const resumeColumns = `id, owner_id, owner_username, filename, content_type, text, skills, object_key, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResume(row rowScanner) (*Resume, error) {
	var r Resume
	var skillsJSON []byte
	if err := row.Scan(&r.ID, &r.OwnerID, &r.OwnerUsername, &r.Filename, &r.ContentType,
		&r.Text, &skillsJSON, &r.ObjectKey, &r.CreatedAt); err != nil {
		return nil, err
	}
	set, err := decodeSkills(skillsJSON)
	if err != nil {
		return nil, err
	}
	r.Skills = set
	return &r, nil
}

// CreateResume inserts a resume. A zero ID is replaced with a new one; callers that need
// the ID before insert (for the archive key) set it themselves.
func (db *DB) CreateResume(ctx context.Context, r *Resume) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	skillsJSON, err := encodeSkills(r.Skills)
	if err != nil {
		return err
	}

	err = db.pool.QueryRow(ctx,
		`INSERT INTO resumes (id, owner_id, owner_username, filename, content_type, text, skills, object_key)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at`,
		r.ID, r.OwnerID, r.OwnerUsername, r.Filename, r.ContentType, r.Text, skillsJSON, r.ObjectKey,
	).Scan(&r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create resume: %w", err)
	}
	return nil
}

// GetResume returns a resume by ID, or nil if it does not exist.
func (db *DB) GetResume(ctx context.Context, id uuid.UUID) (*Resume, error) {
	r, err := scanResume(db.pool.QueryRow(ctx,
		`SELECT `+resumeColumns+` FROM resumes WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get resume: %w", err)
	}
	return r, nil
}

// ListResumesByOwner returns a user's resumes, oldest first.
func (db *DB) ListResumesByOwner(ctx context.Context, ownerID uuid.UUID) ([]Resume, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+resumeColumns+` FROM resumes WHERE owner_id = $1 ORDER BY created_at, id`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list resumes: %w", err)
	}
	defer rows.Close()

	resumes := make([]Resume, 0)
	for rows.Next() {
		r, err := scanResume(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan resume: %w", err)
		}
		resumes = append(resumes, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate resumes: %w", err)
	}
	return resumes, nil
}

// UpdateResumeSkills replaces the extracted skills of a resume.
func (db *DB) UpdateResumeSkills(ctx context.Context, id uuid.UUID, set skills.SkillSet) error {
	if set == nil {
		set = skills.NewSkillSet()
	}
	skillsJSON, err := encodeSkills(set)
	if err != nil {
		return err
	}

	result, err := db.pool.Exec(ctx, `UPDATE resumes SET skills = $1 WHERE id = $2`, skillsJSON, id)
	if err != nil {
		return fmt.Errorf("failed to update resume skills: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("resume %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteResume removes a resume.
func (db *DB) DeleteResume(ctx context.Context, id uuid.UUID) error {
	result, err := db.pool.Exec(ctx, `DELETE FROM resumes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete resume: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("resume %s: %w", id, ErrNotFound)
	}
	return nil
}
