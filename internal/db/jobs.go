package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonathan/resume-screener/internal/skills"
)

const jobColumns = `id, owner_id, owner_username, title, description, required_skills, created_at`

func scanJob(row rowScanner) (*Job, error) {
	var j Job
	var skillsJSON []byte
	if err := row.Scan(&j.ID, &j.OwnerID, &j.OwnerUsername, &j.Title, &j.Description,
		&skillsJSON, &j.CreatedAt); err != nil {
		return nil, err
	}
	set, err := decodeSkills(skillsJSON)
	if err != nil {
		return nil, err
	}
	if set == nil {
		set = skills.NewSkillSet()
	}
	j.RequiredSkills = set
	return &j, nil
}

// CreateJob inserts a job posting. Jobs are immutable once created.
func (db *DB) CreateJob(ctx context.Context, j *Job) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.RequiredSkills == nil {
		j.RequiredSkills = skills.NewSkillSet()
	}
	skillsJSON, err := encodeSkills(j.RequiredSkills)
	if err != nil {
		return err
	}

	err = db.pool.QueryRow(ctx,
		`INSERT INTO jobs (id, owner_id, owner_username, title, description, required_skills)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		j.ID, j.OwnerID, j.OwnerUsername, j.Title, j.Description, skillsJSON,
	).Scan(&j.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// GetJob returns a job by ID, or nil if it does not exist.
func (db *DB) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	j, err := scanJob(db.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return j, nil
}

// ListJobsByOwner returns a user's jobs, newest first.
func (db *DB) ListJobsByOwner(ctx context.Context, ownerID uuid.UUID) ([]Job, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE owner_id = $1 ORDER BY created_at DESC, id`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]Job, 0)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, *j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate jobs: %w", err)
	}
	return jobs, nil
}
