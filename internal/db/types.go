package db

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/resume-screener/internal/skills"
)

// User is a registered account.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        *string   `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Resume is an uploaded PDF and its extracted text. Skills is nil until extraction has
// run; an empty, non-nil set means extraction ran and found nothing.
type Resume struct {
	ID            uuid.UUID       `json:"id"`
	OwnerID       uuid.UUID       `json:"owner_id"`
	OwnerUsername string          `json:"owner_username"`
	Filename      string          `json:"filename"`
	ContentType   string          `json:"content_type"`
	Text          string          `json:"text"`
	Skills        skills.SkillSet `json:"skills"`
	ObjectKey     *string         `json:"object_key,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// HasSkills reports whether skill extraction has run for the resume.
func (r *Resume) HasSkills() bool {
	return r.Skills != nil
}

// Job is a job posting with the skills extracted from its description.
type Job struct {
	ID             uuid.UUID       `json:"id"`
	OwnerID        uuid.UUID       `json:"owner_id"`
	OwnerUsername  string          `json:"owner_username"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	RequiredSkills skills.SkillSet `json:"required_skills"`
	CreatedAt      time.Time       `json:"created_at"`
}

// encodeSkills returns the JSONB value for a skill set; nil stays SQL NULL.
func encodeSkills(set skills.SkillSet) ([]byte, error) {
	if set == nil {
		return nil, nil
	}
	data, err := json.Marshal(set)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal skills: %w", err)
	}
	return data, nil
}

// decodeSkills parses a JSONB skills column. NULL decodes to nil.
func decodeSkills(data []byte) (skills.SkillSet, error) {
	if data == nil {
		return nil, nil
	}
	var set skills.SkillSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to unmarshal skills: %w", err)
	}
	if set == nil {
		// JSON null stored in a non-null column
		return nil, nil
	}
	return set, nil
}
