package models

import (
	"time"

	"github.com/google/uuid"
)

// Application is a tracked job application. CRUD for applications lives
// outside this service; the core reads them for ownership checks and task
// context, and creates one when an analysis asks for it.
type Application struct {
	ID             uuid.UUID  `db:"id"              json:"id"`
	UserID         uuid.UUID  `db:"user_id"         json:"user_id"`
	CompanyName    string     `db:"company_name"    json:"company_name"`
	RoleTitle      string     `db:"role_title"      json:"role_title"`
	JobURL         *string    `db:"job_url"         json:"job_url,omitempty"`
	JobDescription *string    `db:"job_description" json:"job_description,omitempty"`
	Status         string     `db:"status"          json:"status"`
	SalaryMin      *float64   `db:"salary_min"      json:"salary_min,omitempty"`
	SalaryMax      *float64   `db:"salary_max"      json:"salary_max,omitempty"`
	SalaryCurrency *string    `db:"salary_currency" json:"salary_currency,omitempty"`
	Location       *string    `db:"location"        json:"location,omitempty"`
	WorkMode       *string    `db:"work_mode"       json:"work_mode,omitempty"`
	Notes          *string    `db:"notes"           json:"notes,omitempty"`
	AppliedAt      *time.Time `db:"applied_at"      json:"applied_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at"      json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"      json:"updated_at"`
}

// Profile holds the candidate context that grounds prompts. All fields are
// optional; a missing profile only lowers analysis quality.
type Profile struct {
	UserID             uuid.UUID `db:"user_id"             json:"user_id"`
	ResumeText         *string   `db:"resume_text"         json:"resume_text,omitempty"`
	Skills             []string  `db:"skills"              json:"skills"`
	PreferredRoles     []string  `db:"preferred_roles"     json:"preferred_roles"`
	PreferredLocations []string  `db:"preferred_locations" json:"preferred_locations"`
	CreatedAt          time.Time `db:"created_at"          json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at"          json:"updated_at"`
}
