package model

import "time"

// Student is the profile resolved from the identity directory by email.
type Student struct {
	ID             int       `json:"id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	Branch         string    `json:"branch"`
	Semester       int       `json:"semester"`
	OrganizationID int       `json:"organization_id"`
	CreatedAt      time.Time `json:"created_at"`
}
