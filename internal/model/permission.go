package model

// Permission represents a string code for a specific system action.
type Permission string

const (
	// PermissionExamsRead allows viewing exam results.
	PermissionExamsRead Permission = "exams:read"

	// PermissionExamsWrite allows changing exam status and assigning questions.
	PermissionExamsWrite Permission = "exams:write"
)
