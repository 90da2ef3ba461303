package service

import "errors"

// Error kinds. Every error returned by the services matches exactly one of
// these through errors.Is; handlers map the kind to a status code.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrInvalidState    = errors.New("invalid state")
	ErrTimeExpired     = errors.New("time expired")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrExternalService = errors.New("external service error")
)

// kindError is a user-facing error classified under one kind.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Is(target error) bool { return target == e.kind }

func kinded(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// Message returns the user-facing message carried by err, or "" for unclassified errors.
func Message(err error) string {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.msg
	}
	return ""
}

var (
	ErrStudentNotFound  = kinded(ErrNotFound, "student not found")
	ErrExamNotFound     = kinded(ErrNotFound, "exam not found")
	ErrAttemptNotFound  = kinded(ErrNotFound, "exam attempt not found")
	ErrQuestionNotFound = kinded(ErrNotFound, "question not found in this exam")

	ErrExamNotAvailable        = kinded(ErrInvalidState, "exam is not available for this student")
	ErrExamNotRunning          = kinded(ErrInvalidState, "exam is not running")
	ErrExamNotScheduledToday   = kinded(ErrInvalidState, "exam is not scheduled for today")
	ErrInvalidExamDuration     = kinded(ErrInvalidState, "exam duration is invalid")
	ErrAttemptCompleted        = kinded(ErrInvalidState, "exam attempt is already submitted")
	ErrSubmissionInProgress    = kinded(ErrInvalidState, "exam submission is already in progress")
	ErrNoTestCases             = kinded(ErrInvalidState, "coding question has no test cases")
	ErrInvalidStatusTransition = kinded(ErrInvalidState, "exam status transition is not allowed")

	ErrExamTimeOver = kinded(ErrTimeExpired, "exam time is over")

	ErrAttemptNotStarted = kinded(ErrUnauthorized, "exam has not been started by this student")

	ErrAttemptExamMismatch = kinded(ErrInvalidArgument, "attempt does not belong to this exam")
	ErrEmptySourceCode     = kinded(ErrInvalidArgument, "source code cannot be empty")
	ErrUnknownLanguage     = kinded(ErrInvalidArgument, "unsupported language")
	ErrInvalidQuestionType = kinded(ErrInvalidArgument, "invalid question type")
	ErrInvalidQuestion     = kinded(ErrInvalidArgument, "question is malformed")
	ErrInvalidSubmission   = kinded(ErrInvalidArgument, "submission is invalid")

	ErrSandboxUnavailable = kinded(ErrExternalService, "code execution service is unavailable")
)
