package util

import "errors"

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrEmailRegistered = errors.New("email already registered")

	ErrExamNotFound       = errors.New("exam not found")
	ErrQuestionNotFound   = errors.New("question not found")
	ErrAttemptNotFound    = errors.New("attempt not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrResultNotFound     = errors.New("result not found")
	ErrInvalidExam        = errors.New("invalid exam definition")

	// ErrResultNotReleased hides graded results from students until the
	// teacher releases them.
	ErrResultNotReleased = errors.New("result not released yet")

	// ErrAttemptNotAllowed is a rejected precondition (wrong exam status,
	// outside the time window, attempt limit reached, not authorized).
	// Not retryable; surfaced to the caller as an explanation.
	ErrAttemptNotAllowed = errors.New("attempt not allowed")

	// ErrAlreadyFinalized is the losing side of a finalize race. Callers
	// treat it as success and return the existing submission.
	ErrAlreadyFinalized = errors.New("attempt already finalized")

	// ErrAttemptNotActive rejects answer writes on a finalized or expired
	// attempt.
	ErrAttemptNotActive = errors.New("attempt is not in progress")

	// ErrInvalidAnswerKey rejects an authoring edit before persistence
	// (MCQ needs at least two options and exactly one correct).
	ErrInvalidAnswerKey = errors.New("invalid answer key")

	// ErrPropagationPartial reports a re-scoring run that stopped midway.
	// Re-invoking the propagation is safe; recomputation is idempotent.
	ErrPropagationPartial = errors.New("propagation partially applied")
)
