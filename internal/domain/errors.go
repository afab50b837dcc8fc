package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrLessonNotFound is returned when the target lesson seq does not exist.
	ErrLessonNotFound = errors.New("lesson not found")
	// ErrQuizNotFound covers both a missing quiz id and a quiz outside the
	// active lesson; the two are deliberately indistinguishable to callers.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrInvalidQuiz is returned when a response targets a quiz that is not
	// currently accepting submissions.
	ErrInvalidQuiz = errors.New("invalid quiz")
	// ErrInvalidOption is returned when a response's option does not belong
	// to the stated quiz.
	ErrInvalidOption = errors.New("invalid option")
	// ErrStudentNotFound is returned when no profile exists for an identity.
	ErrStudentNotFound = errors.New("student not found")
	// ErrTicketInvalid covers missing, expired, and already-consumed tickets.
	ErrTicketInvalid = errors.New("invalid ticket")
)

// NotReviewingError reports a results request against a quiz in any state
// other than Reviewing. It carries the quiz order for the client message.
type NotReviewingError struct {
	Order int
}

func (e *NotReviewingError) Error() string {
	return fmt.Sprintf("quiz %d is not under review", e.Order)
}
