package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"liveclass-service/internal/domain"
)

// Store executes the state transitions and the student write path. Every
// transition runs as a single all-or-nothing transaction; the storage
// engine's isolation is the sole mechanism keeping the single-live-item
// invariant under concurrent instructor requests.
type Store interface {
	// ActivateLesson closes every lesson before seq, resets every lesson
	// after it to pending, activates the target, and force-closes any quiz
	// left Active or Reviewing anywhere. Returns the force-closed count.
	ActivateLesson(ctx context.Context, seq int) (int, error)
	// CloseLesson applies the same neighbor rule but closes the target.
	CloseLesson(ctx context.Context, seq int) (int, error)
	// ActivateQuiz closes earlier quizzes and resets later ones within the
	// target's lesson, then activates the target. The target is only
	// reachable while its lesson is Active. Returns the quiz order.
	ActivateQuiz(ctx context.Context, quizID int64) (int, error)
	// ReviewQuiz is ActivateQuiz with the target set to Reviewing.
	ReviewQuiz(ctx context.Context, quizID int64) (int, error)
	// CloseQuiz is ActivateQuiz with the target set to Closed.
	CloseQuiz(ctx context.Context, quizID int64) (int, error)
	// SaveResponse upserts the identity's choice for a quiz. The quiz must
	// be Active inside the Active lesson and the option must belong to it.
	SaveResponse(ctx context.Context, identity domain.Identity, quizID, optionID int64) (domain.Response, error)
	// Lessons lists all lessons in seq order.
	Lessons(ctx context.Context) ([]domain.Lesson, error)
	// ActiveQuizzes lists the quizzes of the Active lesson in order.
	ActiveQuizzes(ctx context.Context) ([]domain.Quiz, error)
	// Responses lists the user's responses against live-visible quizzes,
	// optionally narrowed to one quiz (quizID > 0).
	Responses(ctx context.Context, userID, quizID int64) ([]domain.Response, error)
	// Student fetches the profile attached to a user id.
	Student(ctx context.Context, userID int64) (domain.Student, error)
}

// LiveReader is the read-optimized side: the live-quiz lookup and the
// results aggregation.
type LiveReader interface {
	// LiveQuiz returns the quiz of the Active lesson whose state is in
	// states, ordered by (lesson seq, quiz order), or nil when none is live.
	LiveQuiz(ctx context.Context, states []domain.QuizState) (*domain.Quiz, error)
	// QuizResults tallies per-option response counts for a quiz under
	// review. Any other state yields a NotReviewingError.
	QuizResults(ctx context.Context, quizID int64) (domain.QuizResults, error)
}

// Broadcaster pushes an audience-shaped snapshot to every member of that
// audience's group. Implementations must never block or fail the caller.
type Broadcaster interface {
	BroadcastLiveQuiz(audience domain.Audience, snapshot *domain.QuizSnapshot)
}

// LiveService drives the lesson/quiz state machine and fans each transition
// out to both realtime audiences.
type LiveService struct {
	store  Store
	reader LiveReader
	hub    Broadcaster
	log    *zap.Logger
}

func NewLiveService(store Store, reader LiveReader, hub Broadcaster, log *zap.Logger) *LiveService {
	return &LiveService{store: store, reader: reader, hub: hub, log: log}
}

// ActivateLesson makes the target lesson the single Active one.
func (s *LiveService) ActivateLesson(ctx context.Context, seq int) (string, error) {
	forced, err := s.store.ActivateLesson(ctx, seq)
	if err != nil {
		return "", err
	}
	if forced > 0 {
		// The invariant should make this cleanup a no-op; a nonzero count
		// means a live quiz survived outside a lesson switch.
		s.log.Warn("force-closed live quizzes on lesson switch",
			zap.Int("lesson", seq), zap.Int("count", forced))
	}
	s.broadcastLive(ctx)
	return fmt.Sprintf("Lesson %d is activated.", seq), nil
}

// CloseLesson closes the target lesson; neighbors follow the same rule as
// activation, so no lesson remains Active afterwards.
func (s *LiveService) CloseLesson(ctx context.Context, seq int) (string, error) {
	forced, err := s.store.CloseLesson(ctx, seq)
	if err != nil {
		return "", err
	}
	if forced > 0 {
		s.log.Warn("force-closed live quizzes on lesson close",
			zap.Int("lesson", seq), zap.Int("count", forced))
	}
	s.broadcastLive(ctx)
	return fmt.Sprintf("Lesson %d is closed.", seq), nil
}

// ActivateQuiz opens the target quiz for student submissions.
func (s *LiveService) ActivateQuiz(ctx context.Context, quizID int64) (string, error) {
	order, err := s.store.ActivateQuiz(ctx, quizID)
	if err != nil {
		return "", err
	}
	s.broadcastLive(ctx)
	return fmt.Sprintf("Quiz %d is activated.", order), nil
}

// ReviewQuiz freezes submissions and exposes results to the instructor.
func (s *LiveService) ReviewQuiz(ctx context.Context, quizID int64) (string, error) {
	order, err := s.store.ReviewQuiz(ctx, quizID)
	if err != nil {
		return "", err
	}
	s.broadcastLive(ctx)
	return fmt.Sprintf("Starting to review Quiz %d.", order), nil
}

// CloseQuiz finalizes the target quiz.
func (s *LiveService) CloseQuiz(ctx context.Context, quizID int64) (string, error) {
	order, err := s.store.CloseQuiz(ctx, quizID)
	if err != nil {
		return "", err
	}
	s.broadcastLive(ctx)
	return fmt.Sprintf("Quiz %d is closed.", order), nil
}

// QuizResults returns the per-option tallies for a quiz under review.
func (s *LiveService) QuizResults(ctx context.Context, quizID int64) (domain.QuizResults, error) {
	return s.reader.QuizResults(ctx, quizID)
}

// SubmitResponse records or overwrites the identity's choice for a quiz.
func (s *LiveService) SubmitResponse(ctx context.Context, identity domain.Identity, quizID, optionID int64) (domain.Response, error) {
	return s.store.SaveResponse(ctx, identity, quizID, optionID)
}

// LiveSnapshot computes the audience-shaped view of the current live quiz.
// Used for the synchronous catch-up on websocket admission.
func (s *LiveService) LiveSnapshot(ctx context.Context, audience domain.Audience) (*domain.QuizSnapshot, error) {
	quiz, err := s.reader.LiveQuiz(ctx, audience.LiveStates())
	if err != nil {
		return nil, err
	}
	return domain.SnapshotFor(audience, quiz), nil
}

// Lessons lists all lessons in seq order.
func (s *LiveService) Lessons(ctx context.Context) ([]domain.Lesson, error) {
	return s.store.Lessons(ctx)
}

// ActiveQuizzes lists the quizzes of the Active lesson.
func (s *LiveService) ActiveQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	return s.store.ActiveQuizzes(ctx)
}

// Responses lists the caller's responses against live-visible quizzes.
func (s *LiveService) Responses(ctx context.Context, identity domain.Identity, quizID int64) ([]domain.Response, error) {
	responses, err := s.store.Responses(ctx, identity.UserID, quizID)
	if err != nil {
		return nil, err
	}
	for i := range responses {
		responses[i].Username = identity.Username
	}
	return responses, nil
}

// Student fetches the caller's profile.
func (s *LiveService) Student(ctx context.Context, userID int64) (domain.Student, error) {
	return s.store.Student(ctx, userID)
}

// broadcastLive recomputes both audience snapshots and pushes them. It runs
// after the transaction has committed; failures are logged and swallowed so
// fan-out can never fail or roll back a transition.
func (s *LiveService) broadcastLive(ctx context.Context) {
	for _, audience := range []domain.Audience{domain.AudienceInstructor, domain.AudienceStudent} {
		quiz, err := s.reader.LiveQuiz(ctx, audience.LiveStates())
		if err != nil {
			s.log.Error("live quiz lookup for broadcast failed",
				zap.String("audience", string(audience)), zap.Error(err))
			continue
		}
		s.hub.BroadcastLiveQuiz(audience, domain.SnapshotFor(audience, quiz))
	}
}
