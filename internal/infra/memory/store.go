package memory

import (
	"context"
	"sort"
	"sync"

	"liveclass-service/internal/domain"
)

type responseKey struct {
	userID int64
	quizID int64
}

// Store is an in-memory implementation of the app store and reader
// interfaces, used for tests and redis/postgres-less runs.
type Store struct {
	mu        sync.RWMutex
	lessons   map[int]*domain.Lesson
	quizzes   map[int64]*domain.Quiz
	responses map[responseKey]*domain.Response
	students  map[int64]domain.Student

	nextQuizID     int64
	nextOptionID   int64
	nextResponseID int64
}

func NewStore() *Store {
	return &Store{
		lessons:   make(map[int]*domain.Lesson),
		quizzes:   make(map[int64]*domain.Quiz),
		responses: make(map[responseKey]*domain.Response),
		students:  make(map[int64]domain.Student),
	}
}

// AddLesson seeds a lesson. Lessons are created administratively, outside
// the transition engine.
func (s *Store) AddLesson(lesson domain.Lesson) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lesson.State == 0 {
		lesson.State = domain.LessonPending
	}
	s.lessons[lesson.Seq] = &lesson
}

// AddQuiz seeds a quiz with its options and returns the assigned id.
// Option contents are given in order; option orders are 1-based.
func (s *Store) AddQuiz(lessonSeq, order, answer int, content string, optionContents ...string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextQuizID++
	quiz := &domain.Quiz{
		ID:        s.nextQuizID,
		LessonSeq: lessonSeq,
		Order:     order,
		Answer:    answer,
		Content:   content,
		State:     domain.QuizPending,
	}
	for i, text := range optionContents {
		s.nextOptionID++
		quiz.Options = append(quiz.Options, domain.Option{
			ID:      s.nextOptionID,
			Order:   i + 1,
			Content: text,
		})
	}
	s.quizzes[quiz.ID] = quiz
	return quiz.ID
}

// AddStudent seeds a profile.
func (s *Store) AddStudent(student domain.Student) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.students[student.UserID] = student
}

// OptionID resolves an option id within a quiz by its order, for tests.
func (s *Store) OptionID(quizID int64, order int) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return 0
	}
	for _, opt := range quiz.Options {
		if opt.Order == order {
			return opt.ID
		}
	}
	return 0
}

func (s *Store) ActivateLesson(_ context.Context, seq int) (int, error) {
	return s.switchLesson(seq, domain.LessonActive)
}

func (s *Store) CloseLesson(_ context.Context, seq int) (int, error) {
	return s.switchLesson(seq, domain.LessonClosed)
}

func (s *Store) switchLesson(seq int, target domain.LessonState) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lesson, ok := s.lessons[seq]
	if !ok {
		return 0, domain.ErrLessonNotFound
	}
	for _, other := range s.lessons {
		switch {
		case other.Seq < seq:
			other.State = domain.LessonClosed
		case other.Seq > seq:
			other.State = domain.LessonPending
		}
	}
	lesson.State = target
	forced := 0
	for _, quiz := range s.quizzes {
		if quiz.State == domain.QuizActive || quiz.State == domain.QuizReviewing {
			quiz.State = domain.QuizClosed
			forced++
		}
	}
	return forced, nil
}

func (s *Store) ActivateQuiz(ctx context.Context, quizID int64) (int, error) {
	return s.switchQuiz(quizID, domain.QuizActive)
}

func (s *Store) ReviewQuiz(ctx context.Context, quizID int64) (int, error) {
	return s.switchQuiz(quizID, domain.QuizReviewing)
}

func (s *Store) CloseQuiz(ctx context.Context, quizID int64) (int, error) {
	return s.switchQuiz(quizID, domain.QuizClosed)
}

func (s *Store) switchQuiz(quizID int64, target domain.QuizState) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, err := s.reachableQuizLocked(quizID)
	if err != nil {
		return 0, err
	}
	for _, other := range s.quizzes {
		if other.LessonSeq != quiz.LessonSeq || other.ID == quiz.ID {
			continue
		}
		switch {
		case other.Order < quiz.Order:
			other.State = domain.QuizClosed
		case other.Order > quiz.Order:
			other.State = domain.QuizPending
		}
	}
	quiz.State = target
	return quiz.Order, nil
}

// reachableQuizLocked resolves a quiz id within the Active lesson. Quizzes
// outside it are reported as missing, same as a true absence.
func (s *Store) reachableQuizLocked(quizID int64) (*domain.Quiz, error) {
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return nil, domain.ErrQuizNotFound
	}
	lesson, ok := s.lessons[quiz.LessonSeq]
	if !ok || lesson.State != domain.LessonActive {
		return nil, domain.ErrQuizNotFound
	}
	return quiz, nil
}

func (s *Store) SaveResponse(_ context.Context, identity domain.Identity, quizID, optionID int64) (domain.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.Response{}, domain.ErrInvalidQuiz
	}
	lesson, ok := s.lessons[quiz.LessonSeq]
	if !ok || lesson.State != domain.LessonActive {
		return domain.Response{}, domain.ErrInvalidQuiz
	}
	if quiz.State != domain.QuizActive {
		return domain.Response{}, domain.ErrInvalidQuiz
	}
	var option *domain.Option
	for i := range quiz.Options {
		if quiz.Options[i].ID == optionID {
			option = &quiz.Options[i]
			break
		}
	}
	if option == nil {
		return domain.Response{}, domain.ErrInvalidOption
	}

	key := responseKey{userID: identity.UserID, quizID: quizID}
	if existing, ok := s.responses[key]; ok {
		existing.OptionID = option.ID
		existing.OptionOrder = option.Order
		existing.Username = identity.Username
		return *existing, nil
	}
	s.nextResponseID++
	response := &domain.Response{
		ID:          s.nextResponseID,
		UserID:      identity.UserID,
		Username:    identity.Username,
		QuizID:      quizID,
		OptionID:    option.ID,
		OptionOrder: option.Order,
	}
	s.responses[key] = response
	return *response, nil
}

func (s *Store) Lessons(_ context.Context) ([]domain.Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lessons := make([]domain.Lesson, 0, len(s.lessons))
	for _, lesson := range s.lessons {
		lessons = append(lessons, *lesson)
	}
	sort.Slice(lessons, func(i, j int) bool { return lessons[i].Seq < lessons[j].Seq })
	return lessons, nil
}

func (s *Store) ActiveQuizzes(_ context.Context) ([]domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quizzes := make([]domain.Quiz, 0)
	for _, quiz := range s.quizzes {
		lesson, ok := s.lessons[quiz.LessonSeq]
		if ok && lesson.State == domain.LessonActive {
			quizzes = append(quizzes, copyQuiz(quiz))
		}
	}
	sort.Slice(quizzes, func(i, j int) bool { return quizzes[i].Order < quizzes[j].Order })
	return quizzes, nil
}

func (s *Store) Responses(_ context.Context, userID, quizID int64) ([]domain.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	responses := make([]domain.Response, 0)
	for _, response := range s.responses {
		if response.UserID != userID {
			continue
		}
		if quizID > 0 && response.QuizID != quizID {
			continue
		}
		quiz, ok := s.quizzes[response.QuizID]
		if !ok || quiz.State != domain.QuizActive {
			continue
		}
		lesson, ok := s.lessons[quiz.LessonSeq]
		if !ok || lesson.State != domain.LessonActive {
			continue
		}
		responses = append(responses, *response)
	}
	sort.Slice(responses, func(i, j int) bool { return responses[i].ID > responses[j].ID })
	return responses, nil
}

func (s *Store) Student(_ context.Context, userID int64) (domain.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	student, ok := s.students[userID]
	if !ok {
		return domain.Student{}, domain.ErrStudentNotFound
	}
	return student, nil
}

// LiveQuiz finds the quiz of the Active lesson whose state is in states,
// ordered by (lesson seq, quiz order).
func (s *Store) LiveQuiz(_ context.Context, states []domain.QuizState) (*domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var live *domain.Quiz
	for _, quiz := range s.quizzes {
		lesson, ok := s.lessons[quiz.LessonSeq]
		if !ok || lesson.State != domain.LessonActive {
			continue
		}
		if !stateIn(quiz.State, states) {
			continue
		}
		if live == nil || quiz.LessonSeq < live.LessonSeq ||
			(quiz.LessonSeq == live.LessonSeq && quiz.Order < live.Order) {
			live = quiz
		}
	}
	if live == nil {
		return nil, nil
	}
	quiz := copyQuiz(live)
	return &quiz, nil
}

func (s *Store) QuizResults(_ context.Context, quizID int64) (domain.QuizResults, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, err := s.reachableQuizLocked(quizID)
	if err != nil {
		return domain.QuizResults{}, err
	}
	if quiz.State != domain.QuizReviewing {
		return domain.QuizResults{}, &domain.NotReviewingError{Order: quiz.Order}
	}
	results := domain.QuizResults{
		Orders: make([]int, 0, len(quiz.Options)),
		Counts: make([]int, 0, len(quiz.Options)),
	}
	for _, opt := range quiz.Options {
		count := 0
		for _, response := range s.responses {
			if response.OptionID == opt.ID {
				count++
			}
		}
		results.Orders = append(results.Orders, opt.Order)
		results.Counts = append(results.Counts, count)
	}
	for _, response := range s.responses {
		if response.QuizID == quizID {
			results.Total++
		}
	}
	return results, nil
}

func stateIn(state domain.QuizState, states []domain.QuizState) bool {
	for _, s := range states {
		if s == state {
			return true
		}
	}
	return false
}

func copyQuiz(quiz *domain.Quiz) domain.Quiz {
	out := *quiz
	out.Options = append([]domain.Option(nil), quiz.Options...)
	return out
}
