package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"liveclass-service/internal/app"
	"liveclass-service/internal/domain"
	"liveclass-service/internal/infra/memory"
)

type push struct {
	audience domain.Audience
	snapshot *domain.QuizSnapshot
}

type recordingHub struct {
	mu     sync.Mutex
	pushes []push
}

func (h *recordingHub) BroadcastLiveQuiz(audience domain.Audience, snapshot *domain.QuizSnapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pushes = append(h.pushes, push{audience: audience, snapshot: snapshot})
}

func (h *recordingHub) last(audience domain.Audience) (*domain.QuizSnapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.pushes) - 1; i >= 0; i-- {
		if h.pushes[i].audience == audience {
			return h.pushes[i].snapshot, true
		}
	}
	return nil, false
}

func (h *recordingHub) reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pushes = nil
}

type fixture struct {
	store   *memory.Store
	hub     *recordingHub
	service *app.LiveService
	quiz1   int64 // lesson 1, order 1, answer 2, 3 options
	quiz2   int64 // lesson 1, order 2
	quiz3   int64 // lesson 1, order 3
	quizL2  int64 // lesson 2, order 1
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	for seq := 1; seq <= 3; seq++ {
		store.AddLesson(domain.Lesson{Seq: seq, Date: time.Date(2025, 3, seq, 0, 0, 0, 0, time.UTC)})
	}
	f := &fixture{
		store:  store,
		hub:    &recordingHub{},
		quiz1:  store.AddQuiz(1, 1, 2, "What is a goroutine?", "A thread", "A lightweight routine", "A process"),
		quiz2:  store.AddQuiz(1, 2, 1, "Pick the zero value of a map.", "nil", "empty map"),
		quiz3:  store.AddQuiz(1, 3, 3, "Which keyword starts a goroutine?", "run", "spawn", "go"),
		quizL2: store.AddQuiz(2, 1, 1, "Second lesson opener.", "yes", "no"),
	}
	f.service = app.NewLiveService(store, store, f.hub, zap.NewNop())
	return f
}

func (f *fixture) activeLessons(t *testing.T) []int {
	t.Helper()
	lessons, err := f.store.Lessons(context.Background())
	if err != nil {
		t.Fatalf("lessons: %v", err)
	}
	var active []int
	for _, lesson := range lessons {
		if lesson.State == domain.LessonActive {
			active = append(active, lesson.Seq)
		}
	}
	return active
}

func (f *fixture) liveQuizzes(t *testing.T) []int64 {
	t.Helper()
	quiz, err := f.store.LiveQuiz(context.Background(), domain.LiveQuizStates)
	if err != nil {
		t.Fatalf("live quiz: %v", err)
	}
	if quiz == nil {
		return nil
	}
	return []int64{quiz.ID}
}

func TestActivateLessonNeighborRule(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	msg, err := f.service.ActivateLesson(ctx, 2)
	if err != nil {
		t.Fatalf("activate lesson: %v", err)
	}
	if msg != "Lesson 2 is activated." {
		t.Fatalf("unexpected message %q", msg)
	}

	lessons, err := f.store.Lessons(ctx)
	if err != nil {
		t.Fatalf("lessons: %v", err)
	}
	want := map[int]domain.LessonState{
		1: domain.LessonClosed,
		2: domain.LessonActive,
		3: domain.LessonPending,
	}
	for _, lesson := range lessons {
		if lesson.State != want[lesson.Seq] {
			t.Fatalf("lesson %d state = %d, want %d", lesson.Seq, lesson.State, want[lesson.Seq])
		}
	}

	// Moving backwards resets everything ahead even if it was visited.
	if _, err := f.service.ActivateLesson(ctx, 1); err != nil {
		t.Fatalf("activate lesson 1: %v", err)
	}
	lessons, _ = f.store.Lessons(ctx)
	for _, lesson := range lessons {
		if lesson.Seq > 1 && lesson.State != domain.LessonPending {
			t.Fatalf("lesson %d should be pending, got %d", lesson.Seq, lesson.State)
		}
	}
}

func TestAtMostOneActiveLesson(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	steps := []struct {
		op  func(context.Context, int) (string, error)
		seq int
	}{
		{f.service.ActivateLesson, 1},
		{f.service.ActivateLesson, 3},
		{f.service.CloseLesson, 2},
		{f.service.ActivateLesson, 2},
		{f.service.CloseLesson, 3},
	}
	for i, step := range steps {
		if _, err := step.op(ctx, step.seq); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if active := f.activeLessons(t); len(active) > 1 {
			t.Fatalf("step %d: multiple active lessons %v", i, active)
		}
	}
	if active := f.activeLessons(t); len(active) != 0 {
		t.Fatalf("expected no active lesson after close, got %v", active)
	}
}

func TestCloseLessonTargetsClosed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	msg, err := f.service.CloseLesson(ctx, 2)
	if err != nil {
		t.Fatalf("close lesson: %v", err)
	}
	if msg != "Lesson 2 is closed." {
		t.Fatalf("unexpected message %q", msg)
	}
	lessons, _ := f.store.Lessons(ctx)
	for _, lesson := range lessons {
		switch lesson.Seq {
		case 1, 2:
			if lesson.State != domain.LessonClosed {
				t.Fatalf("lesson %d state = %d, want closed", lesson.Seq, lesson.State)
			}
		case 3:
			if lesson.State != domain.LessonPending {
				t.Fatalf("lesson 3 state = %d, want pending", lesson.State)
			}
		}
	}
}

func TestLessonNotFound(t *testing.T) {
	f := newFixture(t)
	if _, err := f.service.ActivateLesson(context.Background(), 99); !errors.Is(err, domain.ErrLessonNotFound) {
		t.Fatalf("expected ErrLessonNotFound, got %v", err)
	}
}

func TestQuizNeighborRule(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.service.ActivateLesson(ctx, 1); err != nil {
		t.Fatalf("activate lesson: %v", err)
	}
	msg, err := f.service.ActivateQuiz(ctx, f.quiz2)
	if err != nil {
		t.Fatalf("activate quiz: %v", err)
	}
	if msg != "Quiz 2 is activated." {
		t.Fatalf("unexpected message %q", msg)
	}

	quizzes, err := f.store.ActiveQuizzes(ctx)
	if err != nil {
		t.Fatalf("active quizzes: %v", err)
	}
	want := map[int]domain.QuizState{
		1: domain.QuizClosed,
		2: domain.QuizActive,
		3: domain.QuizPending,
	}
	for _, quiz := range quizzes {
		if quiz.State != want[quiz.Order] {
			t.Fatalf("quiz order %d state = %d, want %d", quiz.Order, quiz.State, want[quiz.Order])
		}
	}
}

func TestAtMostOneLiveQuizSystemWide(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.service.ActivateLesson(ctx, 1); err != nil {
		t.Fatalf("activate lesson: %v", err)
	}
	steps := []struct {
		op func(context.Context, int64) (string, error)
		id int64
	}{
		{f.service.ActivateQuiz, f.quiz1},
		{f.service.ActivateQuiz, f.quiz3},
		{f.service.ReviewQuiz, f.quiz2},
		{f.service.ActivateQuiz, f.quiz2},
		{f.service.CloseQuiz, f.quiz2},
	}
	for i, step := range steps {
		if _, err := step.op(ctx, step.id); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if live := f.liveQuizzes(t); len(live) > 1 {
			t.Fatalf("step %d: multiple live quizzes %v", i, live)
		}
	}
	if live := f.liveQuizzes(t); len(live) != 0 {
		t.Fatalf("expected no live quiz after close, got %v", live)
	}
}

func TestQuizUnreachableOutsideActiveLesson(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// No active lesson at all.
	if _, err := f.service.ActivateQuiz(ctx, f.quiz1); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}

	if _, err := f.service.ActivateLesson(ctx, 1); err != nil {
		t.Fatalf("activate lesson: %v", err)
	}
	// Quiz of another lesson is conflated with true absence.
	if _, err := f.service.ActivateQuiz(ctx, f.quizL2); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound for other lesson's quiz, got %v", err)
	}
	if _, err := f.service.ReviewQuiz(ctx, 9999); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound for unknown id, got %v", err)
	}
}

func TestLessonSwitchForceClosesLiveQuiz(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.service.ActivateLesson(ctx, 1); err != nil {
		t.Fatalf("activate lesson 1: %v", err)
	}
	if _, err := f.service.ActivateQuiz(ctx, f.quiz1); err != nil {
		t.Fatalf("activate quiz: %v", err)
	}
	if _, err := f.service.ActivateLesson(ctx, 2); err != nil {
		t.Fatalf("activate lesson 2: %v", err)
	}
	if live := f.liveQuizzes(t); len(live) != 0 {
		t.Fatalf("live quiz survived lesson switch: %v", live)
	}
}

func TestLessonSwitchCleanupNormallyNoOp(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// Straight lesson activations without an open quiz should never have
	// anything to force-close.
	for _, seq := range []int{1, 2, 3} {
		forced, err := f.store.ActivateLesson(ctx, seq)
		if err != nil {
			t.Fatalf("activate lesson %d: %v", seq, err)
		}
		if forced != 0 {
			t.Fatalf("lesson %d activation force-closed %d quizzes", seq, forced)
		}
	}

	// Closing the quiz before switching keeps the cleanup a no-op too.
	if _, err := f.store.ActivateLesson(ctx, 1); err != nil {
		t.Fatalf("activate lesson 1: %v", err)
	}
	if _, err := f.store.ActivateQuiz(ctx, f.quiz1); err != nil {
		t.Fatalf("activate quiz: %v", err)
	}
	if _, err := f.store.CloseQuiz(ctx, f.quiz1); err != nil {
		t.Fatalf("close quiz: %v", err)
	}
	forced, err := f.store.ActivateLesson(ctx, 2)
	if err != nil {
		t.Fatalf("activate lesson 2: %v", err)
	}
	if forced != 0 {
		t.Fatalf("expected no-op cleanup, force-closed %d", forced)
	}
}

func TestActivateQuizIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.service.ActivateLesson(ctx, 1); err != nil {
		t.Fatalf("activate lesson: %v", err)
	}
	if _, err := f.service.ActivateQuiz(ctx, f.quiz2); err != nil {
		t.Fatalf("first activate: %v", err)
	}
	before, _ := f.store.ActiveQuizzes(ctx)

	msg, err := f.service.ActivateQuiz(ctx, f.quiz2)
	if err != nil {
		t.Fatalf("second activate: %v", err)
	}
	if msg != "Quiz 2 is activated." {
		t.Fatalf("unexpected message %q", msg)
	}
	after, _ := f.store.ActiveQuizzes(ctx)
	if len(before) != len(after) {
		t.Fatalf("quiz count changed: %d -> %d", len(before), len(after))
	}
	for i := range before {
		if before[i].State != after[i].State {
			t.Fatalf("quiz order %d state changed %d -> %d", before[i].Order, before[i].State, after[i].State)
		}
	}
}

func TestAudienceAsymmetry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.service.ActivateLesson(ctx, 1); err != nil {
		t.Fatalf("activate lesson: %v", err)
	}
	if _, err := f.service.ActivateQuiz(ctx, f.quiz1); err != nil {
		t.Fatalf("activate quiz: %v", err)
	}

	instructor, err := f.service.LiveSnapshot(ctx, domain.AudienceInstructor)
	if err != nil {
		t.Fatalf("instructor snapshot: %v", err)
	}
	student, err := f.service.LiveSnapshot(ctx, domain.AudienceStudent)
	if err != nil {
		t.Fatalf("student snapshot: %v", err)
	}
	if instructor == nil || student == nil {
		t.Fatalf("expected both snapshots, got instructor=%v student=%v", instructor, student)
	}
	if instructor.Answer == nil || *instructor.Answer != 2 {
		t.Fatalf("instructor answer = %v, want 2", instructor.Answer)
	}
	if student.Answer != nil {
		t.Fatalf("student answer leaked: %v", *student.Answer)
	}
	if instructor.ID != student.ID || instructor.LessonID != student.LessonID ||
		instructor.Order != student.Order || instructor.Content != student.Content ||
		instructor.State != student.State || len(instructor.Options) != len(student.Options) {
		t.Fatalf("snapshots differ beyond answer: %+v vs %+v", instructor, student)
	}
}

func TestBroadcastPerOperation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	assertLast := func(step string, instructorLive, studentLive bool) {
		t.Helper()
		inst, ok := f.hub.last(domain.AudienceInstructor)
		if !ok {
			t.Fatalf("%s: no instructor push", step)
		}
		if (inst != nil) != instructorLive {
			t.Fatalf("%s: instructor snapshot live=%v, want %v", step, inst != nil, instructorLive)
		}
		stud, ok := f.hub.last(domain.AudienceStudent)
		if !ok {
			t.Fatalf("%s: no student push", step)
		}
		if (stud != nil) != studentLive {
			t.Fatalf("%s: student snapshot live=%v, want %v", step, stud != nil, studentLive)
		}
	}

	if _, err := f.service.ActivateLesson(ctx, 1); err != nil {
		t.Fatalf("activate lesson: %v", err)
	}
	assertLast("activate lesson", false, false)

	f.hub.reset()
	if _, err := f.service.ActivateQuiz(ctx, f.quiz1); err != nil {
		t.Fatalf("activate quiz: %v", err)
	}
	assertLast("activate quiz", true, true)
	inst, _ := f.hub.last(domain.AudienceInstructor)
	if inst.Answer == nil {
		t.Fatalf("instructor broadcast missing answer")
	}
	stud, _ := f.hub.last(domain.AudienceStudent)
	if stud.Answer != nil {
		t.Fatalf("student broadcast leaked answer")
	}

	f.hub.reset()
	if _, err := f.service.ReviewQuiz(ctx, f.quiz1); err != nil {
		t.Fatalf("review quiz: %v", err)
	}
	assertLast("review quiz", true, false)

	f.hub.reset()
	if _, err := f.service.CloseQuiz(ctx, f.quiz1); err != nil {
		t.Fatalf("close quiz: %v", err)
	}
	assertLast("close quiz", false, false)
}

func TestQuizResults(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.service.ActivateLesson(ctx, 1); err != nil {
		t.Fatalf("activate lesson: %v", err)
	}
	if _, err := f.service.ActivateQuiz(ctx, f.quiz1); err != nil {
		t.Fatalf("activate quiz: %v", err)
	}

	// 3 responses on option 1, 5 on option 2.
	var user int64
	for i := 0; i < 3; i++ {
		user++
		submit(t, f, user, f.quiz1, 1)
	}
	for i := 0; i < 5; i++ {
		user++
		submit(t, f, user, f.quiz1, 2)
	}

	// Results are rejected in every non-reviewing state.
	if _, err := f.service.QuizResults(ctx, f.quiz1); err == nil {
		t.Fatalf("expected lifecycle error while active")
	} else {
		var notReviewing *domain.NotReviewingError
		if !errors.As(err, &notReviewing) {
			t.Fatalf("expected NotReviewingError, got %v", err)
		}
		if notReviewing.Order != 1 {
			t.Fatalf("error order = %d, want 1", notReviewing.Order)
		}
	}

	if _, err := f.service.ReviewQuiz(ctx, f.quiz1); err != nil {
		t.Fatalf("review quiz: %v", err)
	}
	results, err := f.service.QuizResults(ctx, f.quiz1)
	if err != nil {
		t.Fatalf("quiz results: %v", err)
	}
	if len(results.Orders) != 3 || results.Orders[0] != 1 || results.Orders[1] != 2 || results.Orders[2] != 3 {
		t.Fatalf("orders = %v", results.Orders)
	}
	if results.Counts[0] != 3 || results.Counts[1] != 5 || results.Counts[2] != 0 {
		t.Fatalf("counts = %v", results.Counts)
	}
	if results.Total != 8 {
		t.Fatalf("total = %d, want 8", results.Total)
	}

	if _, err := f.service.CloseQuiz(ctx, f.quiz1); err != nil {
		t.Fatalf("close quiz: %v", err)
	}
	if _, err := f.service.QuizResults(ctx, f.quiz1); err == nil {
		t.Fatalf("expected lifecycle error while closed")
	}
}

func TestResponseUpsert(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.service.ActivateLesson(ctx, 1); err != nil {
		t.Fatalf("activate lesson: %v", err)
	}
	if _, err := f.service.ActivateQuiz(ctx, f.quiz1); err != nil {
		t.Fatalf("activate quiz: %v", err)
	}

	identity := domain.Identity{UserID: 7, Username: "alice@example.com"}
	first, err := f.service.SubmitResponse(ctx, identity, f.quiz1, f.store.OptionID(f.quiz1, 2))
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	second, err := f.service.SubmitResponse(ctx, identity, f.quiz1, f.store.OptionID(f.quiz1, 1))
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("resubmission created a new row: %d vs %d", first.ID, second.ID)
	}
	if second.OptionOrder != 1 {
		t.Fatalf("stored option order = %d, want 1", second.OptionOrder)
	}

	responses, err := f.service.Responses(ctx, identity, f.quiz1)
	if err != nil {
		t.Fatalf("responses: %v", err)
	}
	if len(responses) != 1 {
		t.Fatalf("expected exactly one response, got %d", len(responses))
	}
	if responses[0].OptionOrder != 1 {
		t.Fatalf("listed option order = %d, want 1", responses[0].OptionOrder)
	}
}

func TestResponseValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	identity := domain.Identity{UserID: 7, Username: "alice@example.com"}

	// Quiz not active yet.
	if _, err := f.service.SubmitResponse(ctx, identity, f.quiz1, f.store.OptionID(f.quiz1, 1)); !errors.Is(err, domain.ErrInvalidQuiz) {
		t.Fatalf("expected ErrInvalidQuiz before activation, got %v", err)
	}

	if _, err := f.service.ActivateLesson(ctx, 1); err != nil {
		t.Fatalf("activate lesson: %v", err)
	}
	if _, err := f.service.ActivateQuiz(ctx, f.quiz1); err != nil {
		t.Fatalf("activate quiz: %v", err)
	}

	// Option from another quiz.
	if _, err := f.service.SubmitResponse(ctx, identity, f.quiz1, f.store.OptionID(f.quiz2, 1)); !errors.Is(err, domain.ErrInvalidOption) {
		t.Fatalf("expected ErrInvalidOption, got %v", err)
	}

	// Submissions freeze during review.
	if _, err := f.service.ReviewQuiz(ctx, f.quiz1); err != nil {
		t.Fatalf("review quiz: %v", err)
	}
	if _, err := f.service.SubmitResponse(ctx, identity, f.quiz1, f.store.OptionID(f.quiz1, 1)); !errors.Is(err, domain.ErrInvalidQuiz) {
		t.Fatalf("expected ErrInvalidQuiz during review, got %v", err)
	}
}

func TestLiveScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.service.ActivateLesson(ctx, 1); err != nil {
		t.Fatalf("activate lesson: %v", err)
	}
	if _, err := f.service.ActivateQuiz(ctx, f.quiz1); err != nil {
		t.Fatalf("activate quiz: %v", err)
	}

	student := domain.Identity{UserID: 42, Username: "bob@example.com"}
	if _, err := f.service.SubmitResponse(ctx, student, f.quiz1, f.store.OptionID(f.quiz1, 2)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	resubmitted, err := f.service.SubmitResponse(ctx, student, f.quiz1, f.store.OptionID(f.quiz1, 1))
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if resubmitted.OptionOrder != 1 {
		t.Fatalf("stored option order = %d, want 1", resubmitted.OptionOrder)
	}

	f.hub.reset()
	if _, err := f.service.ReviewQuiz(ctx, f.quiz1); err != nil {
		t.Fatalf("review quiz: %v", err)
	}
	inst, ok := f.hub.last(domain.AudienceInstructor)
	if !ok || inst == nil || inst.Answer == nil || *inst.Answer != 2 {
		t.Fatalf("instructor push = %+v, want answer 2", inst)
	}
	stud, ok := f.hub.last(domain.AudienceStudent)
	if !ok || stud != nil {
		t.Fatalf("student push = %+v, want null", stud)
	}
}

// gatedReader stalls one live-quiz read on demand so a second transition can
// commit and broadcast while the first transition's snapshot computation is
// still in flight.
type gatedReader struct {
	inner   app.LiveReader
	mu      sync.Mutex
	armed   bool
	entered chan struct{}
	release chan struct{}
}

func (g *gatedReader) LiveQuiz(ctx context.Context, states []domain.QuizState) (*domain.Quiz, error) {
	g.mu.Lock()
	armed := g.armed
	g.armed = false
	g.mu.Unlock()
	if armed {
		close(g.entered)
		<-g.release
	}
	return g.inner.LiveQuiz(ctx, states)
}

func (g *gatedReader) QuizResults(ctx context.Context, quizID int64) (domain.QuizResults, error) {
	return g.inner.QuizResults(ctx, quizID)
}

func TestOverlappingTransitionsBroadcastFinalState(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.AddLesson(domain.Lesson{Seq: 1, Date: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)})
	quiz := store.AddQuiz(1, 1, 2, "What is a goroutine?", "A thread", "A lightweight routine")
	hub := &recordingHub{}
	gate := &gatedReader{inner: store, entered: make(chan struct{}), release: make(chan struct{})}
	service := app.NewLiveService(store, gate, hub, zap.NewNop())

	if _, err := service.ActivateLesson(ctx, 1); err != nil {
		t.Fatalf("activate lesson: %v", err)
	}
	if _, err := service.ActivateQuiz(ctx, quiz); err != nil {
		t.Fatalf("activate quiz: %v", err)
	}
	hub.reset()

	gate.mu.Lock()
	gate.armed = true
	gate.mu.Unlock()

	reviewDone := make(chan error, 1)
	go func() {
		_, err := service.ReviewQuiz(ctx, quiz)
		reviewDone <- err
	}()
	// Review has committed and its snapshot read is stalled in flight.
	<-gate.entered

	if _, err := service.CloseQuiz(ctx, quiz); err != nil {
		t.Fatalf("close quiz: %v", err)
	}

	close(gate.release)
	if err := <-reviewDone; err != nil {
		t.Fatalf("review quiz: %v", err)
	}

	// Each broadcast read reflects the state at its own push time, so after
	// both transitions settle no audience is left on the reviewing snapshot.
	for _, audience := range []domain.Audience{domain.AudienceInstructor, domain.AudienceStudent} {
		snapshot, ok := hub.last(audience)
		if !ok {
			t.Fatalf("no %s push recorded", audience)
		}
		if snapshot != nil {
			t.Fatalf("%s audience left on stale state: %+v", audience, snapshot)
		}
	}
}

func submit(t *testing.T, f *fixture, userID, quizID int64, optionOrder int) {
	t.Helper()
	identity := domain.Identity{UserID: userID, Username: "user"}
	if _, err := f.service.SubmitResponse(context.Background(), identity, quizID, f.store.OptionID(quizID, optionOrder)); err != nil {
		t.Fatalf("submit user %d: %v", userID, err)
	}
}
