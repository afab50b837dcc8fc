package domain

// QuizSnapshot is the read-optimized live-quiz view pushed over realtime
// connections and returned by the catch-up fetch. The instructor and student
// shapes differ in exactly one field: Answer.
type QuizSnapshot struct {
	ID       int64            `json:"id"`
	LessonID int              `json:"lesson_id"`
	Order    int              `json:"order"`
	Content  string           `json:"content"`
	ImageURL *string          `json:"image_url"`
	State    QuizState        `json:"state"`
	Options  []OptionSnapshot `json:"options"`
	Answer   *int             `json:"answer"`
}

type OptionSnapshot struct {
	ID      int64  `json:"id"`
	Order   int    `json:"order"`
	Content string `json:"content"`
}

func baseSnapshot(q *Quiz) *QuizSnapshot {
	options := make([]OptionSnapshot, 0, len(q.Options))
	for _, opt := range q.Options {
		options = append(options, OptionSnapshot{
			ID:      opt.ID,
			Order:   opt.Order,
			Content: opt.Content,
		})
	}
	snap := &QuizSnapshot{
		ID:       q.ID,
		LessonID: q.LessonSeq,
		Order:    q.Order,
		Content:  q.Content,
		State:    q.State,
		Options:  options,
	}
	if q.ImageURL != "" {
		url := q.ImageURL
		snap.ImageURL = &url
	}
	return snap
}

// InstructorSnapshot renders a quiz for the instructor audience, answer
// included. Returns nil for a nil quiz.
func InstructorSnapshot(q *Quiz) *QuizSnapshot {
	if q == nil {
		return nil
	}
	snap := baseSnapshot(q)
	answer := q.Answer
	snap.Answer = &answer
	return snap
}

// StudentSnapshot renders a quiz for the student audience with the answer
// withheld. Returns nil for a nil quiz.
func StudentSnapshot(q *Quiz) *QuizSnapshot {
	if q == nil {
		return nil
	}
	return baseSnapshot(q)
}

// SnapshotFor selects the projection for an audience.
func SnapshotFor(a Audience, q *Quiz) *QuizSnapshot {
	if a == AudienceInstructor {
		return InstructorSnapshot(q)
	}
	return StudentSnapshot(q)
}
