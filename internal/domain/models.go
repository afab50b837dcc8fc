package domain

import "time"

// LessonState and QuizState are wire-level integer codes; clients switch on
// the raw values.
type LessonState int

const (
	LessonPending LessonState = 1
	LessonActive  LessonState = 2
	LessonClosed  LessonState = 3
)

type QuizState int

const (
	QuizPending   QuizState = 1
	QuizActive    QuizState = 2
	QuizReviewing QuizState = 3
	QuizClosed    QuizState = 4
)

// LiveQuizStates are the states that make a quiz "live" somewhere in the
// system: students are answering it or the instructor is reviewing it.
var LiveQuizStates = []QuizState{QuizActive, QuizReviewing}

// Lesson is a numbered teaching session. Seq is externally assigned and is
// the primary key; at most one lesson is Active at any time.
type Lesson struct {
	Seq   int         `json:"seq"`
	State LessonState `json:"state"`
	Date  time.Time   `json:"date"`
}

// Option is one selectable choice within a quiz.
type Option struct {
	ID      int64  `json:"id"`
	Order   int    `json:"order"`
	Content string `json:"content"`
}

// Quiz is a multiple-choice question owned by a lesson. Answer is a 1-based
// option order, not a foreign key; whoever sets it must keep it in range.
type Quiz struct {
	ID        int64     `json:"id"`
	LessonSeq int       `json:"lesson_id"`
	Order     int       `json:"order"`
	Answer    int       `json:"answer"`
	Content   string    `json:"content"`
	ImageURL  string    `json:"image_url"`
	State     QuizState `json:"state"`
	Note      string    `json:"note"`
	Options   []Option  `json:"options"`
}

// Response records one user's choice for one quiz. At most one response
// exists per (user, quiz); a resubmission overwrites the earlier choice.
type Response struct {
	ID          int64  `json:"id"`
	UserID      int64  `json:"-"`
	Username    string `json:"username"`
	QuizID      int64  `json:"quiz_id"`
	OptionID    int64  `json:"option_id"`
	OptionOrder int    `json:"option_order"`
}

// Student is the profile attached to an external identity. The eval scores
// are written by an offline batch job, never by this service.
type Student struct {
	UserID         int64  `json:"-"`
	PersonalSID    string `json:"personal_sid"`
	PersonalName   string `json:"personal_name"`
	RoleDepartment string `json:"role_department"`
	RoleMajor      string `json:"role_major"`
	RoleYear       int    `json:"role_year"`
	EvalProject1   int    `json:"eval_project1"`
	EvalProject2   int    `json:"eval_project2"`
	EvalProject3   int    `json:"eval_project3"`
	EvalMidterm    int    `json:"eval_midterm"`
	EvalFinals     int    `json:"eval_finals"`
	EvalQuiz       int    `json:"eval_quiz"`
	ExtraNote      string `json:"extra_note"`
}

// QuizResults tallies responses per option for a quiz under review. Total is
// counted over all responses for the quiz rather than summed from Counts, as
// a cross-check against responses whose option no longer matches any row.
type QuizResults struct {
	Orders []int `json:"orders"`
	Counts []int `json:"counts"`
	Total  int   `json:"total"`
}

// Identity is the authenticated principal resolved from a token or ticket.
type Identity struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Staff    bool   `json:"staff"`
}

// Audience names one of the two realtime broadcast groups.
type Audience string

const (
	AudienceInstructor Audience = "instructor"
	AudienceStudent    Audience = "student"
)

// MessageType is the type field carried by live-quiz pushes for this audience.
func (a Audience) MessageType() string {
	return string(a) + "_live_quiz"
}

// LiveStates returns the quiz states this audience may observe as live.
// Students never see a quiz in Reviewing.
func (a Audience) LiveStates() []QuizState {
	if a == AudienceInstructor {
		return []QuizState{QuizActive, QuizReviewing}
	}
	return []QuizState{QuizActive}
}
