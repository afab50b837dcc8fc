package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"liveclass-service/internal/domain"
)

type lessonRow struct {
	bun.BaseModel `bun:"table:lessons,alias:l"`

	Seq       int       `bun:"seq,pk"`
	State     int       `bun:"state"`
	Date      time.Time `bun:"date"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:now()"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:now()"`
}

type quizRow struct {
	bun.BaseModel `bun:"table:quizzes,alias:q"`

	ID        int64          `bun:"id,pk,autoincrement"`
	LessonSeq int            `bun:"lesson_seq"`
	Order     int            `bun:"order"`
	Answer    int            `bun:"answer"`
	Content   string         `bun:"content"`
	Image     sql.NullString `bun:"image"`
	State     int            `bun:"state"`
	Note      string         `bun:"note"`
	CreatedAt time.Time      `bun:"created_at,nullzero,notnull,default:now()"`
	UpdatedAt time.Time      `bun:"updated_at,nullzero,notnull,default:now()"`
}

type optionRow struct {
	bun.BaseModel `bun:"table:options,alias:o"`

	ID        int64     `bun:"id,pk,autoincrement"`
	QuizID    int64     `bun:"quiz_id"`
	Order     int       `bun:"order"`
	Content   string    `bun:"content"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:now()"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:now()"`
}

type responseRow struct {
	bun.BaseModel `bun:"table:responses,alias:r"`

	ID        int64     `bun:"id,pk,autoincrement"`
	UserID    int64     `bun:"user_id"`
	QuizID    int64     `bun:"quiz_id"`
	OptionID  int64     `bun:"option_id"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:now()"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:now()"`
}

type studentRow struct {
	bun.BaseModel `bun:"table:students,alias:st"`

	ID             int64     `bun:"id,pk,autoincrement"`
	UserID         int64     `bun:"user_id"`
	PersonalSID    string    `bun:"personal_sid"`
	PersonalName   string    `bun:"personal_name"`
	RoleDepartment string    `bun:"role_department"`
	RoleMajor      string    `bun:"role_major"`
	RoleYear       int       `bun:"role_year"`
	EvalProject1   int       `bun:"eval_project1"`
	EvalProject2   int       `bun:"eval_project2"`
	EvalProject3   int       `bun:"eval_project3"`
	EvalMidterm    int       `bun:"eval_midterm"`
	EvalFinals     int       `bun:"eval_finals"`
	EvalQuiz       int       `bun:"eval_quiz"`
	ExtraNote      string    `bun:"extra_note"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:now()"`
	UpdatedAt      time.Time `bun:"updated_at,nullzero,notnull,default:now()"`
}

// Store is the write side of the live session state machine. Every
// transition runs inside one bun transaction: neighbor updates and the
// target update commit together or not at all.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) ActivateLesson(ctx context.Context, seq int) (int, error) {
	return s.switchLesson(ctx, seq, domain.LessonActive)
}

func (s *Store) CloseLesson(ctx context.Context, seq int) (int, error) {
	return s.switchLesson(ctx, seq, domain.LessonClosed)
}

// switchLesson applies the one-directional presentation rule: every lesson
// before the target is final, every lesson after it is reset, the target
// takes the requested state. Any quiz still live anywhere is force-closed
// so a previous lesson's quiz cannot survive the switch.
func (s *Store) switchLesson(ctx context.Context, seq int, target domain.LessonState) (int, error) {
	var forced int64
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().Model((*lessonRow)(nil)).
			Set("state = ?", int(target)).
			Set("updated_at = now()").
			Where("seq = ?", seq).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("update target lesson: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrLessonNotFound
		}
		if _, err := tx.NewUpdate().Model((*lessonRow)(nil)).
			Set("state = ?", int(domain.LessonClosed)).
			Set("updated_at = now()").
			Where("seq < ?", seq).
			Exec(ctx); err != nil {
			return fmt.Errorf("close earlier lessons: %w", err)
		}
		if _, err := tx.NewUpdate().Model((*lessonRow)(nil)).
			Set("state = ?", int(domain.LessonPending)).
			Set("updated_at = now()").
			Where("seq > ?", seq).
			Exec(ctx); err != nil {
			return fmt.Errorf("reset later lessons: %w", err)
		}
		res, err = tx.NewUpdate().Model((*quizRow)(nil)).
			Set("state = ?", int(domain.QuizClosed)).
			Set("updated_at = now()").
			Where("state IN (?)", bun.In([]int{int(domain.QuizActive), int(domain.QuizReviewing)})).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("force-close live quizzes: %w", err)
		}
		forced, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(forced), nil
}

func (s *Store) ActivateQuiz(ctx context.Context, quizID int64) (int, error) {
	return s.switchQuiz(ctx, quizID, domain.QuizActive)
}

func (s *Store) ReviewQuiz(ctx context.Context, quizID int64) (int, error) {
	return s.switchQuiz(ctx, quizID, domain.QuizReviewing)
}

func (s *Store) CloseQuiz(ctx context.Context, quizID int64) (int, error) {
	return s.switchQuiz(ctx, quizID, domain.QuizClosed)
}

func (s *Store) switchQuiz(ctx context.Context, quizID int64, target domain.QuizState) (int, error) {
	var order int
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		quiz := new(quizRow)
		err := tx.NewSelect().Model(quiz).
			Join("JOIN lessons AS l ON l.seq = q.lesson_seq").
			Where("q.id = ?", quizID).
			Where("l.state = ?", int(domain.LessonActive)).
			For("UPDATE OF q").
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			// Unknown id and a quiz outside the active lesson look the same.
			return domain.ErrQuizNotFound
		}
		if err != nil {
			return fmt.Errorf("load target quiz: %w", err)
		}
		if _, err := tx.NewUpdate().Model((*quizRow)(nil)).
			Set("state = ?", int(domain.QuizClosed)).
			Set("updated_at = now()").
			Where("lesson_seq = ?", quiz.LessonSeq).
			Where(`"order" < ?`, quiz.Order).
			Exec(ctx); err != nil {
			return fmt.Errorf("close earlier quizzes: %w", err)
		}
		if _, err := tx.NewUpdate().Model((*quizRow)(nil)).
			Set("state = ?", int(domain.QuizPending)).
			Set("updated_at = now()").
			Where("lesson_seq = ?", quiz.LessonSeq).
			Where(`"order" > ?`, quiz.Order).
			Exec(ctx); err != nil {
			return fmt.Errorf("reset later quizzes: %w", err)
		}
		if _, err := tx.NewUpdate().Model((*quizRow)(nil)).
			Set("state = ?", int(target)).
			Set("updated_at = now()").
			Where("id = ?", quizID).
			Exec(ctx); err != nil {
			return fmt.Errorf("update target quiz: %w", err)
		}
		order = quiz.Order
		return nil
	})
	if err != nil {
		return 0, err
	}
	return order, nil
}

func (s *Store) SaveResponse(ctx context.Context, identity domain.Identity, quizID, optionID int64) (domain.Response, error) {
	var response domain.Response
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		quiz := new(quizRow)
		err := tx.NewSelect().Model(quiz).
			Join("JOIN lessons AS l ON l.seq = q.lesson_seq").
			Where("q.id = ?", quizID).
			Where("l.state = ?", int(domain.LessonActive)).
			Where("q.state = ?", int(domain.QuizActive)).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrInvalidQuiz
		}
		if err != nil {
			return fmt.Errorf("load quiz for response: %w", err)
		}

		option := new(optionRow)
		err = tx.NewSelect().Model(option).
			Where("o.id = ?", optionID).
			Where("o.quiz_id = ?", quizID).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrInvalidOption
		}
		if err != nil {
			return fmt.Errorf("load option for response: %w", err)
		}

		row := &responseRow{
			UserID:   identity.UserID,
			QuizID:   quizID,
			OptionID: optionID,
		}
		if _, err := tx.NewInsert().Model(row).
			On("CONFLICT (user_id, quiz_id) DO UPDATE").
			Set("option_id = EXCLUDED.option_id").
			Set("updated_at = now()").
			Returning("id").
			Exec(ctx); err != nil {
			return fmt.Errorf("upsert response: %w", err)
		}

		response = domain.Response{
			ID:          row.ID,
			UserID:      identity.UserID,
			Username:    identity.Username,
			QuizID:      quizID,
			OptionID:    optionID,
			OptionOrder: option.Order,
		}
		return nil
	})
	if err != nil {
		return domain.Response{}, err
	}
	return response, nil
}

func (s *Store) Lessons(ctx context.Context) ([]domain.Lesson, error) {
	var rows []lessonRow
	if err := s.db.NewSelect().Model(&rows).Order("seq ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	lessons := make([]domain.Lesson, 0, len(rows))
	for _, row := range rows {
		lessons = append(lessons, domain.Lesson{
			Seq:   row.Seq,
			State: domain.LessonState(row.State),
			Date:  row.Date,
		})
	}
	return lessons, nil
}

func (s *Store) ActiveQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	var rows []quizRow
	err := s.db.NewSelect().Model(&rows).
		Join("JOIN lessons AS l ON l.seq = q.lesson_seq").
		Where("l.state = ?", int(domain.LessonActive)).
		OrderExpr(`q."order" ASC`).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active quizzes: %w", err)
	}
	quizzes := make([]domain.Quiz, 0, len(rows))
	for _, row := range rows {
		quiz := quizFromRow(row)
		options, err := s.quizOptions(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		quiz.Options = options
		quizzes = append(quizzes, quiz)
	}
	return quizzes, nil
}

func (s *Store) quizOptions(ctx context.Context, quizID int64) ([]domain.Option, error) {
	var rows []optionRow
	err := s.db.NewSelect().Model(&rows).
		Where("o.quiz_id = ?", quizID).
		OrderExpr(`o."order" ASC`).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list quiz options: %w", err)
	}
	options := make([]domain.Option, 0, len(rows))
	for _, row := range rows {
		options = append(options, domain.Option{
			ID:      row.ID,
			Order:   row.Order,
			Content: row.Content,
		})
	}
	return options, nil
}

func (s *Store) Responses(ctx context.Context, userID, quizID int64) ([]domain.Response, error) {
	var rows []struct {
		ID          int64 `bun:"id"`
		QuizID      int64 `bun:"quiz_id"`
		OptionID    int64 `bun:"option_id"`
		OptionOrder int   `bun:"option_order"`
	}
	query := s.db.NewSelect().
		TableExpr("responses AS r").
		ColumnExpr(`r.id, r.quiz_id, r.option_id, o."order" AS option_order`).
		Join("JOIN quizzes AS q ON q.id = r.quiz_id").
		Join("JOIN lessons AS l ON l.seq = q.lesson_seq").
		Join("JOIN options AS o ON o.id = r.option_id").
		Where("r.user_id = ?", userID).
		Where("l.state = ?", int(domain.LessonActive)).
		Where("q.state = ?", int(domain.QuizActive)).
		OrderExpr("r.created_at DESC")
	if quizID > 0 {
		query = query.Where("r.quiz_id = ?", quizID)
	}
	if err := query.Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	responses := make([]domain.Response, 0, len(rows))
	for _, row := range rows {
		responses = append(responses, domain.Response{
			ID:          row.ID,
			UserID:      userID,
			QuizID:      row.QuizID,
			OptionID:    row.OptionID,
			OptionOrder: row.OptionOrder,
		})
	}
	return responses, nil
}

func (s *Store) Student(ctx context.Context, userID int64) (domain.Student, error) {
	row := new(studentRow)
	err := s.db.NewSelect().Model(row).Where("st.user_id = ?", userID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Student{}, domain.ErrStudentNotFound
	}
	if err != nil {
		return domain.Student{}, fmt.Errorf("load student: %w", err)
	}
	return domain.Student{
		UserID:         row.UserID,
		PersonalSID:    row.PersonalSID,
		PersonalName:   row.PersonalName,
		RoleDepartment: row.RoleDepartment,
		RoleMajor:      row.RoleMajor,
		RoleYear:       row.RoleYear,
		EvalProject1:   row.EvalProject1,
		EvalProject2:   row.EvalProject2,
		EvalProject3:   row.EvalProject3,
		EvalMidterm:    row.EvalMidterm,
		EvalFinals:     row.EvalFinals,
		EvalQuiz:       row.EvalQuiz,
		ExtraNote:      row.ExtraNote,
	}, nil
}

func quizFromRow(row quizRow) domain.Quiz {
	quiz := domain.Quiz{
		ID:        row.ID,
		LessonSeq: row.LessonSeq,
		Order:     row.Order,
		Answer:    row.Answer,
		Content:   row.Content,
		State:     domain.QuizState(row.State),
		Note:      row.Note,
	}
	if row.Image.Valid {
		quiz.ImageURL = row.Image.String
	}
	return quiz
}
