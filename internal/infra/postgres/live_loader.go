package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"golang.org/x/sync/singleflight"

	"liveclass-service/internal/domain"
)

// LiveLoader is the read-optimized side: raw SQL over a pgx pool for the
// live-quiz lookup and the results aggregation. The live-quiz lookup is
// always a fresh query: it runs after a transition commits and its result is
// pushed as the latest state, so it must never be satisfied by a read that
// started before that commit. Results reads are poll-style; concurrent
// identical requests are collapsed with singleflight.
type LiveLoader struct {
	pool *pgxpool.Pool
	sf   singleflight.Group
}

func NewLiveLoader(pool *pgxpool.Pool) *LiveLoader {
	return &LiveLoader{pool: pool}
}

func (l *LiveLoader) LiveQuiz(ctx context.Context, states []domain.QuizState) (*domain.Quiz, error) {
	stateCodes := make([]int32, 0, len(states))
	for _, state := range states {
		stateCodes = append(stateCodes, int32(state))
	}

	quiz := new(domain.Quiz)
	var image sql.NullString
	err := l.pool.QueryRow(ctx, `
		SELECT q.id, q.lesson_seq, q."order", q.answer, q.content, q.image, q.state, q.note
		FROM quizzes q
		JOIN lessons l ON l.seq = q.lesson_seq
		WHERE l.state = $1 AND q.state = ANY($2::int4[])
		ORDER BY l.seq, q."order"
		LIMIT 1`,
		int(domain.LessonActive), stateCodes,
	).Scan(&quiz.ID, &quiz.LessonSeq, &quiz.Order, &quiz.Answer, &quiz.Content, &image, &quiz.State, &quiz.Note)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load live quiz: %w", err)
	}
	if image.Valid {
		quiz.ImageURL = image.String
	}

	rows, err := l.pool.Query(ctx, `
		SELECT id, "order", content
		FROM options
		WHERE quiz_id = $1
		ORDER BY "order"`,
		quiz.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("load live quiz options: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var option domain.Option
		if err := rows.Scan(&option.ID, &option.Order, &option.Content); err != nil {
			return nil, fmt.Errorf("scan option: %w", err)
		}
		quiz.Options = append(quiz.Options, option)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read options: %w", err)
	}
	return quiz, nil
}

func (l *LiveLoader) QuizResults(ctx context.Context, quizID int64) (domain.QuizResults, error) {
	result, err, _ := l.sf.Do(resultsKey(quizID), func() (interface{}, error) {
		return l.loadQuizResults(ctx, quizID)
	})
	if err != nil {
		return domain.QuizResults{}, err
	}
	return result.(domain.QuizResults), nil
}

func (l *LiveLoader) loadQuizResults(ctx context.Context, quizID int64) (domain.QuizResults, error) {
	var order, state int
	err := l.pool.QueryRow(ctx, `
		SELECT q."order", q.state
		FROM quizzes q
		JOIN lessons l ON l.seq = q.lesson_seq
		WHERE q.id = $1 AND l.state = $2`,
		quizID, int(domain.LessonActive),
	).Scan(&order, &state)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuizResults{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.QuizResults{}, fmt.Errorf("load quiz for results: %w", err)
	}
	if domain.QuizState(state) != domain.QuizReviewing {
		return domain.QuizResults{}, &domain.NotReviewingError{Order: order}
	}

	rows, err := l.pool.Query(ctx, `
		SELECT o."order", COUNT(r.id)
		FROM options o
		LEFT JOIN responses r ON r.option_id = o.id
		WHERE o.quiz_id = $1
		GROUP BY o."order"
		ORDER BY o."order"`,
		quizID,
	)
	if err != nil {
		return domain.QuizResults{}, fmt.Errorf("aggregate responses: %w", err)
	}
	defer rows.Close()

	results := domain.QuizResults{Orders: []int{}, Counts: []int{}}
	for rows.Next() {
		var optionOrder, count int
		if err := rows.Scan(&optionOrder, &count); err != nil {
			return domain.QuizResults{}, fmt.Errorf("scan tally: %w", err)
		}
		results.Orders = append(results.Orders, optionOrder)
		results.Counts = append(results.Counts, count)
	}
	if err := rows.Err(); err != nil {
		return domain.QuizResults{}, fmt.Errorf("read tallies: %w", err)
	}

	// Total counts every response for the quiz, not the summed tallies; a
	// response can outlive its option's membership after data mutation.
	err = l.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM responses WHERE quiz_id = $1`, quizID,
	).Scan(&results.Total)
	if err != nil {
		return domain.QuizResults{}, fmt.Errorf("count responses: %w", err)
	}
	return results, nil
}

func resultsKey(quizID int64) string {
	return "results:" + strconv.FormatInt(quizID, 10)
}
