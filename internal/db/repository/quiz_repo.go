package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/quiz-import/internal/quiz"
	"github.com/gokatarajesh/quiz-import/internal/store"
)

// Table names.
const (
	TableQuizSets    = "quiz_sets"
	TableQuestions   = "quiz_questions"
	TableOptions     = "quiz_options"
	TableFillAnswers = "quiz_fill_answers"
	TableUploads     = "quiz_uploads"
)

// Write stages reported by WriteError.
const (
	StageQuizSet     = "quiz_set"
	StageQuestions   = "questions"
	StageOptions     = "options"
	StageFillAnswers = "fill_answers"
)

// insertBatchRows bounds the rows per INSERT statement.
const insertBatchRows = 500

var ErrQuizNotFound = errors.New("quiz set not found")

// WriteError reports a failed quiz write and the outcome of undoing it.
type WriteError struct {
	Stage       string
	QuizSetID   string
	Err         error
	RollbackErr error
}

func (e *WriteError) Error() string {
	msg := fmt.Sprintf("write %s: %v", e.Stage, e.Err)
	if e.RollbackErr != nil {
		msg += fmt.Sprintf(" (rollback of quiz set %s failed: %v)", e.QuizSetID, e.RollbackErr)
	}
	return msg
}

func (e *WriteError) Unwrap() error { return e.Err }

// Orphaned reports whether a partially written quiz set may remain.
func (e *WriteError) Orphaned() bool { return e.RollbackErr != nil }

// QuizRepositoryOptions tunes how quiz sets are written.
type QuizRepositoryOptions struct {
	// Transactional wraps the writes in one transaction when the store supports it.
	// Otherwise a failed write is undone by deleting the quiz set.
	Transactional bool
}

// QuizRepository writes validated questions across the quiz tables.
type QuizRepository struct {
	store  store.TableStore
	opts   QuizRepositoryOptions
	logger zerolog.Logger
}

func NewQuizRepository(s store.TableStore, opts QuizRepositoryOptions, logger zerolog.Logger) *QuizRepository {
	return &QuizRepository{
		store:  s,
		opts:   opts,
		logger: logger.With().Str("component", "quiz_repository").Logger(),
	}
}

// CreateQuiz writes the quiz set, then its questions, then options and fill
// answers. Question numbers follow slice order starting at 1.
func (r *QuizRepository) CreateQuiz(ctx context.Context, set quiz.NewQuizSet, questions []quiz.Question) (quiz.QuizSet, error) {
	if tx, ok := r.store.(store.Transactor); ok && r.opts.Transactional {
		var created quiz.QuizSet
		err := tx.WithinTx(ctx, func(ts store.TableStore) error {
			var err error
			created, err = writeQuiz(ctx, ts, set, questions)
			return err
		})
		if err != nil {
			var we *WriteError
			if errors.As(err, &we) {
				return quiz.QuizSet{}, we
			}
			return quiz.QuizSet{}, &WriteError{Stage: StageQuizSet, Err: err}
		}
		return created, nil
	}

	created, err := writeQuiz(ctx, r.store, set, questions)
	if err == nil {
		return created, nil
	}
	var we *WriteError
	if !errors.As(err, &we) {
		return quiz.QuizSet{}, err
	}
	if we.Stage != StageQuizSet && we.QuizSetID != "" {
		if _, delErr := r.store.Delete(ctx, TableQuizSets, store.KeyColumn, we.QuizSetID); delErr != nil {
			we.RollbackErr = delErr
			r.logger.Error().Err(delErr).Str("quiz_set_id", we.QuizSetID).Msg("compensating delete failed")
		} else {
			r.logger.Warn().Err(we.Err).Str("quiz_set_id", we.QuizSetID).Str("stage", we.Stage).Msg("quiz set rolled back")
		}
	}
	return quiz.QuizSet{}, we
}

func writeQuiz(ctx context.Context, ts store.TableStore, set quiz.NewQuizSet, questions []quiz.Question) (quiz.QuizSet, error) {
	sets, err := ts.Insert(ctx, TableQuizSets, store.Row{
		"course_id":   set.CourseID,
		"title":       set.Title,
		"description": nullable(set.Description),
		"created_by":  nullable(set.CreatedBy),
	})
	if err != nil {
		return quiz.QuizSet{}, &WriteError{Stage: StageQuizSet, Err: err}
	}
	created := quizSetFromRow(sets[0])
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}
	if len(questions) == 0 {
		return created, nil
	}

	questionRows := make([]store.Row, len(questions))
	for i, q := range questions {
		questionRows[i] = store.Row{
			"quiz_set_id":     created.ID,
			"question_number": i + 1,
			"question_type":   string(q.Type),
			"question_text":   q.Text,
			"image_url":       nullable(q.ImageURL),
			"explanation":     nullable(q.Explanation),
			"points":          q.Points,
		}
	}
	savedQuestions, err := insertBatched(ctx, ts, TableQuestions, questionRows)
	if err != nil {
		return quiz.QuizSet{}, &WriteError{Stage: StageQuestions, QuizSetID: created.ID, Err: err}
	}

	var optionRows, answerRows []store.Row
	for i, q := range questions {
		questionID := savedQuestions[i].ID()
		switch body := q.Body.(type) {
		case quiz.ChoiceBody:
			for _, o := range body.Options {
				optionRows = append(optionRows, store.Row{
					"question_id":  questionID,
					"option_label": o.Label,
					"option_text":  o.Text,
					"is_correct":   o.Correct,
				})
			}
		case quiz.FreeResponseBody:
			answerRows = append(answerRows, store.Row{
				"question_id":    questionID,
				"correct_answer": body.Answer,
				"case_sensitive": body.CaseSensitive,
				"exact_match":    body.ExactMatch,
			})
		}
	}
	if len(optionRows) > 0 {
		if _, err := insertBatched(ctx, ts, TableOptions, optionRows); err != nil {
			return quiz.QuizSet{}, &WriteError{Stage: StageOptions, QuizSetID: created.ID, Err: err}
		}
	}
	if len(answerRows) > 0 {
		if _, err := insertBatched(ctx, ts, TableFillAnswers, answerRows); err != nil {
			return quiz.QuizSet{}, &WriteError{Stage: StageFillAnswers, QuizSetID: created.ID, Err: err}
		}
	}
	return created, nil
}

// insertBatched splits rows into statements of at most insertBatchRows rows so
// a large sheet stays under the bind parameter limit (32766 on SQLite, 65535
// on Postgres). Returned rows keep the input order.
func insertBatched(ctx context.Context, ts store.TableStore, table string, rows []store.Row) ([]store.Row, error) {
	saved := make([]store.Row, 0, len(rows))
	for start := 0; start < len(rows); start += insertBatchRows {
		end := min(start+insertBatchRows, len(rows))
		out, err := ts.Insert(ctx, table, rows[start:end]...)
		if err != nil {
			return nil, err
		}
		saved = append(saved, out...)
	}
	return saved, nil
}

// DeleteQuizSet removes a quiz set; children go with it through ON DELETE CASCADE.
func (r *QuizRepository) DeleteQuizSet(ctx context.Context, id string) error {
	_, err := r.store.Delete(ctx, TableQuizSets, store.KeyColumn, id)
	return err
}

// LoadedQuiz is a quiz set read back with its questions.
type LoadedQuiz struct {
	QuizSet   quiz.QuizSet    `json:"quizSet"`
	Questions []quiz.Question `json:"questions"`
}

// LoadQuiz reads a quiz set and rebuilds its questions ordered by number.
func (r *QuizRepository) LoadQuiz(ctx context.Context, id string) (LoadedQuiz, error) {
	sets, err := r.store.Select(ctx, TableQuizSets, store.Filter{store.KeyColumn: id})
	if err != nil {
		return LoadedQuiz{}, err
	}
	if len(sets) == 0 {
		return LoadedQuiz{}, ErrQuizNotFound
	}
	rows, err := r.store.Select(ctx, TableQuestions, store.Filter{"quiz_set_id": id})
	if err != nil {
		return LoadedQuiz{}, err
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Int("question_number") < rows[j].Int("question_number") })

	out := LoadedQuiz{QuizSet: quizSetFromRow(sets[0]), Questions: make([]quiz.Question, 0, len(rows))}
	for _, row := range rows {
		q := quiz.Question{
			Number:      int(row.Int("question_number")),
			Type:        quiz.Type(row.String("question_type")),
			Text:        row.String("question_text"),
			ImageURL:    row.String("image_url"),
			Explanation: row.String("explanation"),
			Points:      int(row.Int("points")),
		}
		if q.Type.Choice() {
			opts, err := r.store.Select(ctx, TableOptions, store.Filter{"question_id": row.ID()})
			if err != nil {
				return LoadedQuiz{}, err
			}
			sort.Slice(opts, func(i, j int) bool { return opts[i].String("option_label") < opts[j].String("option_label") })
			body := quiz.ChoiceBody{Options: make([]quiz.Option, len(opts))}
			for i, o := range opts {
				body.Options[i] = quiz.Option{
					Label:   o.String("option_label"),
					Text:    o.String("option_text"),
					Correct: o.Bool("is_correct"),
				}
			}
			q.Body = body
		} else {
			answers, err := r.store.Select(ctx, TableFillAnswers, store.Filter{"question_id": row.ID()})
			if err != nil {
				return LoadedQuiz{}, err
			}
			if len(answers) > 0 {
				q.Body = quiz.FreeResponseBody{
					Answer:        answers[0].String("correct_answer"),
					CaseSensitive: answers[0].Bool("case_sensitive"),
					ExactMatch:    answers[0].Bool("exact_match"),
				}
			}
		}
		out.Questions = append(out.Questions, q)
	}
	return out, nil
}

func quizSetFromRow(row store.Row) quiz.QuizSet {
	qs := quiz.QuizSet{
		ID:       row.ID(),
		CourseID: row.String("course_id"),
		Title:    row.String("title"),
	}
	if !row.Null("description") {
		d := row.String("description")
		qs.Description = &d
	}
	if !row.Null("created_by") {
		c := row.String("created_by")
		qs.CreatedBy = &c
	}
	if ts, ok := row["created_at"].(time.Time); ok {
		qs.CreatedAt = ts
	}
	return qs
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
