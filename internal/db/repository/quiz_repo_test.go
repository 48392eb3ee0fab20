package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/quiz-import/internal/db"
	"github.com/gokatarajesh/quiz-import/internal/quiz"
	"github.com/gokatarajesh/quiz-import/internal/store"
	"github.com/gokatarajesh/quiz-import/internal/store/sqlstore"
)

func newSQLiteStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	conn, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.Migrate(conn, db.DriverSQLite))
	return sqlstore.New(conn)
}

// failOn wraps a store and fails inserts into one table.
type failOn struct {
	store.TableStore
	table     string
	deleteErr error
}

func (f *failOn) Insert(ctx context.Context, table string, rows ...store.Row) ([]store.Row, error) {
	if table == f.table {
		return nil, errors.New("insert refused")
	}
	return f.TableStore.Insert(ctx, table, rows...)
}

func (f *failOn) Delete(ctx context.Context, table, key string, value any) (int64, error) {
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	return f.TableStore.Delete(ctx, table, key, value)
}

func sampleQuestions() []quiz.Question {
	return []quiz.Question{
		{
			SourceNumber: "1", Type: quiz.TypeSingle, Text: "2+2?", Points: 10,
			Body: quiz.ChoiceBody{Options: []quiz.Option{
				{Label: "A", Text: "3"}, {Label: "B", Text: "4", Correct: true},
			}},
		},
		{
			SourceNumber: "2", Type: quiz.TypeMultiple, Text: "Primes?", Points: 5, Explanation: "2 and 3",
			Body: quiz.ChoiceBody{Options: []quiz.Option{
				{Label: "A", Text: "2", Correct: true}, {Label: "B", Text: "3", Correct: true}, {Label: "C", Text: "4"},
			}},
		},
		{
			SourceNumber: "3", Type: quiz.TypeFill, Text: "Capital of France", Points: 10,
			Body: quiz.FreeResponseBody{Answer: "Paris"},
		},
		{
			SourceNumber: "4", Type: quiz.TypeEssay, Text: "Explain gravity", Points: 20, ImageURL: "/media/x.png",
			Body: quiz.FreeResponseBody{Answer: "mass attracts", ExactMatch: true},
		},
	}
}

func countRows(t *testing.T, s store.TableStore, table string) int {
	t.Helper()
	rows, err := s.Select(context.Background(), table, store.Filter{})
	require.NoError(t, err)
	return len(rows)
}

func TestQuizRepository_CreateAndLoad(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)
	repo := NewQuizRepository(s, QuizRepositoryOptions{Transactional: true}, zerolog.Nop())

	set, err := repo.CreateQuiz(ctx, quiz.NewQuizSet{CourseID: "c1", Title: "Unit 1", CreatedBy: "u1"}, sampleQuestions())
	require.NoError(t, err)
	assert.NotEmpty(t, set.ID)
	assert.Nil(t, set.Description)
	require.NotNil(t, set.CreatedBy)
	assert.Equal(t, "u1", *set.CreatedBy)

	assert.Equal(t, 4, countRows(t, s, TableQuestions))
	assert.Equal(t, 5, countRows(t, s, TableOptions))
	assert.Equal(t, 2, countRows(t, s, TableFillAnswers))

	loaded, err := repo.LoadQuiz(ctx, set.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Questions, 4)
	for i, q := range loaded.Questions {
		assert.Equal(t, i+1, q.Number)
	}
	multi := loaded.Questions[1].Body.(quiz.ChoiceBody)
	assert.Equal(t, []string{"A", "B"}, multi.CorrectLabels())
	assert.Equal(t, "2 and 3", loaded.Questions[1].Explanation)
	essay := loaded.Questions[3].Body.(quiz.FreeResponseBody)
	assert.True(t, essay.ExactMatch)
	assert.False(t, essay.CaseSensitive)
	assert.Equal(t, "/media/x.png", loaded.Questions[3].ImageURL)
	assert.Equal(t, 20, loaded.Questions[3].Points)
}

func TestQuizRepository_LoadMissing(t *testing.T) {
	repo := NewQuizRepository(newSQLiteStore(t), QuizRepositoryOptions{}, zerolog.Nop())
	_, err := repo.LoadQuiz(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrQuizNotFound)
}

func TestQuizRepository_TransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)
	repo := NewQuizRepository(txFailOn{Store: s, table: TableFillAnswers}, QuizRepositoryOptions{Transactional: true}, zerolog.Nop())

	_, err := repo.CreateQuiz(ctx, quiz.NewQuizSet{CourseID: "c1", Title: "t"}, sampleQuestions())
	var we *WriteError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, StageFillAnswers, we.Stage)
	assert.False(t, we.Orphaned())

	assert.Zero(t, countRows(t, s, TableQuizSets))
	assert.Zero(t, countRows(t, s, TableQuestions))
	assert.Zero(t, countRows(t, s, TableOptions))
}

// txFailOn keeps the transactional path while failing one table inside the tx.
type txFailOn struct {
	*sqlstore.Store
	table string
}

func (f txFailOn) WithinTx(ctx context.Context, fn func(tx store.TableStore) error) error {
	return f.Store.WithinTx(ctx, func(tx store.TableStore) error {
		return fn(&failOn{TableStore: tx, table: f.table})
	})
}

func TestQuizRepository_CompensatingDelete(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)
	repo := NewQuizRepository(&failOn{TableStore: s, table: TableOptions}, QuizRepositoryOptions{}, zerolog.Nop())

	_, err := repo.CreateQuiz(ctx, quiz.NewQuizSet{CourseID: "c1", Title: "t"}, sampleQuestions())
	var we *WriteError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, StageOptions, we.Stage)
	assert.NotEmpty(t, we.QuizSetID)
	assert.NoError(t, we.RollbackErr)

	assert.Zero(t, countRows(t, s, TableQuizSets))
	assert.Zero(t, countRows(t, s, TableQuestions))
}

func TestQuizRepository_CompensatingDeleteFails(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)
	repo := NewQuizRepository(&failOn{TableStore: s, table: TableQuestions, deleteErr: errors.New("db gone")}, QuizRepositoryOptions{}, zerolog.Nop())

	_, err := repo.CreateQuiz(ctx, quiz.NewQuizSet{CourseID: "c1", Title: "t"}, sampleQuestions())
	var we *WriteError
	require.ErrorAs(t, err, &we)
	assert.True(t, we.Orphaned())
	assert.Contains(t, we.Error(), "rollback of quiz set")
	assert.Equal(t, 1, countRows(t, s, TableQuizSets))
}

func TestQuizRepository_QuizSetFailureNeedsNoRollback(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)
	repo := NewQuizRepository(&failOn{TableStore: s, table: TableQuizSets}, QuizRepositoryOptions{}, zerolog.Nop())

	_, err := repo.CreateQuiz(ctx, quiz.NewQuizSet{CourseID: "c1", Title: "t"}, sampleQuestions())
	var we *WriteError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, StageQuizSet, we.Stage)
	assert.Empty(t, we.QuizSetID)
}

type mockTableStore struct {
	mock.Mock
}

func (m *mockTableStore) Insert(ctx context.Context, table string, rows ...store.Row) ([]store.Row, error) {
	args := m.Called(ctx, table, rows)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]store.Row), args.Error(1)
}

func (m *mockTableStore) Select(ctx context.Context, table string, filter store.Filter) ([]store.Row, error) {
	args := m.Called(ctx, table, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]store.Row), args.Error(1)
}

func (m *mockTableStore) Update(ctx context.Context, table, key string, value any, set store.Row) (int64, error) {
	args := m.Called(ctx, table, key, value, set)
	return int64(args.Int(0)), args.Error(1)
}

func (m *mockTableStore) Delete(ctx context.Context, table, key string, value any) (int64, error) {
	args := m.Called(ctx, table, key, value)
	return int64(args.Int(0)), args.Error(1)
}

func TestQuizRepository_EmptyQuestionListWritesOnlySet(t *testing.T) {
	s := new(mockTableStore)
	repo := NewQuizRepository(s, QuizRepositoryOptions{}, zerolog.Nop())

	s.On("Insert", mock.Anything, TableQuizSets, mock.Anything).
		Return([]store.Row{{"id": "qs1", "course_id": "c1", "title": "t"}}, nil)

	set, err := repo.CreateQuiz(context.Background(), quiz.NewQuizSet{CourseID: "c1", Title: "t"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "qs1", set.ID)
	s.AssertExpectations(t)
	s.AssertNumberOfCalls(t, "Insert", 1)
}

func TestQuizRepository_DeleteQuizSet(t *testing.T) {
	s := new(mockTableStore)
	repo := NewQuizRepository(s, QuizRepositoryOptions{}, zerolog.Nop())
	s.On("Delete", mock.Anything, TableQuizSets, store.KeyColumn, "qs1").Return(1, nil)

	assert.NoError(t, repo.DeleteQuizSet(context.Background(), "qs1"))
	s.AssertExpectations(t)
}

// countingStore records how many rows each Insert call carried.
type countingStore struct {
	store.TableStore
	batches map[string][]int
}

func (c *countingStore) Insert(ctx context.Context, table string, rows ...store.Row) ([]store.Row, error) {
	c.batches[table] = append(c.batches[table], len(rows))
	return c.TableStore.Insert(ctx, table, rows...)
}

func manyChoiceQuestions(n int) []quiz.Question {
	questions := make([]quiz.Question, n)
	for i := range questions {
		questions[i] = quiz.Question{
			SourceNumber: fmt.Sprint(i + 1), Type: quiz.TypeSingle, Text: fmt.Sprintf("question %d", i+1), Points: 10,
			Body: quiz.ChoiceBody{Options: []quiz.Option{
				{Label: "A", Text: "a"}, {Label: "B", Text: "b", Correct: true}, {Label: "C", Text: "c"}, {Label: "D", Text: "d"},
			}},
		}
	}
	return questions
}

func TestQuizRepository_LargeSheetIsBatched(t *testing.T) {
	for _, transactional := range []bool{true, false} {
		t.Run(fmt.Sprintf("transactional=%v", transactional), func(t *testing.T) {
			s := newSQLiteStore(t)
			counting := &countingStore{TableStore: s, batches: map[string][]int{}}
			var target store.TableStore = counting
			if transactional {
				target = s
			}
			repo := NewQuizRepository(target, QuizRepositoryOptions{Transactional: transactional}, zerolog.Nop())

			set, err := repo.CreateQuiz(context.Background(), quiz.NewQuizSet{CourseID: "c1", Title: "Big"}, manyChoiceQuestions(2100))
			require.NoError(t, err)

			assert.Equal(t, 2100, countRows(t, s, TableQuestions))
			assert.Equal(t, 8400, countRows(t, s, TableOptions))

			loaded, err := repo.LoadQuiz(context.Background(), set.ID)
			require.NoError(t, err)
			require.Len(t, loaded.Questions, 2100)
			assert.Equal(t, 2100, loaded.Questions[2099].Number)
			assert.Equal(t, "question 2100", loaded.Questions[2099].Text)

			if !transactional {
				assert.Equal(t, []int{500, 500, 500, 500, 100}, counting.batches[TableQuestions])
				for _, n := range counting.batches[TableOptions] {
					assert.LessOrEqual(t, n, insertBatchRows)
				}
			}
		})
	}
}
