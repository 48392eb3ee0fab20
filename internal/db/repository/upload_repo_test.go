package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadRepository_RecordAndList(t *testing.T) {
	ctx := context.Background()
	repo := NewUploadRepository(newSQLiteStore(t))

	rec, err := repo.Record(ctx, UploadRecord{
		FileName:          "quiz-images/imp1/questions.zip",
		OriginalFilename:  "questions.zip",
		FileSize:          2048,
		Status:            UploadRollbackFailed,
		QuizSetID:         "qs-orphan",
		ErrorMessage:      "write options: boom",
		UploadedBy:        "admin",
		QuestionsImported: 0,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)

	_, err = repo.Record(ctx, UploadRecord{FileName: "b.zip", OriginalFilename: "b.zip", Status: UploadCompleted, QuestionsImported: 3})
	require.NoError(t, err)

	pending, err := repo.ListByStatus(ctx, UploadRollbackFailed)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "qs-orphan", pending[0].QuizSetID)
	assert.Equal(t, int64(2048), pending[0].FileSize)

	require.NoError(t, repo.SetStatus(ctx, rec.ID, UploadRolledBack))
	pending, err = repo.ListByStatus(ctx, UploadRollbackFailed)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
