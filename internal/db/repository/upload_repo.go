package repository

import (
	"context"

	"github.com/gokatarajesh/quiz-import/internal/store"
)

// Upload statuses recorded in quiz_uploads.
const (
	UploadCompleted      = "completed"
	UploadFailed         = "failed"
	UploadRolledBack     = "rolled_back"
	UploadRollbackFailed = "rollback_failed"
)

// UploadRecord is one row of the upload history.
type UploadRecord struct {
	ID                string
	FileName          string
	OriginalFilename  string
	FileSize          int64
	Status            string
	QuestionsImported int
	QuizSetID         string
	ErrorMessage      string
	UploadedBy        string
}

// UploadRepository keeps the import audit trail.
type UploadRepository struct {
	store store.TableStore
}

func NewUploadRepository(s store.TableStore) *UploadRepository {
	return &UploadRepository{store: s}
}

// Record appends an upload history row.
func (r *UploadRepository) Record(ctx context.Context, rec UploadRecord) (UploadRecord, error) {
	row := store.Row{
		"file_name":          rec.FileName,
		"original_filename":  rec.OriginalFilename,
		"file_size":          rec.FileSize,
		"upload_status":      rec.Status,
		"questions_imported": rec.QuestionsImported,
		"quiz_set_id":        nullable(rec.QuizSetID),
		"error_message":      nullable(rec.ErrorMessage),
		"uploaded_by":        nullable(rec.UploadedBy),
	}
	if rec.ID != "" {
		row[store.KeyColumn] = rec.ID
	}
	rows, err := r.store.Insert(ctx, TableUploads, row)
	if err != nil {
		return UploadRecord{}, err
	}
	rec.ID = rows[0].ID()
	return rec, nil
}

// ListByStatus returns upload rows in the given status.
func (r *UploadRepository) ListByStatus(ctx context.Context, status string) ([]UploadRecord, error) {
	rows, err := r.store.Select(ctx, TableUploads, store.Filter{"upload_status": status})
	if err != nil {
		return nil, err
	}
	out := make([]UploadRecord, len(rows))
	for i, row := range rows {
		out[i] = UploadRecord{
			ID:                row.ID(),
			FileName:          row.String("file_name"),
			OriginalFilename:  row.String("original_filename"),
			FileSize:          row.Int("file_size"),
			Status:            row.String("upload_status"),
			QuestionsImported: int(row.Int("questions_imported")),
			QuizSetID:         row.String("quiz_set_id"),
			ErrorMessage:      row.String("error_message"),
			UploadedBy:        row.String("uploaded_by"),
		}
	}
	return out, nil
}

// SetStatus moves an upload row to a new status.
func (r *UploadRepository) SetStatus(ctx context.Context, id, status string) error {
	_, err := r.store.Update(ctx, TableUploads, store.KeyColumn, id, store.Row{"upload_status": status})
	return err
}
