package quizimport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/quiz-import/internal/auth"
	"github.com/gokatarajesh/quiz-import/internal/db/repository"
	"github.com/gokatarajesh/quiz-import/internal/logging"
	httperrors "github.com/gokatarajesh/quiz-import/pkg/http/errors"
)

// MaxListedErrors caps row errors returned for a failed preview.
const MaxListedErrors = 20

const defaultMaxUploadBytes int64 = 50 << 20

type importRunner interface {
	Import(ctx context.Context, req Request) (Result, error)
}

type quizLoader interface {
	LoadQuiz(ctx context.Context, id string) (repository.LoadedQuiz, error)
}

type importForm struct {
	CourseID    string `form:"courseId" validate:"required,max=64"`
	Title       string `form:"title" validate:"required,max=200"`
	Description string `form:"description" validate:"max=2000"`
	ImportID    string `form:"importId" validate:"omitempty,uuid"`
	FileName    string `form:"zipFile" validate:"required"`
}

// HTTPHandler exposes the import pipeline over multipart HTTP.
type HTTPHandler struct {
	importer  importRunner
	quizzes   quizLoader
	validate  *validator.Validate
	maxUpload int64
	logger    zerolog.Logger
}

func NewHTTPHandler(importer importRunner, quizzes quizLoader, maxUploadBytes int64, logger zerolog.Logger) *HTTPHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("form")
	})
	return &HTTPHandler{
		importer:  importer,
		quizzes:   quizzes,
		validate:  v,
		maxUpload: maxUploadBytes,
		logger:    logger.With().Str("component", "quiz_import_http").Logger(),
	}
}

// HandleImport accepts an archive upload.
// Route: POST /v1/quizzes/import
func (h *HTTPHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			httperrors.RespondError(w, http.StatusRequestEntityTooLarge, httperrors.ErrCodePayloadTooLarge, "上傳檔案過大")
			return
		}
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid multipart form")
		return
	}

	form := importForm{
		CourseID:    strings.TrimSpace(r.FormValue("courseId")),
		Title:       strings.TrimSpace(r.FormValue("title")),
		Description: strings.TrimSpace(r.FormValue("description")),
		ImportID:    strings.TrimSpace(r.FormValue("importId")),
	}
	file, header, err := r.FormFile("zipFile")
	if err == nil {
		defer file.Close()
		form.FileName = header.Filename
	}
	if err := h.validate.Struct(form); err != nil {
		respondFormErrors(w, err)
		return
	}
	if !strings.HasSuffix(strings.ToLower(form.FileName), ".zip") {
		httperrors.RespondValidationError(w, httperrors.ErrCodeInvalidFileType, "只接受 ZIP 檔案", "zipFile")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "無法讀取上傳檔案")
		return
	}

	req := Request{
		ImportID:    form.ImportID,
		CourseID:    form.CourseID,
		Title:       form.Title,
		Description: form.Description,
		FileName:    form.FileName,
		Data:        data,
		Preview:     r.FormValue("preview") == "true",
	}
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		req.CreatedBy = claims.UserID
	}

	res, err := h.importer.Import(r.Context(), req)
	if err != nil {
		h.respondImportError(w, err)
		return
	}

	if p := res.Preview; p != nil {
		if p.TotalQuestions == 0 && len(p.Errors) > 0 {
			httperrors.Respond(w, http.StatusBadRequest, httperrors.ErrorResponse{
				Error:       httperrors.ErrCodeValidationFailed,
				Message:     "沒有可匯入的題目",
				Details:     capErrors(p.Errors),
				TotalErrors: len(p.Errors),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"importId": res.ImportID,
			"preview":  p,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":           true,
		"importId":          res.ImportID,
		"quizSet":           res.Committed.QuizSet,
		"questionsImported": res.Committed.QuestionsImported,
		"imagesUploaded":    res.Committed.ImagesUploaded,
	})
}

// HandleGetQuiz returns an imported quiz with its questions.
// Route: GET /v1/quizzes/{id}
func (h *HTTPHandler) HandleGetQuiz(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeMissingField, "quiz id required")
		return
	}
	loaded, err := h.quizzes.LoadQuiz(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrQuizNotFound) {
			httperrors.RespondNotFound(w, httperrors.ErrCodeNotFound, "Quiz set not found")
			return
		}
		l := logging.FromContext(r.Context())
		l.Error().Err(err).Str("quiz_set_id", id).Msg("load quiz failed")
		httperrors.RespondInternalError(w, "Failed to load quiz")
		return
	}
	writeJSON(w, http.StatusOK, loaded)
}

func (h *HTTPHandler) respondImportError(w http.ResponseWriter, err error) {
	var (
		se *StructuralError
		ve *ValidationError
		ue *UploadError
		pe *PersistenceError
	)
	switch {
	case errors.As(err, &se):
		httperrors.RespondErrorWithDetails(w, http.StatusBadRequest, se.Code, se.Message, se.Details)
	case errors.As(err, &ve):
		httperrors.Respond(w, http.StatusBadRequest, httperrors.ErrorResponse{
			Error:       httperrors.ErrCodeImportBlocked,
			Message:     "資料驗證失敗，未匯入任何題目",
			Details:     ve.Errors,
			TotalErrors: len(ve.Errors),
		})
	case errors.As(err, &ue):
		httperrors.RespondErrorWithDetails(w, http.StatusBadGateway, httperrors.ErrCodeImageUploadFailed, "圖片上傳失敗", ue.Failed)
	case errors.As(err, &pe):
		httperrors.RespondError(w, http.StatusInternalServerError, httperrors.ErrCodePersistFailed, "建立測驗失敗: "+pe.Err.Error())
	default:
		h.logger.Error().Err(err).Msg("import failed")
		httperrors.RespondInternalError(w, "Import failed")
	}
}

func respondFormErrors(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid input")
		return
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	if len(verrs) == 1 && verrs[0].Tag() == "required" {
		httperrors.Respond(w, http.StatusBadRequest, httperrors.ErrorResponse{
			Error:   httperrors.ErrCodeMissingField,
			Message: "缺少必要欄位",
			Field:   verrs[0].Field(),
			Details: fields,
		})
		return
	}
	httperrors.RespondErrorWithDetails(w, http.StatusBadRequest, httperrors.ErrCodeValidationFailed, "表單驗證失敗", fields)
}

func capErrors(errs []string) []string {
	if len(errs) > MaxListedErrors {
		return errs[:MaxListedErrors]
	}
	return errs
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
