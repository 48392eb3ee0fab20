package quizimport

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gokatarajesh/quiz-import/internal/archive"
	"github.com/gokatarajesh/quiz-import/internal/db/repository"
	"github.com/gokatarajesh/quiz-import/internal/quiz"
	"github.com/gokatarajesh/quiz-import/internal/tabular"
)

// QuizWriter persists a validated quiz.
type QuizWriter interface {
	CreateQuiz(ctx context.Context, set quiz.NewQuizSet, questions []quiz.Question) (quiz.QuizSet, error)
}

// UploadRecorder keeps the upload history.
type UploadRecorder interface {
	Record(ctx context.Context, rec repository.UploadRecord) (repository.UploadRecord, error)
}

// ObjectStore stores bytes under a key and returns a public URL.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// PreviewCache remembers previews of identical archives.
type PreviewCache interface {
	Get(ctx context.Context, key string) (*Preview, error)
	Set(ctx context.Context, key string, p Preview) error
}

// ProgressReporter receives state transitions of a run.
type ProgressReporter interface {
	Report(p Progress)
}

type Options struct {
	// StrictImages aborts the import when any image upload fails. When false a
	// failed upload is logged and the question keeps no image.
	StrictImages      bool
	MaxImageBytes     int64
	MaxEntryBytes     int64
	PreviewQuestions  int
	UploadConcurrency int
	ImagePathPrefix   string
	Matchers          []archive.Matcher
}

// Importer runs the archive import pipeline.
type Importer struct {
	quizzes  QuizWriter
	uploads  UploadRecorder
	objects  ObjectStore
	cache    PreviewCache
	progress ProgressReporter
	images   *ImageResolver
	opts     Options
	logger   zerolog.Logger
}

// NewImporter wires the pipeline. uploads, cache and progress may be nil.
func NewImporter(quizzes QuizWriter, objects ObjectStore, uploads UploadRecorder, cache PreviewCache, progress ProgressReporter, opts Options, logger zerolog.Logger) *Importer {
	if opts.PreviewQuestions <= 0 {
		opts.PreviewQuestions = 3
	}
	if opts.UploadConcurrency <= 0 {
		opts.UploadConcurrency = 4
	}
	if opts.ImagePathPrefix == "" {
		opts.ImagePathPrefix = "quiz-images"
	}
	if opts.MaxImageBytes <= 0 {
		opts.MaxImageBytes = DefaultMaxImageBytes
	}
	logger = logger.With().Str("component", "quiz_importer").Logger()
	return &Importer{
		quizzes:  quizzes,
		uploads:  uploads,
		objects:  objects,
		cache:    cache,
		progress: progress,
		images:   NewImageResolver(opts.MaxImageBytes, logger),
		opts:     opts,
		logger:   logger,
	}
}

// Import parses, validates and either previews or commits an archive.
func (i *Importer) Import(ctx context.Context, req Request) (Result, error) {
	if req.ImportID == "" {
		req.ImportID = uuid.NewString()
	}
	mode := modeLabel(req.Preview)
	start := time.Now()
	defer func() { importDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds()) }()

	log := i.logger.With().Str("import_id", req.ImportID).Str("mode", mode).Logger()

	res, err := i.run(ctx, req, log)
	if err != nil {
		importsTotal.WithLabelValues(mode, outcomeOf(err)).Inc()
		i.report(Progress{ImportID: req.ImportID, State: StateAborted, Message: err.Error()})
		log.Warn().Err(err).Msg("import aborted")
		return Result{ImportID: req.ImportID}, err
	}
	importsTotal.WithLabelValues(mode, "ok").Inc()
	return res, nil
}

func (i *Importer) run(ctx context.Context, req Request, log zerolog.Logger) (Result, error) {
	var cacheKey string
	if req.Preview && i.cache != nil {
		cacheKey = i.previewKey(req.Data)
		if cached, err := i.cache.Get(ctx, cacheKey); err != nil {
			log.Warn().Err(err).Msg("preview cache read failed")
		} else if cached != nil {
			previewCacheTotal.WithLabelValues("hit").Inc()
			i.report(Progress{ImportID: req.ImportID, State: StatePreview, Questions: cached.TotalQuestions, Errors: len(cached.Errors)})
			return Result{ImportID: req.ImportID, Preview: cached}, nil
		}
		previewCacheTotal.WithLabelValues("miss").Inc()
	}

	i.report(Progress{ImportID: req.ImportID, State: StateExtracting})
	rd, table, err := i.extract(req.Data)
	if err != nil {
		i.audit(ctx, req, repository.UploadFailed, 0, "", err)
		return Result{}, err
	}
	i.report(Progress{ImportID: req.ImportID, State: StateParsing})
	log.Debug().Int("rows", len(table.Records)).Msg("sheet parsed")

	i.report(Progress{ImportID: req.ImportID, State: StateValidating})
	questions, errs := Validate(table.Records)
	images, imageErrs := i.images.Resolve(rd, questions)
	errs = append(errs, imageErrs...)
	rowErrorsTotal.Add(float64(len(errs)))

	if req.Preview {
		p := i.buildPreview(questions, images, errs)
		if cacheKey != "" {
			if err := i.cache.Set(ctx, cacheKey, p); err != nil {
				log.Warn().Err(err).Msg("preview cache write failed")
			}
		}
		i.report(Progress{ImportID: req.ImportID, State: StatePreview, Questions: p.TotalQuestions, Errors: len(errs)})
		return Result{ImportID: req.ImportID, Preview: &p}, nil
	}

	if len(errs) > 0 {
		verr := &ValidationError{Errors: errs}
		i.audit(ctx, req, repository.UploadFailed, 0, "", verr)
		return Result{}, verr
	}

	i.report(Progress{ImportID: req.ImportID, State: StateUploading, Questions: len(questions)})
	urls, err := i.uploadImages(ctx, req.ImportID, images, log)
	if err != nil {
		i.audit(ctx, req, repository.UploadFailed, 0, "", err)
		return Result{}, err
	}
	for n := range questions {
		if name := questions[n].ImageFile; name != "" {
			questions[n].ImageURL = urls[name]
		}
	}

	i.report(Progress{ImportID: req.ImportID, State: StatePersisting, Questions: len(questions)})
	set, err := i.quizzes.CreateQuiz(ctx, quiz.NewQuizSet{
		CourseID:    req.CourseID,
		Title:       req.Title,
		Description: req.Description,
		CreatedBy:   req.CreatedBy,
	}, questions)
	if err != nil {
		status, quizSetID := rollbackStatus(err)
		rollbacksTotal.WithLabelValues(status).Inc()
		i.audit(ctx, req, status, 0, quizSetID, err)
		return Result{}, &PersistenceError{Err: err}
	}

	i.audit(ctx, req, repository.UploadCompleted, len(questions), set.ID, nil)
	i.report(Progress{ImportID: req.ImportID, State: StateCommitted, Questions: len(questions)})
	log.Info().Str("quiz_set_id", set.ID).Int("questions", len(questions)).Int("images", len(urls)).Msg("quiz imported")

	return Result{
		ImportID: req.ImportID,
		Committed: &Committed{
			QuizSet:           set,
			QuestionsImported: len(questions),
			ImagesUploaded:    len(urls),
		},
	}, nil
}

// extract opens the archive, finds the question sheet and parses it.
func (i *Importer) extract(data []byte) (*archive.Reader, *tabular.Table, error) {
	rd, err := archive.Open(data, i.opts.MaxEntryBytes)
	if err != nil {
		return nil, nil, &StructuralError{Code: CodeArchiveUnreadable, Message: "無法讀取 ZIP 檔案", Err: err}
	}

	entry, format, err := rd.Locate(i.opts.Matchers...)
	if err != nil {
		var nf *archive.DataFileNotFoundError
		if errors.As(err, &nf) {
			return nil, nil, &StructuralError{
				Code:    CodeDataFileNotFound,
				Message: "ZIP 檔案中找不到 questions.xlsx 或 questions.csv",
				Details: map[string]any{
					"foundFiles": nf.Entries,
					"hint":       "請將 questions.xlsx 或 questions.csv 放在 ZIP 根目錄或 questions/ 資料夾中",
				},
				Err: err,
			}
		}
		return nil, nil, &StructuralError{Code: CodeArchiveUnreadable, Message: "無法讀取 ZIP 檔案", Err: err}
	}

	raw, err := rd.Read(entry.Name)
	if err != nil {
		return nil, nil, &StructuralError{
			Code:    CodeDataFileUnreadable,
			Message: "無法讀取題目檔案 " + entry.Name,
			Err:     err,
		}
	}

	table, err := tabular.Parse(raw, format)
	if err != nil {
		fileType := "Excel"
		if format == archive.FormatCSV {
			fileType = "CSV"
		}
		return nil, nil, &StructuralError{
			Code:    CodeParseFailed,
			Message: "題目檔案格式錯誤",
			Details: map[string]any{"reason": err.Error(), "fileType": fileType},
			Err:     err,
		}
	}
	return rd, table, nil
}

func (i *Importer) buildPreview(questions []quiz.Question, images map[string]Image, errs []string) Preview {
	p := Preview{
		TotalQuestions: len(questions),
		QuestionTypes:  map[string]int{},
		Questions:      []quiz.Question{},
		ImagesFound:    len(images),
		Errors:         errs,
	}
	if p.Errors == nil {
		p.Errors = []string{}
	}
	for _, q := range questions {
		p.QuestionTypes[q.Type.Label()]++
	}
	n := min(i.opts.PreviewQuestions, len(questions))
	p.Questions = append(p.Questions, questions[:n]...)
	return p
}

// uploadImages stores every resolved image and returns name -> URL for the
// ones that made it.
func (i *Importer) uploadImages(ctx context.Context, importID string, images map[string]Image, log zerolog.Logger) (map[string]string, error) {
	urls := make(map[string]string, len(images))
	if len(images) == 0 || i.objects == nil {
		return urls, nil
	}

	names := make([]string, 0, len(images))
	for name := range images {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		mu     sync.Mutex
		failed []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.opts.UploadConcurrency)
	for _, name := range names {
		img := images[name]
		g.Go(func() error {
			key := path.Join(i.opts.ImagePathPrefix, importID, img.Name)
			url, err := i.objects.Put(gctx, key, img.Data, img.ContentType)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				imageUploadsTotal.WithLabelValues("failed").Inc()
				failed = append(failed, img.Name)
				log.Warn().Err(err).Str("image", img.Name).Msg("image upload failed")
				if i.opts.StrictImages {
					return fmt.Errorf("%s: %w", img.Name, err)
				}
				return nil
			}
			imageUploadsTotal.WithLabelValues("ok").Inc()
			urls[img.Name] = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		sort.Strings(failed)
		return nil, &UploadError{Failed: failed, Err: err}
	}
	return urls, nil
}

func (i *Importer) audit(ctx context.Context, req Request, status string, imported int, quizSetID string, cause error) {
	if req.Preview || i.uploads == nil {
		return
	}
	rec := repository.UploadRecord{
		FileName:          path.Join(req.ImportID, req.FileName),
		OriginalFilename:  req.FileName,
		FileSize:          int64(len(req.Data)),
		Status:            status,
		QuestionsImported: imported,
		QuizSetID:         quizSetID,
		UploadedBy:        req.CreatedBy,
	}
	if cause != nil {
		rec.ErrorMessage = cause.Error()
	}
	// recorded even when the request context is already cancelled
	if _, err := i.uploads.Record(context.WithoutCancel(ctx), rec); err != nil {
		i.logger.Error().Err(err).Str("import_id", req.ImportID).Str("status", status).Msg("upload history write failed")
	}
}

func (i *Importer) report(p Progress) {
	if i.progress != nil {
		i.progress.Report(p)
	}
}

func (i *Importer) previewKey(data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("quizimport:preview:%s:%d:%d", hex.EncodeToString(sum[:]), i.opts.PreviewQuestions, i.opts.MaxImageBytes)
}

func rollbackStatus(err error) (string, string) {
	var we *repository.WriteError
	if !errors.As(err, &we) {
		return repository.UploadFailed, ""
	}
	switch {
	case we.Orphaned():
		return repository.UploadRollbackFailed, we.QuizSetID
	case we.QuizSetID != "":
		return repository.UploadRolledBack, we.QuizSetID
	default:
		return repository.UploadFailed, ""
	}
}

func outcomeOf(err error) string {
	var (
		se *StructuralError
		ve *ValidationError
		ue *UploadError
		pe *PersistenceError
	)
	switch {
	case errors.As(err, &se):
		return "structural_error"
	case errors.As(err, &ve):
		return "validation_error"
	case errors.As(err, &ue):
		return "upload_error"
	case errors.As(err, &pe):
		return "persistence_error"
	default:
		return "error"
	}
}
