package quizimport

import (
	"fmt"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/quiz-import/internal/archive"
	"github.com/gokatarajesh/quiz-import/internal/quiz"
)

// DefaultMaxImageBytes is the per-image size limit.
const DefaultMaxImageBytes int64 = 2 << 20

var imageExtensions = map[string]struct{}{
	"jpg": {}, "jpeg": {}, "png": {}, "gif": {},
}

var imageMIMEs = []string{"image/jpeg", "image/png", "image/gif"}

// Image is an image extracted from the archive.
type Image struct {
	Name        string
	Data        []byte
	Size        int64
	ContentType string
}

type entrySource interface {
	Entries() []archive.Entry
	Read(name string) ([]byte, error)
}

// ImageResolver collects usable images from an archive and checks the
// references made by questions. It only rejects; it never resizes or recompresses.
type ImageResolver struct {
	maxBytes int64
	logger   zerolog.Logger
}

func NewImageResolver(maxBytes int64, logger zerolog.Logger) *ImageResolver {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	return &ImageResolver{
		maxBytes: maxBytes,
		logger:   logger.With().Str("component", "image_resolver").Logger(),
	}
}

// Resolve returns images keyed by base name plus accumulated image errors.
func (r *ImageResolver) Resolve(src entrySource, questions []quiz.Question) (map[string]Image, []string) {
	images := map[string]Image{}
	var errs []string

	for _, e := range src.Entries() {
		if e.IsDir || e.Noise() {
			continue
		}
		name := e.Base()
		ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
		if _, ok := imageExtensions[ext]; !ok {
			continue
		}
		if e.Size > r.maxBytes {
			errs = append(errs, fmt.Sprintf("圖片 %s 超過 %s 大小限制", name, formatLimit(r.maxBytes)))
			continue
		}
		if _, dup := images[name]; dup {
			r.logger.Warn().Str("entry", e.Name).Msg("duplicate image name ignored")
			continue
		}

		data, err := src.Read(e.Name)
		if err != nil {
			errs = append(errs, fmt.Sprintf("圖片 %s 無法讀取", name))
			continue
		}
		mtype := mimetype.Detect(data)
		if !mimetype.EqualsAny(mtype.String(), imageMIMEs...) {
			errs = append(errs, fmt.Sprintf("圖片 %s 格式不支援", name))
			continue
		}
		images[name] = Image{
			Name:        name,
			Data:        data,
			Size:        int64(len(data)),
			ContentType: mtype.String(),
		}
	}

	for _, q := range questions {
		if q.ImageFile == "" {
			continue
		}
		if _, ok := images[q.ImageFile]; !ok {
			errs = append(errs, fmt.Sprintf("題目 %s 引用的圖片 %s 不存在", q.SourceNumber, q.ImageFile))
		}
	}
	return images, errs
}

func formatLimit(n int64) string {
	if n >= 1<<20 && n%(1<<20) == 0 {
		return fmt.Sprintf("%dMB", n>>20)
	}
	if n >= 1<<10 && n%(1<<10) == 0 {
		return fmt.Sprintf("%dKB", n>>10)
	}
	return fmt.Sprintf("%d bytes", n)
}
