package quizimport

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/quiz-import/internal/archive"
	"github.com/gokatarajesh/quiz-import/internal/quiz"
)

var (
	pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)
	gifBytes = append([]byte("GIF89a"), make([]byte, 32)...)
)

type zipEntry struct {
	name string
	data []byte
}

func buildArchive(t *testing.T, entries ...zipEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		require.NoError(t, err)
		_, err = w.Write(e.data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func openArchive(t *testing.T, entries ...zipEntry) *archive.Reader {
	t.Helper()
	r, err := archive.Open(buildArchive(t, entries...), 0)
	require.NoError(t, err)
	return r
}

func TestImageResolver_CollectsByBaseName(t *testing.T) {
	src := openArchive(t,
		zipEntry{"images/diagram.png", pngBytes},
		zipEntry{"other/diagram.png", gifBytes},
		zipEntry{"__MACOSX/images/._diagram.png", []byte("junk")},
		zipEntry{"chart.GIF", gifBytes},
		zipEntry{"notes.txt", []byte("hello")},
	)
	resolver := NewImageResolver(0, zerolog.Nop())

	images, errs := resolver.Resolve(src, []quiz.Question{{SourceNumber: "1", ImageFile: "diagram.png"}})
	assert.Empty(t, errs)
	require.Len(t, images, 2)
	assert.Equal(t, "image/png", images["diagram.png"].ContentType)
	assert.Equal(t, "image/gif", images["chart.GIF"].ContentType)
}

func TestImageResolver_MissingReference(t *testing.T) {
	src := openArchive(t, zipEntry{"questions.csv", []byte("x")})
	resolver := NewImageResolver(0, zerolog.Nop())

	_, errs := resolver.Resolve(src, []quiz.Question{
		{SourceNumber: "1", ImageFile: "diagram.png"},
		{SourceNumber: "2"},
	})
	assert.Equal(t, []string{"題目 1 引用的圖片 diagram.png 不存在"}, errs)
}

func TestImageResolver_RejectsOversizedAndForged(t *testing.T) {
	src := openArchive(t,
		zipEntry{"big.png", append(append([]byte{}, pngBytes...), make([]byte, 2048)...)},
		zipEntry{"fake.jpg", []byte("definitely not a jpeg, just text")},
	)
	resolver := NewImageResolver(1<<10, zerolog.Nop())

	images, errs := resolver.Resolve(src, []quiz.Question{{SourceNumber: "3", ImageFile: "big.png"}})
	assert.Empty(t, images)
	assert.ElementsMatch(t, []string{
		"圖片 big.png 超過 1KB 大小限制",
		"圖片 fake.jpg 格式不支援",
		"題目 3 引用的圖片 big.png 不存在",
	}, errs)
}

func TestFormatLimit(t *testing.T) {
	assert.Equal(t, "2MB", formatLimit(DefaultMaxImageBytes))
	assert.Equal(t, "512KB", formatLimit(512<<10))
	assert.Equal(t, "1000 bytes", formatLimit(1000))
}
