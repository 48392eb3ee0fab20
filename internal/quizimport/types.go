package quizimport

import (
	"github.com/gokatarajesh/quiz-import/internal/quiz"
)

// State is a step of an import run.
type State string

const (
	StateExtracting State = "extracting"
	StateParsing    State = "parsing"
	StateValidating State = "validating"
	StatePreview    State = "preview"
	StateUploading  State = "uploading"
	StatePersisting State = "persisting"
	StateCommitted  State = "committed"
	StateAborted    State = "aborted"
)

// Request is one archive submitted for import.
type Request struct {
	ImportID    string
	CourseID    string
	Title       string
	Description string
	CreatedBy   string
	FileName    string
	Data        []byte
	Preview     bool
}

// Preview summarises what a commit would write.
type Preview struct {
	TotalQuestions int             `json:"totalQuestions"`
	QuestionTypes  map[string]int  `json:"questionTypes"`
	Questions      []quiz.Question `json:"questions"`
	ImagesFound    int             `json:"imagesFound"`
	Errors         []string        `json:"errors"`
}

// Committed describes a persisted import.
type Committed struct {
	QuizSet           quiz.QuizSet `json:"quizSet"`
	QuestionsImported int          `json:"questionsImported"`
	ImagesUploaded    int          `json:"imagesUploaded"`
}

// Result holds either a preview or a committed import.
type Result struct {
	ImportID  string
	Preview   *Preview
	Committed *Committed
}

// Progress is published at each state transition.
type Progress struct {
	ImportID  string `json:"importId"`
	State     State  `json:"state"`
	Questions int    `json:"questions,omitempty"`
	Errors    int    `json:"errors,omitempty"`
	Message   string `json:"message,omitempty"`
}
