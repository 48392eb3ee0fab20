// Package quiz holds the validated question model shared by the import
// pipeline and the persistence layer.
package quiz

import (
	"encoding/json"
	"time"
)

// Type is the stored question type.
type Type string

const (
	TypeSingle   Type = "single"
	TypeMultiple Type = "multiple"
	TypeFill     Type = "fill"
	TypeEssay    Type = "essay"
)

// Sheet labels for each question type.
const (
	LabelSingle   = "單選題"
	LabelMultiple = "複選題"
	LabelFill     = "填空題"
	LabelEssay    = "問答題"
)

// Labels lists the accepted sheet labels in display order.
var Labels = []string{LabelSingle, LabelMultiple, LabelFill, LabelEssay}

var typeByLabel = map[string]Type{
	LabelSingle:   TypeSingle,
	LabelMultiple: TypeMultiple,
	LabelFill:     TypeFill,
	LabelEssay:    TypeEssay,
}

// TypeFromLabel maps a sheet label to its Type.
func TypeFromLabel(label string) (Type, bool) {
	t, ok := typeByLabel[label]
	return t, ok
}

// Label returns the sheet label for t.
func (t Type) Label() string {
	for label, typ := range typeByLabel {
		if typ == t {
			return label
		}
	}
	return string(t)
}

// Choice reports whether questions of this type carry options.
func (t Type) Choice() bool {
	return t == TypeSingle || t == TypeMultiple
}

// DefaultPoints is used when the sheet gives no usable score.
const DefaultPoints = 10

// Question is a validated question. Body is either ChoiceBody or FreeResponseBody.
type Question struct {
	Number       int    `json:"questionNumber"`
	SourceNumber string `json:"sourceNumber"`
	Line         int    `json:"line"`
	Type         Type   `json:"type"`
	Text         string `json:"text"`
	ImageFile    string `json:"imageFile,omitempty"`
	ImageURL     string `json:"imageUrl,omitempty"`
	Explanation  string `json:"explanation,omitempty"`
	Points       int    `json:"points"`
	Body         Body   `json:"body"`
}

// UnmarshalJSON restores Body from its concrete shape, chosen by Type.
func (q *Question) UnmarshalJSON(data []byte) error {
	type plain Question
	var aux struct {
		plain
		Body json.RawMessage `json:"body"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*q = Question(aux.plain)
	q.Body = nil
	if len(aux.Body) == 0 || string(aux.Body) == "null" {
		return nil
	}
	if q.Type.Choice() {
		var b ChoiceBody
		if err := json.Unmarshal(aux.Body, &b); err != nil {
			return err
		}
		q.Body = b
		return nil
	}
	var b FreeResponseBody
	if err := json.Unmarshal(aux.Body, &b); err != nil {
		return err
	}
	q.Body = b
	return nil
}

// Body is the type-specific part of a question.
type Body interface {
	isBody()
}

// Option is one labelled choice.
type Option struct {
	Label   string `json:"label"`
	Text    string `json:"text"`
	Correct bool   `json:"isCorrect"`
}

// ChoiceBody belongs to single and multiple questions.
type ChoiceBody struct {
	Options []Option `json:"options"`
}

func (ChoiceBody) isBody() {}

// CorrectLabels returns labels of correct options in option order.
func (b ChoiceBody) CorrectLabels() []string {
	var out []string
	for _, o := range b.Options {
		if o.Correct {
			out = append(out, o.Label)
		}
	}
	return out
}

// FreeResponseBody belongs to fill and essay questions.
type FreeResponseBody struct {
	Answer        string `json:"correctAnswer"`
	CaseSensitive bool   `json:"caseSensitive"`
	ExactMatch    bool   `json:"exactMatch"`
}

func (FreeResponseBody) isBody() {}

// NewQuizSet carries the caller-supplied quiz set attributes.
type NewQuizSet struct {
	CourseID    string
	Title       string
	Description string
	CreatedBy   string
}

// QuizSet is a persisted quiz set.
type QuizSet struct {
	ID          string    `json:"id"`
	CourseID    string    `json:"course_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	CreatedBy   *string   `json:"created_by"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}
