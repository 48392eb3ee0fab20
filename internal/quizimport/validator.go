package quizimport

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/width"

	"github.com/gokatarajesh/quiz-import/internal/quiz"
	"github.com/gokatarajesh/quiz-import/internal/tabular"
)

// Optional sheet columns.
const (
	ColImage       = "圖片檔名"
	ColExplanation = "解析"
	ColPoints      = "分數"
)

// OptionColumns maps option columns to labels by offset from 'A'.
var OptionColumns = []string{"選項A", "選項B", "選項C", "選項D"}

var answerLabelRe = regexp.MustCompile(`^[A-D]$`)

// Validate turns records into typed questions. A failing row is reported as
// "第 {line} 行: {message}" and skipped; it never stops later rows. Question
// numbers are dense positions among the rows that passed.
func Validate(records []tabular.Record) ([]quiz.Question, []string) {
	var (
		questions []quiz.Question
		rowErrors []string
	)
	for _, rec := range records {
		q, err := validateRecord(rec)
		if err != nil {
			rowErrors = append(rowErrors, fmt.Sprintf("第 %d 行: %s", rec.Line, err.Error()))
			continue
		}
		q.Number = len(questions) + 1
		questions = append(questions, q)
	}
	return questions, rowErrors
}

func validateRecord(rec tabular.Record) (quiz.Question, error) {
	number := rec.Get(tabular.ColNumber)
	label := rec.Get(tabular.ColType)
	text := rec.Get(tabular.ColText)
	answer := rec.Get(tabular.ColAnswer)

	switch {
	case number == "":
		return quiz.Question{}, errors.New("題號不能為空")
	case label == "":
		return quiz.Question{}, errors.New("題型不能為空")
	case text == "":
		return quiz.Question{}, errors.New("題目不能為空")
	case answer == "":
		return quiz.Question{}, errors.New("正確答案不能為空")
	}

	typ, ok := quiz.TypeFromLabel(label)
	if !ok {
		return quiz.Question{}, fmt.Errorf("無效的題型: %s。支援的題型: %s", label, strings.Join(quiz.Labels, ", "))
	}

	q := quiz.Question{
		SourceNumber: number,
		Line:         rec.Line,
		Type:         typ,
		Text:         text,
		ImageFile:    rec.Get(ColImage),
		Explanation:  rec.Get(ColExplanation),
		Points:       parsePoints(rec.Get(ColPoints)),
	}

	if typ.Choice() {
		body, err := choiceBody(rec, typ, answer)
		if err != nil {
			return quiz.Question{}, err
		}
		q.Body = body
		return q, nil
	}

	q.Body = quiz.FreeResponseBody{
		Answer:     answer,
		ExactMatch: typ == quiz.TypeEssay,
	}
	return q, nil
}

func choiceBody(rec tabular.Record, typ quiz.Type, answer string) (quiz.ChoiceBody, error) {
	var options []quiz.Option
	for i, col := range OptionColumns {
		if text := rec.Get(col); text != "" {
			options = append(options, quiz.Option{Label: string(rune('A' + i)), Text: text})
		}
	}
	switch len(options) {
	case 0:
		return quiz.ChoiceBody{}, errors.New("選擇題必須至少有一個選項")
	case 1:
		return quiz.ChoiceBody{}, errors.New("選擇題至少需要兩個選項")
	}

	correct, err := parseAnswer(typ, answer)
	if err != nil {
		return quiz.ChoiceBody{}, err
	}

	// 單選題 needs its one label to exist. 複選題 drops labels without an
	// option and fails only when none remain.
	var missing []string
	marked := 0
	for _, label := range []string{"A", "B", "C", "D"} {
		if _, ok := correct[label]; !ok {
			continue
		}
		found := false
		for i := range options {
			if options[i].Label == label {
				options[i].Correct = true
				found = true
			}
		}
		if found {
			marked++
		} else {
			missing = append(missing, label)
		}
	}
	if len(missing) > 0 && (typ == quiz.TypeSingle || marked == 0) {
		return quiz.ChoiceBody{}, fmt.Errorf("正確答案 %s 對應的選項不存在", strings.Join(missing, ","))
	}
	return quiz.ChoiceBody{Options: options}, nil
}

// parseAnswer normalises full-width input (Ａ，Ｃ) and case before checking labels.
func parseAnswer(typ quiz.Type, answer string) (map[string]struct{}, error) {
	normalized := strings.ToUpper(width.Narrow.String(answer))

	if typ == quiz.TypeSingle {
		if !answerLabelRe.MatchString(normalized) {
			return nil, errors.New("單選題正確答案必須是 A、B、C 或 D")
		}
		return map[string]struct{}{normalized: {}}, nil
	}

	labels := map[string]struct{}{}
	for _, token := range strings.Split(normalized, ",") {
		token = strings.TrimSpace(token)
		if !answerLabelRe.MatchString(token) {
			return nil, errors.New("複選題正確答案必須是 A、B、C、D 的組合，用逗號分隔")
		}
		labels[token] = struct{}{}
	}
	return labels, nil
}

func parsePoints(raw string) int {
	if raw == "" {
		return quiz.DefaultPoints
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 1 {
		return quiz.DefaultPoints
	}
	return int(f)
}
