//go:build integration
// +build integration

package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/gokatarajesh/quiz-import/internal/auth/jwt"
)

func TestImportPreviewThenCommit(t *testing.T) {
	baseURL := envOrDefault("INTEGRATION_BASE_URL", "http://localhost:8080")
	token := mintToken(t, jwt.RoleInstructor)
	archive := buildZip(t, map[string][]byte{
		"questions.csv": questionsCSV(
			`1,單選題,"What is 2+2?",B,3,4,5,6`,
			`2,多選題,"Pick primes","A,C",2,4,3,8`,
			`3,填空題,"Capital of France",Paris`,
		),
	})
	fields := map[string]string{"courseId": "course-int", "title": "Integration quiz", "preview": "true"}

	resp, body := postImport(t, baseURL, token, fields, "quiz.zip", archive)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("preview failed: %d %v", resp.StatusCode, body)
	}
	preview := body["preview"].(map[string]any)
	if preview["totalQuestions"].(float64) != 3 {
		t.Fatalf("expected 3 questions in preview, got %v", preview["totalQuestions"])
	}

	delete(fields, "preview")
	resp, body = postImport(t, baseURL, token, fields, "quiz.zip", archive)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("commit failed: %d %v", resp.StatusCode, body)
	}
	if body["questionsImported"].(float64) != 3 {
		t.Fatalf("expected 3 imported questions, got %v", body["questionsImported"])
	}
	quizSetID := body["quizSet"].(map[string]any)["id"].(string)

	req, _ := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/v1/quizzes/%s", baseURL, quizSetID), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	getResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get quiz failed: %v", err)
	}
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected get status: %d", getResp.StatusCode)
	}
	var loaded struct {
		Questions []json.RawMessage `json:"questions"`
	}
	if err := json.NewDecoder(getResp.Body).Decode(&loaded); err != nil {
		t.Fatalf("decode quiz: %v", err)
	}
	if len(loaded.Questions) != 3 {
		t.Fatalf("expected 3 stored questions, got %d", len(loaded.Questions))
	}
}

func TestImportBlockedByRowErrors(t *testing.T) {
	baseURL := envOrDefault("INTEGRATION_BASE_URL", "http://localhost:8080")
	token := mintToken(t, jwt.RoleAdmin)
	archive := buildZip(t, map[string][]byte{
		"questions.csv": questionsCSV(
			`1,單選題,"ok",A,x,y`,
			`2,單選題,"",A,x,y`,
		),
	})

	resp, body := postImport(t, baseURL, token, map[string]string{"courseId": "course-int", "title": "Blocked"}, "quiz.zip", archive)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d %v", resp.StatusCode, body)
	}
	if body["error"] != "import_blocked" {
		t.Fatalf("expected import_blocked, got %v", body["error"])
	}
}

func TestImportMissingDataFile(t *testing.T) {
	baseURL := envOrDefault("INTEGRATION_BASE_URL", "http://localhost:8080")
	token := mintToken(t, jwt.RoleAdmin)
	archive := buildZip(t, map[string][]byte{"readme.txt": []byte("nothing here")})

	resp, body := postImport(t, baseURL, token, map[string]string{"courseId": "course-int", "title": "Empty"}, "quiz.zip", archive)
	if resp.StatusCode != http.StatusBadRequest || body["error"] != "data_file_not_found" {
		t.Fatalf("expected data_file_not_found, got %d %v", resp.StatusCode, body)
	}
}
