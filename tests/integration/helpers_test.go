//go:build integration
// +build integration

package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"

	"github.com/gokatarajesh/quiz-import/internal/auth/jwt"
)

func envOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// mintToken signs a token with the server's JWT_SECRET.
func mintToken(t *testing.T, role string) string {
	t.Helper()

	tokens := jwt.NewManager(jwt.TokenConfig{
		Secret: []byte(envOrDefault("JWT_SECRET", "change-me")),
		Issuer: envOrDefault("JWT_ISSUER", "lms"),
	})
	token, err := tokens.Generate(jwt.User{ID: "integration-" + role, DisplayName: "Integration", Role: role})
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func buildZip(t *testing.T, files map[string][]byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func questionsCSV(rows ...string) []byte {
	header := "題號,題型,題目,正確答案,選項A,選項B,選項C,選項D"
	return []byte(strings.Join(append([]string{header}, rows...), "\n"))
}

func postImport(t *testing.T, baseURL, token string, fields map[string]string, fileName string, data []byte) (*http.Response, map[string]any) {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	fw, err := mw.CreateFormFile("zipFile", fileName)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(data); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/v1/quizzes/import", baseURL), &body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("import request failed: %v", err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode import response: %v", err)
	}
	return resp, out
}
