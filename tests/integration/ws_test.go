//go:build integration
// +build integration

package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/gokatarajesh/quiz-import/internal/auth/jwt"
	wsmsg "github.com/gokatarajesh/quiz-import/pkg/http/ws"
)

func TestImportProgressStream(t *testing.T) {
	baseHTTP := envOrDefault("INTEGRATION_BASE_URL", "http://localhost:8080")
	baseWS := envOrDefault("INTEGRATION_WS_URL", "ws://localhost:8080")
	token := mintToken(t, jwt.RoleInstructor)
	importID := uuid.NewString()

	conn := dialProgressWS(t, fmt.Sprintf("%s/ws/imports/%s", baseWS, importID), token)
	defer conn.Close()
	waitForMessage(t, conn, wsmsg.TypeSubscribed, 5*time.Second)

	archive := buildZip(t, map[string][]byte{
		"questions.csv": questionsCSV(`1,單選題,"What is 2+2?",B,3,4`),
	})
	resp, body := postImport(t, baseHTTP, token, map[string]string{
		"courseId": "course-int", "title": "Progress", "importId": importID,
	}, "quiz.zip", archive)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("commit failed: %d %v", resp.StatusCode, body)
	}

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		msg := waitForMessage(t, conn, wsmsg.TypeImportProgress, time.Until(deadline))
		var progress struct {
			State string `json:"state"`
		}
		if err := json.Unmarshal(msg.Payload, &progress); err != nil {
			t.Fatalf("decode progress: %v", err)
		}
		if progress.State == "committed" {
			return
		}
	}
	t.Fatal("did not observe committed progress")
}

func dialProgressWS(t *testing.T, wsURL, token string) *websocket.Conn {
	t.Helper()

	u, err := url.Parse(wsURL)
	if err != nil {
		t.Fatalf("invalid WS url: %v", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	return conn
}

func waitForMessage(t *testing.T, conn *websocket.Conn, msgType string, timeout time.Duration) wsmsg.Message {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn.SetReadDeadline(deadline)
		var msg wsmsg.Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read message: %v", err)
		}
		if msg.Type == msgType {
			return msg
		}
	}
	t.Fatalf("timed out waiting for %s", msgType)
	return wsmsg.Message{}
}
