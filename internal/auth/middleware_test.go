package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/quiz-import/internal/auth/jwt"
)

func TestMiddleware(t *testing.T) {
	tokens := jwt.NewManager(jwt.TokenConfig{Secret: []byte("s3cret")})
	admin, err := tokens.Generate(jwt.User{ID: "admin-1", Role: jwt.RoleAdmin})
	require.NoError(t, err)
	student, err := tokens.Generate(jwt.User{ID: "stu-1", Role: jwt.RoleStudent})
	require.NoError(t, err)

	var seen string
	h := Middleware(tokens, zerolog.Nop())(RequireQuizManager(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := ClaimsFromContext(r.Context())
		seen = claims.UserID
		w.WriteHeader(http.StatusNoContent)
	})))

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"anonymous", "", "", http.StatusUnauthorized},
		{"malformed header", "Token abc", "", http.StatusUnauthorized},
		{"bad token", "Bearer nope", "", http.StatusUnauthorized},
		{"student", "Bearer " + student, "", http.StatusForbidden},
		{"admin header", "Bearer " + admin, "", http.StatusNoContent},
		{"admin query", "", "?token=" + admin, http.StatusNoContent},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/quizzes/import"+tc.query, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
	assert.Equal(t, "admin-1", seen)
}
