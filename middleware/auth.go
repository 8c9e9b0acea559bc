package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// TokenParser проверяет токен и возвращает идентификатор аккаунта.
// Реализуется services.AuthService.
type TokenParser interface {
	ParseToken(tokenString string) (int, error)
}

type contextKey string

const accountContextKey contextKey = "account_id"

// Authenticator требует заголовок Authorization: Bearer <token> и кладёт
// идентификатор аккаунта в контекст запроса.
func Authenticator(parser TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				unauthorized(w, "missing authorization header")
				return
			}
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				unauthorized(w, "authorization header must be of the form 'Bearer <token>'")
				return
			}

			accountID, err := parser.ParseToken(parts[1])
			if err != nil {
				unauthorized(w, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), accountContextKey, accountID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccountIDFromContext возвращает идентификатор аккаунта, положенный
// Authenticator. Второе значение false означает неаутентифицированный запрос.
func AccountIDFromContext(ctx context.Context) (int, bool) {
	id, ok := ctx.Value(accountContextKey).(int)
	return id, ok
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
