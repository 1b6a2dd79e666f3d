package http

import (
	"context"
	"net/http"
	"strings"

	applog "spendwise/internal/log"
)

type userIDKey struct{}

// requireAuth resolves the bearer token and passes the user id on in the
// request context.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.svc.Auth.Authenticate(r.Context(), bearerToken(r))
		if err != nil {
			writeError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey{}, userID)
		ctx = applog.NewContext(ctx, applog.FromContext(ctx).With(applog.FieldUserID, userID))
		next(w, r.WithContext(ctx))
	}
}

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func currentUserID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey{}).(string)
	return id
}
