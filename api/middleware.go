package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"LedgerCorpSuite/api/auth"
	"LedgerCorpSuite/api/constants"
)

type contextKey string

const (
	TenantIDKey contextKey = "tenantID"
	UserIDKey   contextKey = "userID"
)

// GetTenantIDFromCtx returns the tenant id the middleware resolved for this
// request. Every query in the core filters on it.
func GetTenantIDFromCtx(ctx context.Context) string {
	if id, ok := ctx.Value(TenantIDKey).(string); ok {
		return id
	}
	return ""
}

func GetUserIDFromCtx(ctx context.Context) string {
	if id, ok := ctx.Value(UserIDKey).(string); ok {
		return id
	}
	return ""
}

// TenantMiddleware extracts user_id from the request body or multipart form,
// validates the session, and attaches the caller's user and tenant ids to the
// request context. Handlers never read an ambient "current tenant" — they
// take these ids and pass them into every storage call.
func TenantMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var userID string
			ct := r.Header.Get(constants.ContentTypeText)
			if strings.HasPrefix(ct, constants.ContentTypeJSON) && (r.Method == "POST" || r.Method == "PUT") {
				var bodyMap map[string]interface{}
				_ = json.NewDecoder(r.Body).Decode(&bodyMap)
				if uid, ok := bodyMap[constants.KeyUserID].(string); ok {
					userID = uid
				}
				// Re-marshal and reset body for downstream handlers
				bodyBytes, _ := json.Marshal(bodyMap)
				r.Body = io.NopCloser(strings.NewReader(string(bodyBytes)))
			} else if strings.HasPrefix(ct, constants.ContentTypeMultipart) && (r.Method == "POST" || r.Method == "PUT") {
				if err := r.ParseMultipartForm(constants.MaxUploadBytes); err == nil {
					userID = r.FormValue(constants.KeyUserID)
				}
			} else if r.Method == "GET" {
				userID = r.URL.Query().Get(constants.KeyUserID)
			}

			if userID == "" {
				RespondWithError(w, http.StatusBadRequest, constants.ErrMissingUserID)
				return
			}

			session := auth.GetSessionByUserID(userID)
			if session == nil || !session.IsLoggedIn {
				RespondWithError(w, http.StatusUnauthorized, constants.ErrInvalidSession)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			ctx = context.WithValue(ctx, TenantIDKey, session.TenantID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
