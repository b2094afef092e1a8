// ABOUTME: Caller identification middleware for the admin server.
// ABOUTME: Parses Bearer tokens so plugin state changes can be attributed to someone.

package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const actorContextKey contextKey = "actor"

// Anonymous is the actor for requests without a usable token.
const Anonymous = "anonymous"

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := extractActor(r.Header.Get("Authorization"))
		ctx := context.WithValue(r.Context(), actorContextKey, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ActorFromContext returns who made the request, or Anonymous.
func ActorFromContext(ctx context.Context) string {
	actor, ok := ctx.Value(actorContextKey).(string)
	if !ok || actor == "" {
		return Anonymous
	}
	return actor
}

func extractActor(authHeader string) string {
	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok {
		return Anonymous
	}
	token = strings.TrimSpace(token)

	// "user:<name>" names the caller explicitly
	if name, ok := strings.CutPrefix(token, "user:"); ok && name != "" {
		return name
	}

	// Opaque tokens are never logged.
	if token != "" {
		return "token"
	}
	return Anonymous
}
