package auth

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/braintease/backend/internal/errors"
)

type contextKey struct{}

// Middleware extracts the bearer token, verifies it, and stores the resulting
// Identity in the request context. Requests without a valid token are rejected.
func Middleware(v Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			e := errors.New(errors.CodeUnauthenticated, errors.WithMessagef("missing bearer token"))
			c.AbortWithStatusJSON(e.HTTPStatusCode(), gin.H{"error": e.Message})
			return
		}

		id, err := v.Verify(c.Request.Context(), token)
		if err != nil {
			e := errors.Convert(err)
			c.AbortWithStatusJSON(e.HTTPStatusCode(), gin.H{"error": e.Message})
			return
		}

		c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return header[len(prefix):], true
}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// IdentityFromContext returns the caller identity stored by Middleware.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}
