package middlewares

import (
	"context"
	"net/http"

	"github.com/geocoder89/dinehub/internal/actorctx"
	"github.com/geocoder89/dinehub/internal/apperr"
	"github.com/geocoder89/dinehub/internal/domain/principal"
	"github.com/gin-gonic/gin"
)

// Protector resolves an Authorization header to a principal. auth.Service
// satisfies it; tests fake it.
type Protector interface {
	Protect(ctx context.Context, authorization string) (*principal.Principal, error)
}

type AuthMiddleware struct {
	protector Protector
}

func NewAuthMiddleware(p Protector) *AuthMiddleware {
	return &AuthMiddleware{protector: p}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := m.protector.Protect(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			if ae, ok := apperr.As(err); ok {
				abortError(c, ae.Status, ae.Code, ae.Message)
				return
			}
			abortError(c, http.StatusUnauthorized, "unauthenticated", "You are not logged in")
			return
		}

		c.Set(CtxPrincipal, p)
		c.Request = c.Request.WithContext(actorctx.WithPrincipalID(c.Request.Context(), p.ID))

		c.Next()
	}
}

// PrincipalFromContext returns the principal attached by RequireAuth.
func PrincipalFromContext(c *gin.Context) (*principal.Principal, bool) {
	v, ok := c.Get(CtxPrincipal)
	if !ok {
		return nil, false
	}
	p, ok := v.(*principal.Principal)
	return p, ok && p != nil
}
