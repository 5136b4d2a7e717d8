package realtime

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/csssit/club-api/pkg/auth"
)

// AccessCookieName is the cookie carrying the access credential on both the
// query surface and the websocket handshake.
const AccessCookieName = "access"

// Principal is the identity bound to a connection: a resolved user or
// anonymous.
type Principal struct {
	UserID    uuid.UUID
	Name      string
	Role      string
	Anonymous bool
}

func AnonymousPrincipal() Principal {
	return Principal{Anonymous: true}
}

// GroupKey is the stable broadcast address for the principal's notifications.
// Anonymous principals have none and therefore never receive directed pushes.
func (p Principal) GroupKey() string {
	if p.Anonymous {
		return ""
	}
	return "user_" + p.UserID.String()
}

// GroupKeyFor addresses a recipient without resolving a principal; the
// notification service publishes with it.
func GroupKeyFor(recipientID uuid.UUID) string {
	return "user_" + recipientID.String()
}

// Resolver turns a connection handshake into a Principal. Resolution failure
// degrades to anonymous instead of rejecting the handshake; layers that need
// an authenticated identity must check for themselves.
type Resolver struct {
	tokens auth.TokenService
	logger zerolog.Logger
}

func NewResolver(tokens auth.TokenService, logger zerolog.Logger) *Resolver {
	return &Resolver{
		tokens: tokens,
		logger: logger,
	}
}

func (r *Resolver) Resolve(req *http.Request) Principal {
	cookie, err := req.Cookie(AccessCookieName)
	if err != nil || cookie.Value == "" {
		return AnonymousPrincipal()
	}

	claims, err := r.tokens.ValidateToken(cookie.Value)
	if err != nil {
		// A credential was presented and rejected; worth a trace, but the
		// connection still completes as anonymous.
		r.logger.Debug().Err(err).Msg("handshake credential rejected, resolving to anonymous")
		return AnonymousPrincipal()
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		r.logger.Debug().Err(err).Msg("handshake credential carried malformed user id")
		return AnonymousPrincipal()
	}

	return Principal{
		UserID: userID,
		Name:   claims.Name,
		Role:   claims.Role,
	}
}
