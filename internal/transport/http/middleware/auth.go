package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/kether-core/internal/core/domain"
)

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

func newErrorResponse(c *gin.Context, code, message string) ErrorResponse {
	return ErrorResponse{
		Error:   message,
		Code:    code,
		TraceID: GetTraceID(c),
	}
}

// SessionRestorer turns a bearer token into a session.
type SessionRestorer interface {
	Restore(ctx context.Context, token string) (*domain.Session, bool)
}

// AdminGate decides admin access and tracks unauthorized attempts per IP.
type AdminGate interface {
	IsAdmin(wallet string) bool
	RecordUnauthorizedAdmin(ctx context.Context, ip string) bool
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(c *gin.Context) (string, bool) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// restoreSession resolves the bearer token. On failure it returns the 401 message.
func restoreSession(c *gin.Context, sessions SessionRestorer) (*domain.Session, string) {
	token, ok := BearerToken(c)
	if !ok {
		return nil, "missing bearer token"
	}
	session, ok := sessions.Restore(c.Request.Context(), token)
	if !ok {
		return nil, "invalid or expired session"
	}

	c.Set(SessionKey, session)
	GetRequestContext(c).IdentityID = session.IdentityID
	return session, ""
}

// RequireSession restores the wallet session from the bearer token. Every failure reads as 401.
func RequireSession(sessions SessionRestorer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, msg := restoreSession(c, sessions); msg != "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, domain.ErrUnauthorized.Code, msg))
			return
		}
		c.Next()
	}
}

// RequireAdmin restores the session and admits wallets on the admin allow-list. Requests without
// a valid session get 401, other wallets get 403, and both count towards the suspicious-IP threshold.
func RequireAdmin(sessions SessionRestorer, gate AdminGate) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, msg := restoreSession(c, sessions)
		if msg != "" {
			gate.RecordUnauthorizedAdmin(c.Request.Context(), c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, domain.ErrUnauthorized.Code, msg))
			return
		}

		if !gate.IsAdmin(session.WalletAddress) {
			gate.RecordUnauthorizedAdmin(c.Request.Context(), c.ClientIP())
			c.AbortWithStatusJSON(http.StatusForbidden,
				newErrorResponse(c, domain.ErrUnauthorized.Code, "admin access required"))
			return
		}

		c.Next()
	}
}
