package httpapi

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"ourpainthub/internal/auth"
	"ourpainthub/internal/domain"
)

type authCtxKey int

const (
	authUserKey authCtxKey = iota
	authSessionKey
)

// credentials pulls the session id from a bearer token or, failing that, the
// session cookie. subject is set only for bearer tokens.
func (a *api) credentials(r *http.Request) (sessID, subject string, ok bool) {
	if h := strings.TrimSpace(r.Header.Get("Authorization")); h != "" {
		raw, found := strings.CutPrefix(h, "Bearer ")
		if !found {
			return "", "", false
		}
		claims, err := a.tokens.Parse(strings.TrimSpace(raw))
		if err != nil {
			return "", "", false
		}
		return claims.SessionID, claims.Subject, true
	}

	c, err := r.Cookie(auth.SessionCookieName)
	if err != nil || c.Value == "" {
		return "", "", false
	}
	sessID, ok = a.cookieCodec.DecodeSessionID(c.Value)
	return sessID, "", ok
}

func (a *api) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessID, subject, ok := a.credentials(r)
		if !ok {
			WriteDomainError(w, domain.ErrUnauthorized)
			return
		}

		u, err := a.authSvc.GetUserForSession(r.Context(), sessID)
		if err != nil {
			WriteDomainError(w, err)
			return
		}
		if subject != "" && subject != u.ID {
			WriteDomainError(w, domain.ErrUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), authUserKey, u)
		ctx = context.WithValue(ctx, authSessionKey, sessID)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// requireAdmin checks the role of the authenticated user on every request.
func (a *api) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return a.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		u, ok := CurrentUser(r.Context())
		if !ok || !a.authSvc.IsAdmin(u) {
			WriteDomainError(w, domain.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func CurrentUser(ctx context.Context) (domain.User, bool) {
	u, ok := ctx.Value(authUserKey).(domain.User)
	return u, ok
}

func CurrentSessionID(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(authSessionKey).(string)
	return s, ok
}

// clientIP is the address resolved by ClientIP, or the socket peer when that
// middleware is not installed.
func clientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPKey).(string); ok && ip != "" {
		return ip
	}
	return remoteHost(r)
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

// resolveClientIP honours X-Forwarded-For only when the peer is a trusted
// proxy. The chain is read right to left and the first untrusted hop wins.
func resolveClientIP(r *http.Request, trusted []netip.Prefix) string {
	peer := remoteHost(r)
	addr, err := netip.ParseAddr(peer)
	if err != nil || !isTrustedProxy(addr, trusted) {
		return peer
	}

	var hops []string
	for _, v := range r.Header.Values("X-Forwarded-For") {
		hops = append(hops, strings.Split(v, ",")...)
	}
	client := peer
	for i := len(hops) - 1; i >= 0; i-- {
		hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
		if err != nil {
			break
		}
		client = hop.Unmap().String()
		if !isTrustedProxy(hop, trusted) {
			break
		}
	}
	return client
}

func isTrustedProxy(addr netip.Addr, trusted []netip.Prefix) bool {
	addr = addr.Unmap()
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
