package api

import (
	"crypto/subtle"
	"net/http"

	"go.uber.org/zap"
)

// adminAuthorized accepts X-Admin-Token matching the configured token, or a
// bearer JWT carrying the admin role when token auth is enabled. Admin
// endpoints are closed when neither is configured.
func (s *Server) adminAuthorized(r *http.Request) bool {
	if want := s.App.Config().Server.AdminToken; want != "" {
		if got := r.Header.Get("X-Admin-Token"); got != "" {
			return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
		}
	}
	bearer := r.Header.Get("Authorization")
	if s.App.Admin == nil || bearer == "" {
		return false
	}
	p, err := s.App.Admin.Verify(r.Context(), bearer)
	if err != nil {
		s.Log.Debug("admin token rejected", zap.Error(err))
		return false
	}
	return p.HasRole(s.App.Admin.AdminRole())
}
