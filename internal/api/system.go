package api

import (
	"net/http"

	"github.com/nexusnav/nexusnav/internal/navconfig"
)

func (s *server) systemConfig(w http.ResponseWriter, r *http.Request) {
	sys, err := s.nav.System(r.Context())
	if err != nil {
		respondError(w, s.log, err)
		return
	}
	respondOK(w, s.log, sys.Public(clientIP(r)))
}

func (s *server) adminConfig(w http.ResponseWriter, r *http.Request) {
	sys, err := s.nav.System(r.Context())
	if err != nil {
		respondError(w, s.log, err)
		return
	}
	respondOK(w, s.log, sys.Admin())
}

func (s *server) updateAdminConfig(w http.ResponseWriter, r *http.Request) {
	var upd navconfig.AdminUpdate
	if err := decodeJSON(r, &upd); err != nil {
		respondError(w, s.log, err)
		return
	}
	if err := upd.Validate(); err != nil {
		respondError(w, s.log, err)
		return
	}
	sys, err := s.nav.UpdateSystem(r.Context(), upd.Apply)
	if err != nil {
		respondError(w, s.log, err)
		return
	}
	s.log.Info("system settings updated")
	respondOK(w, s.log, sys.Admin())
}
