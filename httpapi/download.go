package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	fileshare "github.com/SuperSection/fileshare"
	"github.com/SuperSection/fileshare/disposition"
	"github.com/SuperSection/fileshare/middleware"
	"github.com/sirupsen/logrus"
)

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	code, err := fileshare.ParseInviteCode(r.PathValue("code"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	d, err := s.engine.FetchSession(r.Context(), code)
	if errors.Is(err, fileshare.ErrNotFound) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	h := w.Header()
	disposition.Set(h, d.Filename())
	h.Set("Content-Type", "application/octet-stream")
	h.Set("Content-Length", strconv.FormatInt(d.Size(), 10))
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	_, streamErr := d.Stream(r.Context(), w)
	closeErr := d.Close()

	log := s.logger.WithFields(logrus.Fields{
		"function":    "handleDownload",
		"invite_code": code,
		"session_id":  d.SessionID(),
		"delivered":   d.Delivered(),
		"size":        d.Size(),
	})
	if err := errors.Join(streamErr, closeErr); err != nil {
		// headers are gone; the short body tells the receiver
		log.WithError(err).Info("download ended early")
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	token, _ := middleware.OwnerTokenFromContext(r.Context())
	report, err := s.engine.SessionStatus(r.Context(), token)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newStatusResponse(report))
}
