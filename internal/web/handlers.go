package web

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/testsets/internal/core"
	"github.com/JonMunkholm/testsets/internal/logging"
)

// handleSaveTestSet decodes a JSON test set and writes it to the store.
// The response body is the submission Result.
func (s *Server) handleSaveTestSet(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, s.cfg.Ingest.MaxBodySize)
	defer body.Close()

	doc, err := core.DecodeDocument(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, r, err, http.StatusRequestEntityTooLarge)
			return
		}
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	res := s.service.SaveTestSet(ctx, doc)
	if !res.Succeeded() {
		logging.FromContext(ctx).Debug("submission rejected",
			"submission_id", res.SubmissionID,
			"code", core.MapError(res.Err).Code,
		)
	}

	writeJSON(w, statusFor(res), res)
}

// handleSubmissionStatus reports limiter occupancy.
func (s *Server) handleSubmissionStatus(w http.ResponseWriter, r *http.Request) {
	st := s.service.LimiterStatus()
	writeJSON(w, http.StatusOK, map[string]int{
		"active":         st.Active,
		"available":      st.Available,
		"max_concurrent": st.MaxConcurrent,
	})
}

// handleHealth is a liveness probe. It does not touch the store.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
