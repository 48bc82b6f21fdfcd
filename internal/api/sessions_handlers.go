package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jbweber/homelab/preinstall/internal/domain"
	"github.com/jbweber/homelab/preinstall/internal/partition"
	"github.com/jbweber/homelab/preinstall/internal/session"
)

// LocationRequest picks a configured location by position
type LocationRequest struct {
	Index int `json:"index"`
}

// ConfirmRequest is the operator's answer to the summary
type ConfirmRequest struct {
	Accept bool `json:"accept"`
}

// NetworkResponse is returned after a network round
type NetworkResponse struct {
	Report  session.NetworkReport `json:"report"`
	Session session.Snapshot      `json:"session"`
}

// DiskResponse is returned after a disk round
type DiskResponse struct {
	Report  session.DiskReport `json:"report"`
	Session session.Snapshot   `json:"session"`
}

// ConfirmResponse is returned after confirmation. RecordID is set when an
// accepted session was saved.
type ConfirmResponse struct {
	Session  session.Snapshot `json:"session"`
	RecordID int64            `json:"record_id,omitempty"`
}

// createSessionHandler handles POST /api/v0/sessions. The body is the
// optional host information gathered by the installer.
func (a *API) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	var host domain.HostInfo
	if err := decodeJSON(r, &host, true); err != nil {
		writeServiceError(w, a.logger, err)
		return
	}

	snap, err := a.sessions.Create(host)
	if err != nil {
		writeServiceError(w, a.logger, err)
		return
	}
	writeJSON(w, a.logger, http.StatusCreated, snap)
}

func (a *API) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	a.withSession(w, r, func(s *session.Session) (any, error) {
		return s.Snapshot(), nil
	})
}

func (a *API) deleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	if err := a.sessions.Delete(chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, a.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) selectLocationHandler(w http.ResponseWriter, r *http.Request) {
	var req LocationRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeServiceError(w, a.logger, err)
		return
	}
	a.withSession(w, r, func(s *session.Session) (any, error) {
		if err := s.SelectLocation(req.Index); err != nil {
			return nil, err
		}
		return s.Snapshot(), nil
	})
}

func (a *API) submitNetworkHandler(w http.ResponseWriter, r *http.Request) {
	var in session.NetworkInput
	if err := decodeJSON(r, &in, false); err != nil {
		writeServiceError(w, a.logger, err)
		return
	}
	a.withSession(w, r, func(s *session.Session) (any, error) {
		report, err := s.SubmitNetwork(in)
		if err != nil {
			return nil, err
		}
		return NetworkResponse{Report: report, Session: s.Snapshot()}, nil
	})
}

func (a *API) skipValidationHandler(w http.ResponseWriter, r *http.Request) {
	a.withSession(w, r, func(s *session.Session) (any, error) {
		if err := s.SkipIPValidation(); err != nil {
			return nil, err
		}
		return s.Snapshot(), nil
	})
}

// selectDiskHandler handles PUT /api/v0/sessions/{id}/disk/device with the
// probed device path and its size in blocks.
func (a *API) selectDiskHandler(w http.ResponseWriter, r *http.Request) {
	var d partition.ProbedDisk
	if err := decodeJSON(r, &d, false); err != nil {
		writeServiceError(w, a.logger, err)
		return
	}
	if d.Name() == "" || d.Blocks == 0 {
		writeError(w, a.logger, http.StatusBadRequest, "device and blocks are required")
		return
	}
	a.withSession(w, r, func(s *session.Session) (any, error) {
		if err := s.SelectDisk(d); err != nil {
			return nil, err
		}
		return s.Snapshot(), nil
	})
}

func (a *API) submitDiskHandler(w http.ResponseWriter, r *http.Request) {
	var in session.DiskInput
	if err := decodeJSON(r, &in, false); err != nil {
		writeServiceError(w, a.logger, err)
		return
	}
	a.withSession(w, r, func(s *session.Session) (any, error) {
		report, err := s.SubmitDisk(in)
		if err != nil {
			return nil, err
		}
		return DiskResponse{Report: report, Session: s.Snapshot()}, nil
	})
}

// confirmHandler handles POST /api/v0/sessions/{id}/confirm. An accepted
// session is saved as a provisioning record.
func (a *API) confirmHandler(w http.ResponseWriter, r *http.Request) {
	var req ConfirmRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeServiceError(w, a.logger, err)
		return
	}
	a.withSession(w, r, func(s *session.Session) (any, error) {
		// A complete session whose save failed may be accepted again.
		if !(req.Accept && s.State() == session.Complete) {
			if err := s.Confirm(req.Accept); err != nil {
				return nil, err
			}
		}
		resp := ConfirmResponse{Session: s.Snapshot()}
		if !req.Accept {
			return resp, nil
		}

		rec, err := s.Record()
		if err != nil {
			return nil, err
		}
		saved, err := a.records.Save(r.Context(), rec)
		if err != nil {
			a.metrics.RecordSaveErrors.Inc()
			return nil, err
		}
		a.metrics.RecordsSaved.Inc()
		a.logger.Infow("provisioning record saved", "session", s.ID(), "record", saved.ID, "hostname", saved.Hostname)

		resp.RecordID = saved.ID
		return resp, nil
	})
}

func (a *API) exportHandler(w http.ResponseWriter, r *http.Request) {
	a.withSession(w, r, func(s *session.Session) (any, error) {
		return s.Export()
	})
}

// withSession runs fn on the session named in the URL and writes its
// result as JSON.
func (a *API) withSession(w http.ResponseWriter, r *http.Request, fn func(*session.Session) (any, error)) {
	var out any
	err := a.sessions.Do(chi.URLParam(r, "id"), func(s *session.Session) error {
		var err error
		out, err = fn(s)
		return err
	})
	if err != nil {
		writeServiceError(w, a.logger, err)
		return
	}
	writeJSON(w, a.logger, http.StatusOK, out)
}
