package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"donorwall/scraper"
)

const maxPerPage = 500

type donorJSON struct {
	Name   string `json:"name"`
	Amount int64  `json:"amount"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"message": msg})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.CountDonors(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// listDonors returns one page of donors as a JSON array.
func (s *Server) listDonors(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", 10)
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	if page-1 > math.MaxInt/perPage {
		writeJSON(w, http.StatusOK, []donorJSON{})
		return
	}

	donors, err := s.store.ListDonors(r.Context(), perPage, (page-1)*perPage)
	if err != nil {
		s.logger.Error().Err(err).Msg("list donors")
		writeMessage(w, http.StatusInternalServerError, "failed to load donors")
		return
	}

	out := make([]donorJSON, 0, len(donors))
	for _, d := range donors {
		out = append(out, donorJSON{Name: d.Name, Amount: d.Amount})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) latestRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.LatestRun(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("latest run")
		writeMessage(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	if run == nil {
		writeMessage(w, http.StatusNotFound, "no runs yet")
		return
	}

	logs, err := s.store.RunLogs(r.Context(), run.ID)
	if err != nil {
		s.logger.Warn().Err(err).Str("run_id", run.ID).Msg("run logs")
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": run, "logs": logs})
}

// scrapeDonors runs a cycle synchronously, or with ?async=1 queues one on the
// scheduler and returns at once.
func (s *Server) scrapeDonors(w http.ResponseWriter, r *http.Request) {
	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		if s.trigger == nil {
			writeMessage(w, http.StatusServiceUnavailable, "Background scrapes need the scheduler.")
			return
		}
		s.trigger.Trigger()
		writeMessage(w, http.StatusAccepted, "Donor scrape queued.")
		return
	}

	result, err := s.runner.RunCycle(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{
			"message":      "Donors scraped successfully.",
			"donors_count": result.DonorsWritten,
			"run_id":       result.RunID,
		})
	case errors.Is(err, scraper.ErrNoDonors):
		writeMessage(w, http.StatusBadRequest, "No donor data found from configured source.")
	default:
		s.logger.Error().Err(err).Msg("on-demand scrape failed")
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"message": "Donor scrape failed.",
			"error":   err.Error(),
		})
	}
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
