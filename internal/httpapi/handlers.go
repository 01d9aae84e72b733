package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/PascalHesselink/PassieUptimeRobot/internal/domain"
	"github.com/PascalHesselink/PassieUptimeRobot/internal/timeutil"
)

const (
	historyLimit      = 100
	notificationLimit = 100
	stateSinceWalkCap = 10000
)

// overviewRow is one dashboard line: the target plus its latest check
// and certificate state.
type overviewRow struct {
	domain.Target
	CurrentState   string  `json:"current_state"` // "UP", "DOWN" or "unknown"
	StateSinceUnix *int64  `json:"state_since_unix"`
	StateSince     string  `json:"state_since,omitempty"`
	LatencyMS      *int64  `json:"response_time_ms"`
	StatusCode     *int    `json:"status_code"`
	LastCheckedAgo string  `json:"last_checked_ago,omitempty"`
	SSLState       string  `json:"ssl_state"` // "VALID", "INVALID" or "unknown"
	SSLDaysLeft    *int    `json:"ssl_days_left"`
	SSLExpiresAt   *string `json:"ssl_expires_at"`
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	targets, err := s.Store.ListEnabled(ctx)
	if err != nil {
		s.Logger.Warn("overview_list_error", zap.Error(err))
		http.Error(w, "list error", http.StatusInternalServerError)
		return
	}

	now := time.Now().UTC()
	out := make([]overviewRow, 0, len(targets))
	for i := range targets {
		t := targets[i]
		row := overviewRow{Target: t, CurrentState: "unknown", SSLState: "unknown"}
		if t.LastCheckedUnix > 0 {
			row.LastCheckedAgo = timeutil.TimeAgo(time.Unix(t.LastCheckedUnix, 0), now)
		}

		latest, err := s.Store.LastStat(ctx, t.ID)
		if err != nil {
			s.Logger.Warn("overview_stat_error", zap.Int64("target_id", t.ID), zap.Error(err))
		} else if latest != nil {
			if latest.Up {
				row.CurrentState = "UP"
			} else {
				row.CurrentState = "DOWN"
			}
			row.LatencyMS = &latest.LatencyMS
			row.StatusCode = &latest.StatusCode
			if since := s.stateSince(r, latest); since != 0 {
				row.StateSinceUnix = &since
				row.StateSince = timeutil.TimeAgo(time.Unix(since, 0), now)
			}
		}

		ssl, err := s.Store.LatestSnapshot(ctx, t.ID)
		if err != nil {
			s.Logger.Warn("overview_ssl_error", zap.Int64("target_id", t.ID), zap.Error(err))
		} else if ssl != nil {
			if ssl.Valid {
				row.SSLState = "VALID"
			} else {
				row.SSLState = "INVALID"
			}
			row.SSLDaysLeft = ssl.DaysLeft
			if ssl.NotAfter != nil {
				exp := ssl.NotAfter.UTC().Format("2006-01-02 15:04:05")
				row.SSLExpiresAt = &exp
			}
		}
		out = append(out, row)
	}

	writeJSON(w, out)
}

// stateSince walks back to the first record of the current same-state
// streak and returns its checked-at, or 0 when unknown.
func (s *Server) stateSince(r *http.Request, latest *domain.CheckRecord) int64 {
	start := latest
	for i := 0; i < stateSinceWalkCap; i++ {
		prev, err := s.Store.StatBefore(r.Context(), latest.TargetID, start.ID)
		if err != nil || prev == nil || prev.Up != latest.Up {
			return start.CheckedAtUnix
		}
		start = prev
	}
	return 0
}

type addPayload struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

func (s *Server) handleAddTarget(w http.ResponseWriter, r *http.Request) {
	var p addPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.URL == "" {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}
	name := p.Name
	if name == "" {
		name = p.URL
	}
	t := &domain.Target{
		URL:            p.URL,
		Name:           name,
		Enabled:        true,
		RefreshSeconds: s.Defaults.RefreshSeconds,
		TimeoutSeconds: s.Defaults.TimeoutSeconds,
		SSLExpiryDays:  s.Defaults.SSLExpiryDays,
	}
	if err := s.Store.Upsert(r.Context(), t); err != nil {
		s.Logger.Warn("add_target_error", zap.String("url", p.URL), zap.Error(err))
		http.Error(w, "could not add", http.StatusInternalServerError)
		return
	}
	s.Logger.Info("added_target", zap.String("url", p.URL), zap.Int64("id", t.ID))
	writeJSON(w, t)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}
	t, err := s.Store.GetByID(r.Context(), id)
	if err != nil {
		http.Error(w, "lookup error", http.StatusInternalServerError)
		return
	}
	if t == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	stats, err := s.Store.RecentStats(r.Context(), id, historyLimit)
	if err != nil {
		s.Logger.Warn("history_error", zap.Int64("target_id", id), zap.Error(err))
		http.Error(w, "history error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"target": t, "history": stats})
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	rows, err := s.Store.RecentNotifications(r.Context(), notificationLimit)
	if err != nil {
		s.Logger.Warn("notifications_error", zap.Error(err))
		http.Error(w, "list error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, rows)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
