package web

import (
	"bytes"
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"courtavail/internal/config"
	appLog "courtavail/internal/log"
	"courtavail/internal/metrics"
	"courtavail/internal/model"
	"courtavail/internal/refresh"
)

const (
	// pageDays is how many days the HTML page lists, starting today.
	pageDays = 7

	pageRefreshSeconds = 900
	pageDateLayout     = "Monday 01-02-2006"
)

//go:embed templates/index.html.tmpl
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html.tmpl"))

// Refresher rebuilds the report on demand.
type Refresher interface {
	Run(ctx context.Context) (model.Report, error)
}

// Server provides the availability page and JSON API.
type Server struct {
	cfg       *config.Config
	store     *refresh.Store
	refresher Refresher
	metrics   *metrics.Metrics
	loc       *time.Location
	router    *mux.Router

	// now is replaced in tests.
	now func() time.Time
}

// NewServer constructs a new Server. m may be nil, in which case no
// metrics endpoint is exposed.
func NewServer(cfg *config.Config, store *refresh.Store, refresher Refresher, m *metrics.Metrics, loc *time.Location) *Server {
	if loc == nil {
		loc = time.Local
	}
	s := &Server{
		cfg:       cfg,
		store:     store,
		refresher: refresher,
		metrics:   m,
		loc:       loc,
		router:    mux.NewRouter(),
		now:       time.Now,
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.router)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials disable auth.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="courtavail", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/availability", s.handleAvailability).Methods(http.MethodGet)
	api.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)

	if s.metrics != nil && s.cfg != nil && s.cfg.Metrics.Enabled {
		s.router.Handle(s.cfg.Metrics.Path, s.metrics.Handler()).Methods(http.MethodGet)
	}

	s.router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleAvailability returns the current report. With ?date=YYYY-MM-DD only
// that date is included.
func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.store.Get()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, refresh.ErrNoReport.Error())
		return
	}

	if date := r.URL.Query().Get("date"); date != "" {
		if _, err := time.Parse(time.DateOnly, date); err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		slots, found := rep.Availability[date]
		if !found {
			writeError(w, http.StatusNotFound, "no data for "+date)
			return
		}
		rep = model.Report{
			Availability: map[string][]string{date: slots},
			LastUpdated:  rep.LastUpdated,
		}
	}

	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil {
		writeError(w, http.StatusNotImplemented, "refresh is not configured")
		return
	}
	rep, err := s.refresher.Run(r.Context())
	if err != nil {
		appLog.Error("manual refresh failed", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

type dayView struct {
	Key     string
	Display string
	Slots   []string
	NoData  bool
}

type pageView struct {
	Resource       string
	LastUpdated    string
	RefreshSeconds int
	Days           []dayView
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	rep, _ := s.store.Get()

	view := pageView{
		LastUpdated:    rep.LastUpdated,
		RefreshSeconds: pageRefreshSeconds,
		Days:           buildDays(rep, s.now().In(s.loc), pageDays),
	}
	if s.cfg != nil {
		view.Resource = s.cfg.Resource.Label
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, view); err != nil {
		appLog.Error("page render failed", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// buildDays lists n days starting with today. A date missing from the
// report is marked NoData, which differs from a present date with no slots.
func buildDays(rep model.Report, today time.Time, n int) []dayView {
	start := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	out := make([]dayView, 0, n)
	for i := 0; i < n; i++ {
		d := start.AddDate(0, 0, i)
		key := d.Format(time.DateOnly)
		slots, found := rep.Availability[key]
		out = append(out, dayView{
			Key:     key,
			Display: d.Format(pageDateLayout),
			Slots:   slots,
			NoData:  !found,
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
