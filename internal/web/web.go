package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/local/pdfsplitter/internal/app"
	"github.com/local/pdfsplitter/internal/metrics"
	"github.com/local/pdfsplitter/internal/selection"
	"github.com/local/pdfsplitter/internal/statuscheck"
	"github.com/local/pdfsplitter/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	sessionCookie = "pdfsplit_session"
	sessionTTL    = 12 * time.Hour
)

// Splitter is the application surface driven by the HTTP handlers.
type Splitter interface {
	SelectPDF(ctx context.Context, ref string) (string, error)
	SetOutputDir(ctx context.Context, dir string) error
	ClickPage(ctx context.Context, page int) (selection.ClickResult, error)
	RemoveRange(ctx context.Context, i int) error
	ClearAll(ctx context.Context) error
	Generate(ctx context.Context) (string, error)
	NextPage(ctx context.Context) (bool, error)
	PrevPage(ctx context.Context) (bool, error)
	Scroll(ctx context.Context, delta int) (int, error)
	Cancel(ctx context.Context) (string, error)
	Snapshot(ctx context.Context) (app.Snapshot, error)
	Thumbnail(ctx context.Context, page int) ([]byte, error)
	Job(ctx context.Context, id string) (store.Status, bool, error)
}

// StatusChecker reports dependency health for the dashboard.
type StatusChecker interface {
	Summary(ctx context.Context) statuscheck.Summary
}

// Options configures the web surface.
type Options struct {
	Username     string
	Password     string
	PasswordHash string
	Checker      StatusChecker
}

type Web struct {
	tpl          *template.Template
	app          Splitter
	checker      StatusChecker
	username     string
	password     string
	passwordHash string
	validate     *validation

	mu       sync.Mutex
	sessions map[string]time.Time
}

func New(a Splitter, opts Options) *Web {
	tpl := template.Must(template.ParseFS(templateFS, "templates/*.html"))
	w := &Web{
		tpl:          tpl,
		app:          a,
		checker:      opts.Checker,
		username:     opts.Username,
		password:     opts.Password,
		passwordHash: opts.PasswordHash,
		validate:     newValidation(),
		sessions:     make(map[string]time.Time),
	}
	if !w.authEnabled() {
		log.Warn().Msg("dashboard authentication disabled; set WEB_USERNAME and WEB_PASSWORD to require a login")
	}
	return w
}

func (w *Web) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(wr http.ResponseWriter, r *http.Request) {
		wr.WriteHeader(http.StatusOK)
		_, _ = wr.Write([]byte("ok"))
	})
	mux.Handle("/metrics", metrics.Handler())

	mux.HandleFunc("/web/login", w.handleLogin)
	mux.HandleFunc("/web/logout", w.handleLogout)
	mux.HandleFunc("/web/", w.requireAuth(w.handleDashboard, false))

	api := func(path string, h http.HandlerFunc) { mux.HandleFunc(path, w.requireAuth(h, true)) }
	api("/api/state", w.handleState)
	api("/api/status", w.handleStatus)
	api("/api/document", w.handleDocument)
	api("/api/upload", w.handleUpload)
	api("/api/output_dir", w.handleOutputDir)
	api("/api/click", w.handleClick)
	api("/api/ranges/remove", w.handleRemove)
	api("/api/ranges/clear", w.handleClear)
	api("/api/generate", w.handleGenerate)
	api("/api/view/next", w.handleNext)
	api("/api/view/prev", w.handlePrev)
	api("/api/view/scroll", w.handleScroll)
	api("/api/cancel", w.handleCancel)
	api("/api/jobs/", w.handleJob)
	api("/api/thumbs/", w.handleThumb)
}

func (w *Web) authEnabled() bool {
	return w.username != "" && (w.password != "" || w.passwordHash != "")
}

func (w *Web) checkCredentials(user, pass string) bool {
	if subtle.ConstantTimeCompare([]byte(user), []byte(w.username)) != 1 {
		return false
	}
	if w.passwordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(w.passwordHash), []byte(pass)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(pass), []byte(w.password)) == 1
}

func (w *Web) newSession() string {
	token := uuid.NewString()
	w.mu.Lock()
	defer w.mu.Unlock()
	now := time.Now()
	for t, exp := range w.sessions {
		if now.After(exp) {
			delete(w.sessions, t)
		}
	}
	w.sessions[token] = now.Add(sessionTTL)
	return token
}

func (w *Web) validSession(r *http.Request) bool {
	c, err := r.Cookie(sessionCookie)
	if err != nil || c.Value == "" {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	exp, ok := w.sessions[c.Value]
	return ok && time.Now().Before(exp)
}

func (w *Web) dropSession(r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		w.mu.Lock()
		delete(w.sessions, c.Value)
		w.mu.Unlock()
	}
}

func (w *Web) requireAuth(next http.HandlerFunc, api bool) http.HandlerFunc {
	return func(wr http.ResponseWriter, r *http.Request) {
		if !w.authEnabled() || w.validSession(r) {
			next(wr, r)
			return
		}
		if api {
			writeJSON(wr, http.StatusUnauthorized, map[string]any{"error": "login required"})
			return
		}
		http.Redirect(wr, r, "/web/login", http.StatusSeeOther)
	}
}

func (w *Web) render(wr http.ResponseWriter, name string, data any) {
	wr.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := w.tpl.ExecuteTemplate(wr, name, data); err != nil {
		log.Error().Err(err).Str("template", name).Msg("template render failed")
	}
}

func (w *Web) handleLogin(wr http.ResponseWriter, r *http.Request) {
	if !w.authEnabled() {
		http.Redirect(wr, r, "/web/", http.StatusSeeOther)
		return
	}
	switch r.Method {
	case http.MethodGet:
		w.render(wr, "login.html", map[string]any{"Error": r.URL.Query().Get("error")})
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Redirect(wr, r, "/web/login?error=invalid+form", http.StatusSeeOther)
			return
		}
		if w.checkCredentials(r.Form.Get("username"), r.Form.Get("password")) {
			http.SetCookie(wr, &http.Cookie{Name: sessionCookie, Value: w.newSession(), Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode, MaxAge: int(sessionTTL.Seconds())})
			http.Redirect(wr, r, "/web/", http.StatusSeeOther)
			return
		}
		log.Warn().Str("remote", r.RemoteAddr).Msg("dashboard login failed")
		http.Redirect(wr, r, "/web/login?error=invalid+credentials", http.StatusSeeOther)
	default:
		wr.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (w *Web) handleLogout(wr http.ResponseWriter, r *http.Request) {
	w.dropSession(r)
	http.SetCookie(wr, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	http.Redirect(wr, r, "/web/login", http.StatusSeeOther)
}

func (w *Web) handleDashboard(wr http.ResponseWriter, r *http.Request) {
	w.render(wr, "dashboard.html", map[string]any{
		"Username": w.username,
		"Auth":     w.authEnabled(),
	})
}
