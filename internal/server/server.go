// Package server exposes the Drive browser over HTTP: an index page, folder
// listings, downloads, uploads and the OAuth2 callback.
package server

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"
	"github.com/gorilla/schema"
	"golang.org/x/oauth2"

	"github.com/FranLegon/drive-web/internal/auth"
	"github.com/FranLegon/drive-web/internal/logger"
	"github.com/FranLegon/drive-web/internal/metrics"
	"github.com/FranLegon/drive-web/internal/session"
)

// Route names. Views are addressed by these names in OAuth state and in
// reverse URL lookups.
const (
	RouteIndex          = "index"
	RouteShowFolder     = "show_folder_contents"
	RouteDownloadFile   = "download_file"
	RouteUploadFile     = "upload_file"
	RouteOAuth2Callback = "oauth2callback"
	RouteLogout         = "logout"
	RouteHealthz        = "healthz"
)

//go:embed templates/*.html
var templateFS embed.FS

// Config holds the server behaviour that comes from settings.
type Config struct {
	RootFolderID   string
	RootFolderName string
	MaxDepth       int
	// UploadMemoryLimit is the part of a multipart upload kept in memory;
	// the rest is spooled to temporary files.
	UploadMemoryLimit int64
	// InformativeErrors is whether to report internal error messages to HTTP
	// clients. It should be false in publicly available servers.
	InformativeErrors bool
}

// EmailVerifier extracts a verified account email from a token response.
type EmailVerifier interface {
	Email(ctx context.Context, token *oauth2.Token) (string, error)
}

// Server is the HTTP front-end.
type Server struct {
	cfg       Config
	router    *mux.Router
	handler   http.Handler
	sessions  *session.Manager
	oauth     *oauth2.Config
	factory   auth.ClientFactory
	verifier  EmailVerifier
	gate      *auth.Gate
	templates *template.Template
	decoder   *schema.Decoder
}

// New creates a Server. verifier may be nil.
func New(cfg Config, sessions *session.Manager, oauthConfig *oauth2.Config, factory auth.ClientFactory, verifier EmailVerifier) (*Server, error) {
	s := &Server{
		cfg:      cfg,
		router:   mux.NewRouter(),
		sessions: sessions,
		oauth:    oauthConfig,
		factory:  factory,
		verifier: verifier,
		decoder:  schema.NewDecoder(),
	}
	s.decoder.IgnoreUnknownKeys(true)

	tmpl, err := template.New("").Funcs(template.FuncMap{"url": s.urlString}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	s.templates = tmpl

	s.gate = auth.NewGate(sessions, oauthConfig, factory, s.loginURL)
	s.routes()
	s.handler = logger.Middleware(s.router)
	return s, nil
}

func (s *Server) routes() {
	r := s.router
	r.Use(metrics.Middleware)

	r.Path("/").Methods("GET").Name(RouteIndex).
		Handler(s.serve(s.serveIndex))
	r.Path("/list_folder/").Methods("GET").Name(RouteShowFolder).
		Handler(s.serve(s.gate.Require(RouteShowFolder, s.serveShowFolderContents)))
	r.Path("/download_file/{file_id}/").Methods("GET").Name(RouteDownloadFile).
		Handler(s.serve(s.gate.Require(RouteDownloadFile, s.serveDownloadFile)))
	r.Path("/upload_file/{folder_id}/").Methods("POST").Name(RouteUploadFile).
		Handler(s.serve(s.gate.Require(RouteUploadFile, s.serveUploadFile)))
	r.Path("/oauth2callback/").Methods("GET").Name(RouteOAuth2Callback).
		Handler(s.serve(s.serveOAuth2Callback))
	r.Path("/logout/").Methods("GET", "POST").Name(RouteLogout).
		Handler(s.serve(s.serveLogout))
	r.Path("/healthz").Methods("GET").Name(RouteHealthz).
		HandlerFunc(serveHealthz)
}

func (s *Server) serve(h auth.HandlerFunc) http.Handler {
	return serveWith(handler(h), s.cfg.InformativeErrors)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// URLTo returns the path of the named route. pairs are route variables
// followed by query parameters, as alternating keys and values; keys the
// route template does not use become the query string.
func (s *Server) URLTo(name string, pairs ...string) (*url.URL, error) {
	route := s.router.Get(name)
	if route == nil {
		return nil, fmt.Errorf("unknown route %q", name)
	}
	if len(pairs)%2 != 0 {
		return nil, fmt.Errorf("route %q: odd number of url pairs", name)
	}

	varNames, err := route.GetVarNames()
	if err != nil {
		return nil, err
	}
	isVar := make(map[string]bool, len(varNames))
	for _, v := range varNames {
		isVar[v] = true
	}

	var vars []string
	query := url.Values{}
	for i := 0; i < len(pairs); i += 2 {
		if isVar[pairs[i]] {
			vars = append(vars, pairs[i], pairs[i+1])
		} else {
			query.Add(pairs[i], pairs[i+1])
		}
	}

	u, err := route.URLPath(vars...)
	if err != nil {
		return nil, err
	}
	u.RawQuery = query.Encode()
	return u, nil
}

func (s *Server) urlString(name string, pairs ...string) (string, error) {
	u, err := s.URLTo(name, pairs...)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// loginURL sends the browser to the callback without a code, carrying view.
func (s *Server) loginURL(view string) string {
	u, err := s.URLTo(RouteOAuth2Callback, "redirect_view", view)
	if err != nil {
		return "/oauth2callback/"
	}
	return u.String()
}

// viewURL resolves an OAuth state value to a page. Only routes that can be
// built without variables qualify; anything else lands on the index.
func (s *Server) viewURL(view string) string {
	index, _ := s.URLTo(RouteIndex)
	switch view {
	case "", RouteOAuth2Callback, RouteLogout, RouteHealthz:
		return index.String()
	}

	route := s.router.Get(view)
	if route == nil {
		return index.String()
	}
	u, err := route.URLPath()
	if err != nil {
		return index.String()
	}
	return u.String()
}

func (s *Server) render(w http.ResponseWriter, name string, data interface{}) error {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err := buf.WriteTo(w)
	return err
}

func serveHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok\n"))
}
