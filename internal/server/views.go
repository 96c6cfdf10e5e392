package server

import (
	"crypto/subtle"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/FranLegon/drive-web/internal/api"
	"github.com/FranLegon/drive-web/internal/auth"
	"github.com/FranLegon/drive-web/internal/crypto"
	"github.com/FranLegon/drive-web/internal/logger"
	"github.com/FranLegon/drive-web/internal/metrics"
	"github.com/FranLegon/drive-web/internal/model"
	"github.com/FranLegon/drive-web/internal/navigator"
)

var viewTags = []string{"View"}

type indexPage struct {
	Email     string
	SignedIn  bool
	RootLabel string
}

func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) error {
	sess, err := s.sessions.Load(r)
	if err != nil {
		return err
	}

	label := s.cfg.RootFolderName
	if label == "" {
		label = "My Drive"
	}
	return s.render(w, "index.html", indexPage{
		Email:     sess.Email,
		SignedIn:  sess.HasCredentials(),
		RootLabel: label,
	})
}

type listFolderParams struct {
	FolderPath string `schema:"folder_path"`
	FolderID   string `schema:"folder_id"`
}

type folderPage struct {
	Entries        []model.Entry
	UploadFolderID string
}

func (s *Server) serveShowFolderContents(w http.ResponseWriter, r *http.Request, drive api.Drive) error {
	var params listFolderParams
	if err := s.decoder.Decode(&params, r.URL.Query()); err != nil {
		return &httpError{http.StatusBadRequest, err}
	}

	opts := navigator.Options{MaxDepth: s.cfg.MaxDepth}
	startID := s.cfg.RootFolderID
	var segments []string
	if params.FolderID != "" {
		startID = params.FolderID
	} else {
		segments = navigator.SplitPath(params.FolderPath, s.cfg.RootFolderName)
	}

	res, err := navigator.Navigate(r.Context(), drive, segments, startID, opts)
	if err != nil {
		return err
	}
	metrics.RecordNavigation(res.Depth)

	entries := make([]model.Entry, 0, len(res.Entries))
	for _, node := range res.Entries {
		entry, err := s.entryFor(node)
		if err != nil {
			return err
		}
		entries = append(entries, entry)
	}

	logger.WithContext(r.Context()).Debug("listed folder",
		zap.Strings("tags", viewTags),
		zap.String("folder_id", res.FolderID),
		zap.Int("depth", res.Depth),
		zap.Int("entries", len(entries)))

	return s.render(w, "folder_contents.html", folderPage{
		Entries:        entries,
		UploadFolderID: res.FolderID,
	})
}

func (s *Server) entryFor(node *model.Node) (model.Entry, error) {
	entry := model.Entry{
		ID:           node.ID,
		Title:        node.Title,
		ModifiedDate: model.ModifiedDate(node.ModifiedTime),
		IsFolder:     node.IsFolder(),
	}
	if entry.IsFolder {
		u, err := s.URLTo(RouteShowFolder, "folder_id", node.ID)
		if err != nil {
			return entry, err
		}
		entry.Path = u.String()
	}
	return entry, nil
}

func (s *Server) serveDownloadFile(w http.ResponseWriter, r *http.Request, drive api.Drive) (err error) {
	ctx := r.Context()
	fileID := mux.Vars(r)["file_id"]

	var written int64
	defer func() { metrics.RecordDownload(written, err == nil) }()

	node, err := drive.GetFile(ctx, fileID)
	if err != nil {
		return err
	}
	if node.IsFolder() {
		return &httpError{http.StatusBadRequest, errFolderDownload}
	}

	contentType := node.MimeType
	ext := extension(node.Title)

	var body io.ReadCloser
	if node.IsGoogleDocument() {
		format := exportFormatFor(node.MimeType)
		body, err = drive.Export(ctx, fileID, format.MimeType)
		contentType, ext = format.MimeType, format.Ext
	} else {
		body, err = drive.Download(ctx, fileID)
	}
	if err != nil {
		return err
	}
	defer body.Close()

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+downloadName(ext)+`"`)

	written, err = io.Copy(w, body)
	if err != nil {
		return err
	}

	logger.WithContext(ctx).Info("file downloaded",
		zap.Strings("tags", viewTags), zap.String("file_id", fileID), zap.Int64("bytes", written))
	return nil
}

func (s *Server) serveUploadFile(w http.ResponseWriter, r *http.Request, drive api.Drive) (err error) {
	ctx := r.Context()
	folderID := mux.Vars(r)["folder_id"]

	var sent int64
	defer func() { metrics.RecordUpload(sent, err == nil) }()

	if err := r.ParseMultipartForm(s.cfg.UploadMemoryLimit); err != nil {
		return &httpError{http.StatusBadRequest, err}
	}
	defer r.MultipartForm.RemoveAll()

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		return &httpError{http.StatusBadRequest, errMissingName}
	}

	content, _, err := r.FormFile("content")
	if err != nil {
		return &httpError{http.StatusBadRequest, errMissingContent}
	}
	defer content.Close()

	counter := &countingReader{r: content}
	node, err := drive.CreateFile(ctx, folderID, name, counter)
	sent = counter.n
	if err != nil {
		return err
	}

	logger.WithContext(ctx).Info("file uploaded",
		zap.Strings("tags", viewTags),
		zap.String("file_id", node.ID),
		zap.String("folder_id", folderID),
		zap.Int64("bytes", sent))

	u, err := s.URLTo(RouteShowFolder, "folder_id", folderID)
	if err != nil {
		return err
	}
	http.Redirect(w, r, u.String(), http.StatusFound)
	return nil
}

func (s *Server) serveOAuth2Callback(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	log := logger.WithContext(ctx)
	q := r.URL.Query()

	if reason := q.Get("error"); reason != "" {
		log.Info("authorization declined", zap.Strings("tags", viewTags), zap.String("error", reason))
		return &httpError{http.StatusForbidden, errAuthorizationDenied}
	}

	code := q.Get("code")
	if code == "" {
		return s.startAuthorization(w, r, q.Get("redirect_view"))
	}

	sess, err := s.sessions.Load(r)
	if err != nil {
		return err
	}
	view, nonce := splitState(q.Get("state"))
	if sess.OAuthState == "" || subtle.ConstantTimeCompare([]byte(nonce), []byte(sess.OAuthState)) != 1 {
		log.Warn("authorization state mismatch", zap.Strings("tags", viewTags), zap.String("view", view))
		return &httpError{http.StatusForbidden, errStateMismatch}
	}

	token, err := s.oauth.Exchange(ctx, code)
	metrics.RecordCodeExchange(err == nil)
	if err != nil {
		return &httpError{http.StatusBadRequest, err}
	}

	email, err := s.accountEmail(r, token)
	if err != nil {
		return &httpError{http.StatusUnauthorized, err}
	}

	if err := s.sessions.Renew(sess); err != nil {
		return err
	}
	sess.Token = token
	sess.Email = email
	sess.OAuthState = ""
	if err := s.sessions.Save(w, sess); err != nil {
		return err
	}

	log.Info("signed in", zap.Strings("tags", viewTags), zap.String("email", sess.Email))
	http.Redirect(w, r, s.viewURL(view), http.StatusFound)
	return nil
}

// startAuthorization stores a fresh nonce in the session and sends the
// browser to the consent screen. The state returns view and the nonce.
func (s *Server) startAuthorization(w http.ResponseWriter, r *http.Request, view string) error {
	sess, err := s.sessions.Load(r)
	if err != nil {
		return err
	}
	nonce, err := crypto.RandomSecret(stateNonceBytes)
	if err != nil {
		return fmt.Errorf("failed to generate state: %w", err)
	}
	sess.OAuthState = nonce
	if err := s.sessions.Save(w, sess); err != nil {
		return err
	}

	http.Redirect(w, r, auth.AuthCodeURL(s.oauth, joinState(view, nonce)), http.StatusFound)
	return nil
}

const stateNonceBytes = 16

// joinState builds the OAuth state value "<view>.<nonce>". Route names and
// base64url nonces never contain a dot.
func joinState(view, nonce string) string {
	return view + "." + nonce
}

// splitState reverses joinState. A state without a dot has no nonce.
func splitState(state string) (view, nonce string) {
	i := strings.LastIndexByte(state, '.')
	if i < 0 {
		return state, ""
	}
	return state[:i], state[i+1:]
}

// accountEmail returns the email of the account behind token. With a
// verifier configured the ID token must check out. Otherwise the Drive about
// endpoint is asked, and a failure there only costs the greeting.
func (s *Server) accountEmail(r *http.Request, token *oauth2.Token) (string, error) {
	ctx := r.Context()
	log := logger.WithContext(ctx)

	if s.verifier != nil {
		return s.verifier.Email(ctx, token)
	}

	drive, err := s.factory(ctx, s.oauth.TokenSource(ctx, token))
	if err != nil {
		log.Warn("failed to create drive client", zap.Strings("tags", viewTags), zap.Error(err))
		return "", nil
	}
	email, err := drive.UserEmail(ctx)
	if err != nil {
		log.Warn("failed to look up account email", zap.Strings("tags", viewTags), zap.Error(err))
		return "", nil
	}
	return email, nil
}

func (s *Server) serveLogout(w http.ResponseWriter, r *http.Request) error {
	if err := s.sessions.Destroy(w, r); err != nil {
		return err
	}
	u, err := s.URLTo(RouteIndex)
	if err != nil {
		return err
	}
	http.Redirect(w, r, u.String(), http.StatusFound)
	return nil
}
