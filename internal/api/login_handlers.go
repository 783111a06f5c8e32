package api

import (
	"embed"
	"encoding/json"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rcourtman/octopilot/internal/defaults"
	internalerrors "github.com/rcourtman/octopilot/internal/errors"
	"github.com/rcourtman/octopilot/internal/logging"
	"github.com/rcourtman/octopilot/internal/octopus"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const (
	loginFailedMessage  = "Failed to process GitHub login or read HTML form"
	keyFailedMessage    = "Failed to generate temporary key"
	healthFailedMessage = "Failed to process health check"
)

type loginForm struct {
	APIKey string `json:"api"`
	URL    string `json:"url"`
}

// handleOAuthCallback finishes the GitHub login and sends the user on to the Octopus
// form with their token sealed in the state parameter.
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	token, err := s.oauth.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		logger.Error().Err(err).Msg("GitHub code exchange failed")
		http.Error(w, loginFailedMessage, http.StatusInternalServerError)
		return
	}
	state, err := s.sessions.Encode(token)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to seal login state")
		http.Error(w, loginFailedMessage, http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/api/octopus?state="+url.QueryEscape(state), http.StatusMovedPermanently)
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, "octopus.html", struct{ State string }{State: r.URL.Query().Get("state")})
}

func (s *Server) handleQueryForm(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, "form.html", nil)
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		logger := logging.FromContext(r.Context())
		logger.Error().Err(err).Str("page", name).Msg("Failed to render page")
	}
}

// handleLoginSubmit stores the Octopus instance and a limited API key for the GitHub
// user named by the state parameter.
func (s *Server) handleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	token, err := s.sessions.Decode(r.URL.Query().Get("state"))
	if err != nil {
		logger.Info().Err(err).Msg("Rejected login with an invalid state")
		http.Error(w, userMessage(err, s.oauth.LoginURL()), http.StatusUnauthorized)
		return
	}
	user, err := s.users.User(ctx, token)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to identify GitHub user")
		http.Error(w, loginFailedMessage, http.StatusInternalServerError)
		return
	}

	form, err := readLoginForm(r)
	if err != nil {
		logger.Info().Err(err).Str("user", user.Login).Msg("Rejected login form")
		http.Error(w, userMessage(err, s.oauth.LoginURL()), http.StatusBadRequest)
		return
	}

	key, err := s.keys(ctx, octopus.Credentials{URL: form.URL, APIKey: form.APIKey})
	if err != nil {
		logger.Warn().Err(err).Str("user", user.Login).Str("server", form.URL).Msg("Failed to create limited API key")
		http.Error(w, keyFailedMessage, http.StatusBadRequest)
		return
	}

	err = s.store.SaveUserDetails(ctx, defaults.UserDetails{User: user.Login, Server: form.URL, APIKey: key})
	if err != nil {
		logger.Error().Err(err).Str("user", user.Login).Msg("Failed to save user details")
		http.Error(w, loginFailedMessage, http.StatusInternalServerError)
		return
	}

	logger.Info().Str("user", user.Login).Str("server", form.URL).Msg("Saved Octopus details")
	w.WriteHeader(http.StatusCreated)
}

func readLoginForm(r *http.Request) (loginForm, error) {
	const op = "read_login_form"
	var form loginForm
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&form); err != nil {
		return form, internalerrors.NewInvalidArgument(op, "The login form could not be read.")
	}
	form.URL = strings.TrimRight(strings.TrimSpace(form.URL), "/")
	form.APIKey = strings.TrimSpace(form.APIKey)

	parsed, err := url.Parse(form.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return form, internalerrors.NewInvalidArgument(op, "The Octopus URL must be an absolute http or https URL.")
	}
	if form.APIKey == "" {
		return form, internalerrors.NewInvalidArgument(op, "The Octopus API key is required.")
	}
	return form, nil
}

// handleHealth confirms the database and the language model respond.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if err := s.store.Ping(ctx); err != nil {
		logger.Error().Err(err).Msg("Health check failed: database")
		http.Error(w, healthFailedMessage, http.StatusInternalServerError)
		return
	}
	if err := s.health.TestConnection(ctx); err != nil {
		logger.Error().Err(err).Msg("Health check failed: language model")
		http.Error(w, healthFailedMessage, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Healthy"))
}
