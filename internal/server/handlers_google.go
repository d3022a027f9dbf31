package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tylerlaw/portfolio/internal/credentials"
)

func isNotAuthenticated(err error) bool {
	return errors.Is(err, credentials.ErrNotAuthenticated)
}

// handleAuthStart sends the owner to Google's consent page with a signed state cookie.
func (s *Server) handleAuthStart(r *http.Request) (*response, error) {
	state := uuid.NewString()
	signed, err := s.sessions.sign(stateSubject, state, stateTTL)
	if err != nil {
		return nil, err
	}
	return redirectTo(s.opts.Auth.AuthCodeURL(state),
		s.cookie(stateCookie, signed, "/auth/google", stateTTL)), nil
}

// handleAuthCallback checks the state before exchanging the code.
func (s *Server) handleAuthCallback(r *http.Request) (*response, error) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		return nil, badRequest("Google sign-in failed: " + e)
	}

	c, err := r.Cookie(stateCookie)
	if err != nil {
		return nil, badRequest("Invalid OAuth state")
	}
	want, err := s.sessions.verify(c.Value, stateSubject)
	if err != nil || want == "" || q.Get("state") != want {
		return nil, badRequest("Invalid OAuth state")
	}
	code := q.Get("code")
	if code == "" {
		return nil, badRequest("Missing authorization code")
	}

	if _, err := s.opts.Auth.Exchange(r.Context(), code); err != nil {
		return nil, err
	}
	owner, err := s.sessions.sign(ownerSubject, "", ownerTTL)
	if err != nil {
		return nil, err
	}
	s.logger.Info("owner signed in")
	return redirectTo(s.opts.PostLoginRedirect,
		s.expiredCookie(stateCookie, "/auth/google"),
		s.cookie(ownerCookie, owner, "/", ownerTTL)), nil
}

func (s *Server) handleCreateSession(r *http.Request) (*response, error) {
	session, err := s.opts.Google.CreatePickerSession(r.Context())
	if err != nil {
		return nil, err
	}
	return jsonResponse(http.StatusOK, map[string]any{
		"sessionId": session.ID,
		"pickerUri": session.PickerURI,
		"raw":       session,
	}), nil
}

func (s *Server) handleGetSession(r *http.Request) (*response, error) {
	session, err := s.opts.Google.GetPickerSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return nil, err
	}
	return jsonResponse(http.StatusOK, session), nil
}

func (s *Server) handlePickedItems(r *http.Request) (*response, error) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		return nil, badRequest("Missing sessionId")
	}
	items, err := s.opts.Google.ListPickedMediaItems(r.Context(), sessionID)
	if err != nil {
		return nil, err
	}
	return jsonResponse(http.StatusOK, nonNil(items)), nil
}

func (s *Server) handleAlbums(r *http.Request) (*response, error) {
	albums, err := s.opts.Google.ListAlbums(r.Context())
	if err != nil {
		return nil, err
	}
	return jsonResponse(http.StatusOK, nonNil(albums)), nil
}

func (s *Server) handleAlbumItems(r *http.Request) (*response, error) {
	items, err := s.opts.Google.SearchAlbumMediaItems(r.Context(), chi.URLParam(r, "albumID"))
	if err != nil {
		return nil, err
	}
	return jsonResponse(http.StatusOK, nonNil(items)), nil
}
