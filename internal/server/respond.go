package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/tylerlaw/portfolio/internal/credentials"
	"github.com/tylerlaw/portfolio/internal/gallery"
	"github.com/tylerlaw/portfolio/internal/google"
	"github.com/tylerlaw/portfolio/internal/media"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// response is what a handler returns: a JSON body, raw bytes, or a redirect.
type response struct {
	status      int
	body        any
	raw         []byte
	contentType string
	redirect    string
	cookies     []*http.Cookie
}

func jsonResponse(status int, body any) *response {
	return &response{status: status, body: body}
}

func redirectTo(url string, cookies ...*http.Cookie) *response {
	return &response{status: http.StatusFound, redirect: url, cookies: cookies}
}

func (resp *response) write(w http.ResponseWriter, r *http.Request) {
	for _, c := range resp.cookies {
		http.SetCookie(w, c)
	}
	switch {
	case resp.redirect != "":
		http.Redirect(w, r, resp.redirect, resp.status)
	case resp.raw != nil:
		if resp.contentType != "" {
			w.Header().Set("Content-Type", resp.contentType)
		}
		w.WriteHeader(resp.status)
		w.Write(resp.raw)
	case resp.body != nil:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.status)
		json.NewEncoder(w).Encode(resp.body)
	default:
		w.WriteHeader(resp.status)
	}
}

// apiError is a failure with a status and a message safe to show the caller.
// cause, when set, is logged and never sent.
type apiError struct {
	status  int
	message string
	cause   error
}

func (e *apiError) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

func (e *apiError) Unwrap() error { return e.cause }

func badRequest(message string) error {
	return &apiError{status: http.StatusBadRequest, message: message}
}

// internalError hides cause behind message.
func internalError(message string, cause error) error {
	return &apiError{status: http.StatusInternalServerError, message: message, cause: cause}
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, credentials.ErrNotAuthenticated) {
		http.Redirect(w, r, "/auth/google", http.StatusFound)
		return
	}

	var apiErr *apiError
	if errors.As(err, &apiErr) {
		if apiErr.status >= 500 {
			s.logFailure(r, err)
		}
		writeJSON(w, apiErr.status, errorBody{apiErr.message})
		return
	}

	var vendorErr *google.APIError
	if errors.As(err, &vendorErr) {
		s.logger.Warn("google api error",
			zap.String("op", vendorErr.Op),
			zap.Int("status", vendorErr.StatusCode),
			zap.ByteString("body", vendorErr.Body))
		writeVendor(w, vendorErr.StatusCode, vendorErr.Body)
		return
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		s.logger.Warn("oauth token exchange failed",
			zap.Int("status", retrieveErr.Response.StatusCode),
			zap.String("error_code", retrieveErr.ErrorCode))
		writeVendor(w, retrieveErr.Response.StatusCode, retrieveErr.Body)
		return
	}

	switch {
	case errors.Is(err, gallery.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{"Not found"})
	case errors.Is(err, gallery.ErrInvalidIDs):
		writeJSON(w, http.StatusBadRequest, errorBody{err.Error()})
	case errors.Is(err, media.ErrOutsideRoot):
		writeJSON(w, http.StatusBadRequest, errorBody{"Invalid file path"})
	default:
		s.logFailure(r, err)
		writeJSON(w, http.StatusInternalServerError, errorBody{"Internal server error"})
	}
}

func (s *Server) logFailure(r *http.Request, err error) {
	s.logger.Error("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeVendor relays a Google error status and body. Non-JSON bodies are wrapped.
func writeVendor(w http.ResponseWriter, status int, body []byte) {
	if status < 400 || status > 599 {
		status = http.StatusBadGateway
	}
	if json.Valid(body) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write(body)
		return
	}
	writeJSON(w, status, errorBody{string(body)})
}

// decodeJSON reads a JSON request body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return badRequest("Invalid request body")
	}
	return nil
}
