package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/teemow/inboxsense/internal/analysis"
	"github.com/teemow/inboxsense/internal/apperr"
	"github.com/teemow/inboxsense/internal/credential"
	"github.com/teemow/inboxsense/internal/gmail"
	"github.com/teemow/inboxsense/internal/logging"
)

// RootMessage is the plain-text answer of GET /.
const RootMessage = "AI Email POC Server is running!"

// Sample email analyzed by POST /analyze-test.
const (
	SampleSubject = "Inquiry about Product Pricing"
	SampleBody    = `
        Hello Sales Team,

        I hope this email finds you well.
        I was looking at your product catalog online and I'm very interested in the 'SuperWidget Pro'.
        Could you please provide me with the current pricing details and any available bulk discounts?

        Looking forward to your response.

        Best regards,
        Potential Customer
    `
)

const (
	msgSampleSuccess   = "Analysis successful (using hardcoded data)"
	msgSampleFailure   = "Analysis failed (using hardcoded data)"
	msgAnalysisFailure = "Analysis failed"
	msgAuthSuccess     = "Authorization successful. You can close this window."
	msgAuthFailure     = "Authorization failed"
	msgAuthUnavailable = "Google sign-in is not configured on this server."
	msgBadRequest      = "Request body must be a JSON object with non-empty subject and body."

	// maxRequestBody bounds POST /analyze bodies.
	maxRequestBody = 1 << 20
)

// Response is the JSON envelope of the API endpoints.
type Response struct {
	Message  string              `json:"message"`
	Analysis *analysis.Result    `json:"analysis,omitempty"`
	Email    *gmail.EmailMessage `json:"email,omitempty"`
	Error    string              `json:"error,omitempty"`
	Code     string              `json:"code,omitempty"`
}

// AnalyzeRequest is the body of POST /analyze.
type AnalyzeRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type handlers struct {
	sc     *ServerContext
	logger *slog.Logger
}

func (h *handlers) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.root)
	mux.HandleFunc("GET /auth/google", h.authGoogle)
	mux.HandleFunc("GET /oauth2callback", h.oauthCallback)
	mux.HandleFunc("POST /analyze-test", h.analyzeTest)
	mux.HandleFunc("POST /analyze", h.analyze)
	mux.HandleFunc("POST /analyze-latest", h.analyzeLatest)
}

func (h *handlers) root(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, RootMessage)
}

// authGoogle starts a session if needed and redirects to Google's consent screen.
func (h *handlers) authGoogle(w http.ResponseWriter, r *http.Request) {
	if h.sc.auth == nil || !h.sc.auth.Configured() {
		h.logger.Error("consent requested without Google client configuration")
		writeJSON(w, http.StatusInternalServerError, Response{
			Message: msgAuthUnavailable,
			Code:    apperr.CodeConfiguration,
		})
		return
	}

	key := h.ensureSession(w, r)
	url, err := h.sc.auth.ConsentURL(r.Context(), key)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, Response{
			Message: msgAuthUnavailable,
			Error:   err.Error(),
			Code:    apperr.Code(err),
		})
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

// oauthCallback redeems the authorization code Google sends to the redirect URI.
func (h *handlers) oauthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if denied := q.Get("error"); denied != "" {
		h.logger.Warn("authorization denied by user or provider", "error", denied)
		writeJSON(w, http.StatusBadRequest, Response{
			Message: msgAuthFailure,
			Error:   denied,
			Code:    apperr.CodeAuthorization,
		})
		return
	}
	if h.sc.auth == nil {
		writeJSON(w, http.StatusInternalServerError, Response{
			Message: msgAuthUnavailable,
			Code:    apperr.CodeConfiguration,
		})
		return
	}

	if _, err := h.sc.auth.Exchange(r.Context(), q.Get("code"), q.Get("state")); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, apperr.ErrAuthorization) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, Response{
			Message: msgAuthFailure,
			Error:   err.Error(),
			Code:    apperr.Code(err),
		})
		return
	}
	writeJSON(w, http.StatusOK, Response{Message: msgAuthSuccess})
}

func (h *handlers) analyzeTest(w http.ResponseWriter, r *http.Request) {
	out := h.sc.pipeline.AnalyzeText(r.Context(), SampleSubject, SampleBody)
	if !out.OK {
		writeJSON(w, http.StatusInternalServerError, Response{
			Message: msgSampleFailure,
			Error:   out.Message,
			Code:    apperr.Code(out.Err),
		})
		return
	}
	writeJSON(w, http.StatusOK, Response{Message: msgSampleSuccess, Analysis: out.Analysis})
}

func (h *handlers) analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil || strings.TrimSpace(req.Subject) == "" || strings.TrimSpace(req.Body) == "" {
		if err != nil {
			h.logger.Warn("rejected analyze request", logging.Err(err))
		}
		writeJSON(w, http.StatusBadRequest, Response{Message: msgBadRequest})
		return
	}

	out := h.sc.pipeline.AnalyzeText(r.Context(), req.Subject, req.Body)
	if !out.OK {
		writeJSON(w, http.StatusInternalServerError, Response{
			Message: msgAnalysisFailure,
			Error:   out.Message,
			Code:    apperr.Code(out.Err),
		})
		return
	}
	writeJSON(w, http.StatusOK, Response{Message: out.Message, Analysis: out.Analysis})
}

// analyzeLatest runs the full pipeline for the caller's session.
func (h *handlers) analyzeLatest(w http.ResponseWriter, r *http.Request) {
	out := h.sc.pipeline.Run(r.Context(), h.resolveSession(r))
	if out.OK {
		writeJSON(w, http.StatusOK, Response{Message: out.Message, Analysis: out.Analysis, Email: out.Email})
		return
	}

	status := apperr.HTTPStatus(out.Err)
	if errors.Is(out.Err, gmail.ErrNoUnreadMail) {
		status = http.StatusNotFound
	}
	writeJSON(w, status, Response{
		Message: msgAnalysisFailure,
		Error:   out.Message,
		Code:    apperr.Code(out.Err),
	})
}

func (h *handlers) resolveSession(r *http.Request) string {
	if h.sc.sessions == nil {
		return credential.DefaultKey
	}
	return h.sc.sessions.Resolve(r)
}

func (h *handlers) ensureSession(w http.ResponseWriter, r *http.Request) string {
	if h.sc.sessions == nil {
		return credential.DefaultKey
	}
	return h.sc.sessions.Ensure(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
