package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-magiclink/internal/api/dto"
	"github.com/hugh/go-magiclink/internal/api/middleware"
	"github.com/hugh/go-magiclink/internal/auth"
	"github.com/hugh/go-magiclink/internal/magiclink"
)

// AuthOptions controls how much the auth endpoints reveal and how the session
// cookie is set.
type AuthOptions struct {
	SessionTTL time.Duration
	// ExposeMagicLinks returns the raw token and link in the request response.
	// Development only.
	ExposeMagicLinks bool
	ExposeErrors     bool
	SecureCookies    bool
}

type AuthHandler struct {
	authService auth.Authenticator
	opts        AuthOptions
	errs        errorWriter
}

func NewAuthHandler(authService auth.Authenticator, opts AuthOptions, logger *slog.Logger) *AuthHandler {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = auth.DefaultSessionTTL
	}
	return &AuthHandler{
		authService: authService,
		opts:        opts,
		errs:        errorWriter{logger: logger, exposeErrors: opts.ExposeErrors},
	}
}

func (h *AuthHandler) RequestMagicLink(w http.ResponseWriter, r *http.Request) {
	var req dto.MagicLinkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Normalize()

	if errors := req.Validate(); len(errors) > 0 {
		writeValidation(w, errors)
		return
	}

	identity := magiclink.Identity{Email: req.Email, Name: req.Name}
	if req.UserID != "" {
		id, err := uuid.Parse(req.UserID)
		if err != nil {
			writeValidation(w, map[string]string{"userId": "must be a valid UUID"})
			return
		}
		identity.UserID = id
	}

	issued, err := h.authService.RequestMagicLink(r.Context(), identity)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}

	resp := dto.MagicLinkResponse{
		Message:   "Magic link sent",
		ExpiresAt: issued.ExpiresAt,
		User:      dto.NewUserResponse(issued.User),
	}
	if h.opts.ExposeMagicLinks {
		resp.Token = issued.Token
		resp.MagicLink = issued.URL
	}

	writeJSON(w, http.StatusCreated, resp)
}

func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req dto.VerifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.verify(w, r, req)
}

// VerifyQuery serves the link itself, which carries the token as ?token=.
func (h *AuthHandler) VerifyQuery(w http.ResponseWriter, r *http.Request) {
	h.verify(w, r, dto.VerifyRequest{Token: r.URL.Query().Get("token")})
}

func (h *AuthHandler) verify(w http.ResponseWriter, r *http.Request, req dto.VerifyRequest) {
	if errors := req.Validate(); len(errors) > 0 {
		writeValidation(w, errors)
		return
	}

	resp, err := h.authService.VerifyMagicLink(r.Context(), req.Token)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    resp.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.opts.SessionTTL.Seconds()),
	})

	writeJSON(w, http.StatusOK, dto.AuthResponse{
		Token: resp.Token,
		User:  dto.NewUserResponse(resp.User),
	})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.authService.GetUserByID(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.errs.write(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.NewUserResponse(user))
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.opts.SecureCookies,
		MaxAge:   -1,
	})

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Logged out"})
}
