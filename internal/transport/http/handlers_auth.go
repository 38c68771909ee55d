package httptransport

import (
	"errors"
	"net/http"
	"strconv"

	authservice "xpdash/internal/auth/service"
	"xpdash/pkg/requestcontext"
)

type loginPage struct {
	Identifier string
	Error      string
}

// handleIndex shows the sign-in form, or skips to the dashboard when the
// session already holds a usable token.
func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	_, tokens := h.tokens(r)
	token, err := tokens.Get(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to read session token",
			"request_id", requestcontext.RequestID(r.Context()),
			"error", err,
		)
	}
	if err == nil && h.validator.IsValid(token) {
		http.Redirect(w, r, "/profile", http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, "login.html", loginPage{})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	if err := r.ParseForm(); err != nil {
		h.render(w, r, http.StatusBadRequest, "login.html", loginPage{Error: "Please fill in both fields."})
		return
	}
	identifier := r.PostFormValue("identifier")
	password := r.PostFormValue("password")

	if !h.allowSignIn(w, r) {
		h.render(w, r, http.StatusTooManyRequests, "login.html", loginPage{
			Identifier: identifier,
			Error:      "Too many sign-in attempts. Try again later.",
		})
		return
	}

	sid, tokens := h.tokens(r)
	if _, err := h.auth.SignIn(ctx, tokens, identifier, password); err != nil {
		page := loginPage{Identifier: identifier, Error: userMessage(err)}
		var signInErr *authservice.SignInError
		if errors.As(err, &signInErr) {
			h.logger.InfoContext(ctx, "sign-in rejected",
				"request_id", requestID,
				"reason", signInErr.Message,
			)
			h.render(w, r, http.StatusUnauthorized, "login.html", page)
			return
		}
		h.logger.ErrorContext(ctx, "sign-in failed",
			"request_id", requestID,
			"error", err,
		)
		h.render(w, r, http.StatusBadGateway, "login.html", page)
		return
	}

	// A fresh sign-in must not show panels loaded for a previous token.
	h.dash.Teardown(sid)
	h.metrics.IncrementSignIns()
	http.Redirect(w, r, "/profile", http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid, tokens := h.tokens(r)
	if err := h.auth.SignOut(ctx, tokens); err != nil {
		h.logger.ErrorContext(ctx, "failed to clear session token",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
	h.dash.Teardown(sid)
	h.metrics.IncrementSignOuts()
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// allowSignIn consults the sign-in limiter and sets Retry-After when the
// client is throttled. A failing limiter store lets the attempt through.
func (h *Handler) allowSignIn(w http.ResponseWriter, r *http.Request) bool {
	ctx := r.Context()
	ip := requestcontext.ClientIP(ctx)
	res, err := h.limiter.CheckSignIn(ctx, ip)
	if err != nil {
		h.logger.WarnContext(ctx, "sign-in limiter unavailable",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return true
	}
	if res.Allowed {
		return true
	}
	h.logger.InfoContext(ctx, "sign-in throttled",
		"request_id", requestcontext.RequestID(ctx),
		"client_ip", ip,
	)
	retry := res.RetryAfter(requestcontext.Now(ctx))
	w.Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds())))
	return false
}
