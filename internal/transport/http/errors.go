package httptransport

import (
	"errors"
	"net/http"

	authservice "xpdash/internal/auth/service"
	"xpdash/internal/graphql"
	"xpdash/pkg/platform/httputil"
	"xpdash/pkg/requestcontext"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	httputil.WriteJSON(w, status, v)
}

// userMessage is the text shown in a panel for a failed load.
func userMessage(err error) string {
	var (
		transport *graphql.TransportError
		query     *graphql.QueryError
		signIn    *authservice.SignInError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &signIn):
		return signIn.Message
	case errors.As(err, &transport):
		return transport.Error()
	case errors.As(err, &query):
		return query.Error()
	default:
		return "Couldn’t reach the server. Try again."
	}
}

// unauthorized ends the browser session's dashboard after the upstream
// rejected its token. The API client has already cleared the token.
func (h *Handler) unauthorized(r *http.Request) {
	h.dash.Teardown(requestcontext.SessionID(r.Context()))
	h.metrics.IncrementSignOuts()
}

// writeChartError maps a load failure onto a JSON response for the chart
// endpoints.
func (h *Handler) writeChartError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	if errors.Is(err, graphql.ErrUnauthorized) {
		h.unauthorized(r)
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized", "Session expired, sign in again")
		return
	}
	h.logger.WarnContext(ctx, "chart data unavailable",
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, http.StatusBadGateway, "upstream_error", userMessage(err))
}
