package httptransport

import (
	"bytes"
	"net/http"
	"strconv"

	"xpdash/internal/charts/donut"
	"xpdash/internal/charts/timeseries"
	"xpdash/pkg/platform/httputil"
	"xpdash/pkg/requestcontext"
)

type chartQuery struct {
	Cumulative bool
	Width      float64
	Size       float64
}

// parseChartQuery reads the optional ?cumulative=, ?width= and ?size=
// parameters. Cumulative defaults to true.
func parseChartQuery(r *http.Request) (chartQuery, string) {
	q := chartQuery{Cumulative: true}
	values := r.URL.Query()
	if raw := values.Get("cumulative"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return q, "cumulative must be a boolean"
		}
		q.Cumulative = v
	}
	if raw := values.Get("width"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			return q, "width must be a non-negative number"
		}
		q.Width = v
	}
	if raw := values.Get("size"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			return q, "size must be a positive number"
		}
		q.Size = v
	}
	return q, ""
}

func (h *Handler) handleXPChartSVG(w http.ResponseWriter, r *http.Request) {
	h.renderXPChart(w, r, "image/svg+xml", func(buf *bytes.Buffer) timeseries.Surface {
		return timeseries.NewSVGSurface(buf)
	})
}

func (h *Handler) handleXPChartPNG(w http.ResponseWriter, r *http.Request) {
	h.renderXPChart(w, r, "image/png", func(buf *bytes.Buffer) timeseries.Surface {
		return timeseries.NewPNGSurface(buf)
	})
}

// renderXPChart buffers the whole image so a drawing failure can still turn
// into a JSON error instead of a truncated body.
func (h *Handler) renderXPChart(w http.ResponseWriter, r *http.Request, contentType string, surface func(*bytes.Buffer) timeseries.Surface) {
	ctx := r.Context()
	q, problem := parseChartQuery(r)
	if problem != "" {
		httputil.WriteError(w, http.StatusBadRequest, "bad_request", problem)
		return
	}

	sid, tokens := h.tokens(r)
	events, err := h.dash.XPEvents(ctx, sid, tokens)
	if err != nil {
		h.writeChartError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := timeseries.Render(surface(&buf), events, timeseries.Options{Cumulative: q.Cumulative, Width: q.Width}); err != nil {
		h.logger.ErrorContext(ctx, "failed to draw xp chart",
			"request_id", requestcontext.RequestID(ctx),
			"content_type", contentType,
			"error", err,
		)
		httputil.WriteError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) handleAuditRatioSVG(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q, problem := parseChartQuery(r)
	if problem != "" {
		httputil.WriteError(w, http.StatusBadRequest, "bad_request", problem)
		return
	}

	sid, tokens := h.tokens(r)
	profile, err := h.dash.Profile(ctx, sid, tokens)
	if err != nil {
		h.writeChartError(w, r, err)
		return
	}

	sample := profile.AuditSample()
	var buf bytes.Buffer
	if err := donut.Render(&buf, sample.TotalUp, sample.TotalDown, donut.Options{Size: q.Size}); err != nil {
		h.logger.ErrorContext(ctx, "failed to draw audit ratio",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}
