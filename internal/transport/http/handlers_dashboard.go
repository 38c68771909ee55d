package httptransport

import (
	"bytes"
	"errors"
	"html/template"
	"net/http"

	"xpdash/internal/charts/donut"
	"xpdash/internal/charts/timeseries"
	"xpdash/internal/dashboard"
	"xpdash/internal/graphql"
	"xpdash/internal/progress/models"
	"xpdash/pkg/requestcontext"
)

type profilePage struct {
	dashboard.Snapshot
	XPChart template.HTML
	XPError string
	Donut   template.HTML
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid, tokens := h.tokens(r)

	snap, err := h.dash.Load(ctx, sid, tokens)
	if err != nil {
		if errors.Is(err, graphql.ErrUnauthorized) {
			h.unauthorized(r)
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		h.logger.ErrorContext(ctx, "dashboard load failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		h.render(w, r, http.StatusBadGateway, "profile.html", profilePage{
			Snapshot: dashboard.Snapshot{Profile: dashboard.State[models.Profile]{Err: err}},
			XPError:  userMessage(err),
		})
		return
	}

	page := profilePage{Snapshot: snap}
	if snap.XP.Err != nil {
		page.XPError = userMessage(snap.XP.Err)
	} else {
		var buf bytes.Buffer
		if err := timeseries.Render(timeseries.NewSVGSurface(&buf), snap.XP.Value, timeseries.Options{Cumulative: true}); err != nil {
			page.XPError = "Couldn’t draw the XP chart."
		} else {
			// Markup is produced by the chart renderer with every text node escaped.
			page.XPChart = template.HTML(buf.String())
		}
	}
	sample := snap.Profile.Value.AuditSample()
	if svg, err := donut.RenderRatioDonut(sample.TotalUp, sample.TotalDown, donut.Options{}); err != nil {
		h.logger.ErrorContext(ctx, "failed to draw audit ratio",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	} else {
		// Colours and labels are attribute-escaped by the donut templates.
		page.Donut = template.HTML(svg)
	}

	h.render(w, r, http.StatusOK, "profile.html", page)
}
