package http

import (
	"html/template"
	"net/http"

	"log/slog"
)

// Page shells only: real rendering lives in the frontend templates, but
// every gated route needs a handler behind the gate.
var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.Title}} · Stridelog</title></head>
<body>
<h1>{{.Title}}</h1>
{{if .User}}
<p>Signed in as {{.User.Email}}</p>
{{if .Profile}}<p>{{.Profile.FullName}}</p>{{end}}
{{if .StravaConnected}}<p>Strava connected</p>{{else}}<p><a href="/api/auth/strava">Connect Strava</a></p>{{end}}
{{else}}
<p><a href="/api/auth/strava">Sign in with Strava</a></p>
{{end}}
</body>
</html>
`))

type pageData struct {
	Title string
	RequestContext
}

// PageHandler renders the minimal server-side page shells.
type PageHandler struct {
	logger *slog.Logger
}

// NewPageHandler creates a new PageHandler.
func NewPageHandler(logger *slog.Logger) *PageHandler {
	return &PageHandler{logger: logger}
}

// Page returns a handler rendering the shell for the named page with the
// gate's request context.
func (h *PageHandler) Page(title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := pageData{
			Title:          title,
			RequestContext: RequestContextFrom(r.Context()),
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := pageTemplate.Execute(w, data); err != nil {
			h.logger.Error("render page", "page", title, "error", err)
		}
	}
}
