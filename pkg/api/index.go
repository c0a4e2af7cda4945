package api

import (
	"html/template"
	"log"
	"net/http"
	"time"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"fmtTime": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.UTC().Format(time.RFC3339)
	},
}).Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>wirv</title></head>
<body style="font-family: monospace; background: #000; color: #ccc">
<h1>wirv request log</h1>
{{if .HasLogs}}
<p>Logs from {{fmtTime .From}} to {{fmtTime .To}}</p>
{{else}}
<p>No logs stored yet.</p>
{{end}}
<ul>
<li><a href="/api/request_log/timeline">/api/request_log/timeline</a></li>
<li><a href="/api/request_log/range">/api/request_log/range</a></li>
<li><a href="/api/health/">/api/health/</a></li>
<li><a href="/metrics">/metrics</a></li>
</ul>
<p>Run <code>wirv-viewer --api-url {{.BaseURL}}</code> to watch the globe.</p>
</body>
</html>
`))

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	from, to, ok, err := s.store.Extent(r.Context())
	if err != nil {
		log.Printf("[API] Failed to read log extent: %v", err)
	}
	data := map[string]any{
		"HasLogs": ok,
		"From":    from,
		"To":      to,
		"BaseURL": "http://" + r.Host,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTmpl.Execute(w, data); err != nil {
		log.Printf("[API] Failed to render index: %v", err)
	}
}
