package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/volume-counter/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		switch {
		case days > 0:
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		case h > 0:
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		case m > 0:
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Counter</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
#value { font-size: 6em; font-weight: bold; text-align: center; margin: 0.3em 0; }
.controls { display: flex; justify-content: center; gap: 2em; }
.controls button { font-size: 2em; width: 2.5em; height: 2.5em; border-radius: 50%; border: none; color: white; }
.dec, .inc { background: #2a6ad1; }
.reset { background: #e08a00; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.yes { color: green; }
.no { color: red; }
</style>
</head>
<body>
<div id="value" aria-label="Counter">{{.Value}}</div>

<div class="controls">
<form method="post" action="/api/decrement"><input type="hidden" name="return" value="html"><button class="dec" aria-label="Decrease counter">&minus;</button></form>
<form method="post" action="/api/reset"><input type="hidden" name="return" value="html"><button class="reset" aria-label="Reset counter">&#8634;</button></form>
<form method="post" action="/api/increment"><input type="hidden" name="return" value="html"><button class="inc" aria-label="Increase counter">+</button></form>
</div>

<h2>Volume buttons</h2>
<table>
<tr><th>Listening</th><td class="{{if .Observing}}yes{{else}}no{{end}}">{{if .Observing}}yes{{else}}no{{end}}</td></tr>
<tr><th>Increase</th><td>{{.Counts.Increase}}</td></tr>
<tr><th>Decrease</th><td>{{.Counts.Decrease}}</td></tr>
<tr><th>Reset (both)</th><td>{{.Counts.Reset}}</td></tr>
<tr><th>Debounced</th><td>{{.Counts.Dropped}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Last change</th><td>{{if .LastEvent}}{{.LastEvent}} at {{end}}{{.LastUpdated.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}yes{{else}}no{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}} ({{.Config.Broker}})</td></tr>
<tr><th>Store</th><td>{{.Config.Store}}</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Simultaneous</th><td>{{if eq .Config.SimultaneousThresholdMs 0}}disabled{{else}}{{.Config.SimultaneousThresholdMs}}ms{{end}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> &middot; <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has an Uptime() method but the template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
