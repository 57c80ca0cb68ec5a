package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/coldchain-sensor/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"orUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
	"celsius": func(v float64) string {
		return fmt.Sprintf("%.1f °C", v)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Cold Chain Sensor</title>
<style>
body { font-family: monospace; max-width: 640px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.ok { color: green; font-weight: bold; }
.warn { color: orange; font-weight: bold; }
.alarm { color: red; font-weight: bold; }
.muted { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Cold Chain Sensor</h1>

<h2>Storage</h2>
<table>
<tr><th>Temperature</th><td class="{{if eq (printf "%s" .State.Storage.Status) "NORMAL"}}ok{{else}}alarm{{end}}">{{celsius .State.Storage.Last}}</td></tr>
<tr><th>Status</th><td>{{orUnknown (printf "%s" .State.Storage.Status)}}</td></tr>
<tr><th>Window min / max / avg</th><td>{{celsius .State.Storage.Min}} / {{celsius .State.Storage.Max}} / {{celsius .State.Storage.Average}}</td></tr>
<tr><th>Excursions</th><td>{{.State.Storage.ExcursionCount}}</td></tr>
</table>

<h2>Ambient</h2>
<table>
<tr><th>Temperature</th><td class="{{if eq (printf "%s" .State.Ambient.Status) "NORMAL"}}ok{{else}}warn{{end}}">{{celsius .State.Ambient.Last}}</td></tr>
<tr><th>Status</th><td>{{orUnknown (printf "%s" .State.Ambient.Status)}}</td></tr>
<tr><th>Excursions</th><td>{{.State.Ambient.ExcursionCount}}</td></tr>
</table>

<h2>Door</h2>
<table>
<tr><th>Position</th><td class="{{if .State.Door.Alarmed}}alarm{{else if eq (printf "%s" .State.Door.Position) "OPEN"}}warn{{else}}muted{{end}}">{{orUnknown (printf "%s" .State.Door.Position)}}{{if .State.Door.Alarmed}} (alarm){{end}}</td></tr>
<tr><th>Open count</th><td>{{.State.Door.OpenCount}}</td></tr>
<tr><th>Open time</th><td>{{uptime .State.Door.OpenDuration}}</td></tr>
</table>

<h2>Power</h2>
<table>
<tr><th>Mains</th><td class="{{if .State.Power.Alarmed}}alarm{{else if eq (printf "%s" .State.Power.Status) "ABSENT"}}warn{{else}}ok{{end}}">{{orUnknown (printf "%s" .State.Power.Status)}}{{if .State.Power.Alarmed}} (alarm){{end}}</td></tr>
<tr><th>Outage count</th><td>{{.State.Power.OutageCount}}</td></tr>
<tr><th>Outage time</th><td>{{uptime .State.Power.OutageDuration}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected ({{.MQTTBuffered}} buffered){{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Clock</th><td>{{if .ClockTracking}}synchronized{{else}}free-running{{end}}</td></tr>
<tr><th>Sensor mode</th><td>{{.Config.SensorMode}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>Record period</th><td>{{if eq .Config.RecordMs 0}}disabled{{else}}{{.Config.RecordMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> · <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
