package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/smartstall-hub/internal/logic"
	"github.com/sweeney/smartstall-hub/internal/mqtt"
	"github.com/sweeney/smartstall-hub/internal/status"
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
	// ago renders how long before now t was, or "never" for the zero time.
	"ago": func(now, t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return now.Sub(t).Truncate(time.Second).String() + " ago"
	},
	"lastStatus": func(rec logic.Record) string {
		if !rec.HasLastStatus {
			return "-"
		}
		return rec.LastStatus.String()
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>SmartStall Hub</title>
<style>
body { font-family: monospace; max-width: 900px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
table.kv th { width: 40%; }
.occupied { color: #c00; font-weight: bold; }
.free { color: green; }
.stale { color: #888; }
.failing { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>SmartStall Hub{{if .Config.WSBroker}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

<h2>Stalls ({{len .Devices}}/{{.Config.Capacity}})</h2>
<table id="devices">
<tr><th>Device</th><th>Status</th><th>Failures</th><th>Last seen</th><th>Last polled</th></tr>
{{range .Devices}}<tr data-device="{{.Identity}}" class="{{if $.Stale .}}stale{{else if gt .Failures 0}}failing{{end}}">
<td>{{.Identity}}</td>
<td class="status {{if .HasLastStatus}}{{if .LastStatus.Occupied}}occupied{{else}}free{{end}}{{end}}">{{lastStatus .}}</td>
<td>{{.Failures}}</td>
<td>{{ago $.Now .LastSeen}}</td>
<td>{{ago $.Now .LastPolled}}</td>
</tr>
{{else}}<tr><td colspan="5">no stalls discovered yet</td></tr>
{{end}}</table>

<h2>Hub</h2>
<table class="kv">
<tr><th>Phase</th><td>{{.Phase}}{{if .Target}} ({{.Target}}){{end}}</td></tr>
<tr><th>Last scan</th><td>{{ago .Now .LastRescan}}</td></tr>
<tr><th>Cycles</th><td>{{.Stats.Cycles}} ({{.Stats.Successes}} ok, {{.Stats.ConnectFailures}} connect, {{.Stats.LinkDrops}} dropped, {{.Stats.IncompleteReads}} incomplete)</td></tr>
<tr><th>Published</th><td>{{.Stats.Published}} ({{.Stats.Suppressed}} unchanged, {{.Stats.PublishErrors}} errors)</td></tr>
<tr><th>Registry full</th><td>{{.Stats.RegistryFull}}</td></tr>
</table>

<h2>Connectivity</h2>
<table class="kv">
<tr><th>Sink</th><td class="{{if .SinkConnected}}connected{{else}}disconnected{{end}}">{{.Config.Sink}} {{if .SinkConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}} {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table class="kv">
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Run</th><td>{{.Config.RunID}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>Poll interval</th><td>{{.Config.PollIntervalMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
{{if .Config.WSBroker}}
<script src="https://unpkg.com/mqtt/dist/mqtt.min.js"></script>
<script>
(function() {
  var broker = "{{.Config.WSBroker}}";
  var topic = "{{.Topic}}";
  var dot = document.getElementById("live-dot");

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  var client = mqtt.connect(broker, { reconnectPeriod: 5000 });

  client.on("connect", function() {
    setDot("ok", "live");
    client.subscribe(topic);
  });

  client.on("reconnect", function() {
    setDot("pending", "reconnecting");
  });

  client.on("offline", function() {
    setDot("err", "offline");
  });

  client.on("error", function() {
    setDot("err", "error");
  });

  client.on("message", function(t, payload) {
    try {
      var msg = JSON.parse(payload.toString());
      var rows = document.querySelectorAll("#devices tr[data-device]");
      for (var i = 0; i < rows.length; i++) {
        if (rows[i].getAttribute("data-device") !== msg.device) {
          continue;
        }
        var cell = rows[i].querySelector("td.status");
        cell.textContent = msg.status_name;
        cell.className = "status " + (msg.occupied ? "occupied" : "free");
      }
    } catch (e) {}
  });
})();
</script>
{{end}}
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Topic  string
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Topic:    mqtt.Topic,
	}
	return indexTmpl.Execute(w, data)
}
