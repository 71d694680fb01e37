package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	ds "github.com/starfederation/datastar-go/datastar"
	"github.com/wcharczuk/go-chart/v2"
	"go.uber.org/zap"

	"sensorboard/events"
	"sensorboard/models"
	"sensorboard/store"
	"sensorboard/web"
)

const chartsContainerID = "charts-container"

// Dashboard renders the charts held by a store.Dashboard, as html + Chart.js scripts over SSE and as SVG.
type Dashboard struct {
	templates *template.Template
	dashboard *store.Dashboard
	log       *zap.SugaredLogger
}

// chartPayload is what the page's c() and u() functions take. Times are epoch milliseconds.
type chartPayload struct {
	Title   string         `json:"title"`
	Version uint64         `json:"version"`
	Labels  []int64        `json:"labels"`
	Values  []float64      `json:"values"`
	Alarms  []alarmPayload `json:"alarms"`
}

type alarmPayload struct {
	X      int64   `json:"x"`
	Y      float64 `json:"y"`
	Label  string  `json:"label"`
	Radius int     `json:"radius"`
}

type channelInfo struct {
	ID      string `json:"id"`
	Version uint64 `json:"version"`
	Points  int    `json:"points"`
	Alarms  int    `json:"alarms"`
}

func NewDashboard(dashboard *store.Dashboard, log *zap.SugaredLogger) (*Dashboard, error) {
	d := &Dashboard{dashboard: dashboard, log: log}
	templates := template.New("").Funcs(template.FuncMap{
		"domID": domID,
	})
	var err error
	d.templates, err = templates.ParseFS(web.Templates, "templates/dashboard/*.gohtml")
	return d, err
}

func (d *Dashboard) Templates() *template.Template {
	return d.templates
}

// Data is empty; charts reach the page over /updates.
func (d *Dashboard) Data() map[string]interface{} {
	return map[string]interface{}{}
}

func (d *Dashboard) Routes(r chi.Router) {
	r.Get("/charts/{channel}.svg", d.SVGHandler)
	r.Get("/channels", d.ChannelsHandler)
}

// Sync makes the client match the dashboard: charts it hasn't seen are created, charts it has are redrawn, and
// charts that no longer exist are removed.
func (d *Dashboard) Sync(sse *ds.ServerSentEventGenerator, seen map[string]bool) error {
	current := map[string]bool{}
	for _, widget := range d.dashboard.Widgets() {
		current[widget.Key()] = true
		if !seen[widget.Key()] {
			if err := d.create(sse, widget); err != nil {
				return err
			}
			seen[widget.Key()] = true
			continue
		}
		script, err := chartScript("u", widget)
		if err != nil {
			return err
		}
		if err = sse.ExecuteScript(script); err != nil {
			return err
		}
	}

	for id := range seen {
		if current[id] {
			continue
		}
		delete(seen, id)
		if err := sse.ExecuteScript(fmt.Sprintf("r(%s)", jsString(domID(id)))); err != nil {
			return err
		}
	}
	return nil
}

// Patch brings the client up to date with one event. Events can be dropped for slow clients, so whether to create
// or update is decided by what this client has seen rather than by the event kind.
func (d *Dashboard) Patch(sse *ds.ServerSentEventGenerator, event *events.Event, seen map[string]bool) error {
	widget, ok := d.dashboard.Widget(event.ChannelID)
	if !ok || event.Kind == events.Removed {
		if !seen[event.ChannelID] {
			return nil
		}
		delete(seen, event.ChannelID)
		return sse.ExecuteScript(fmt.Sprintf("r(%s)", jsString(domID(event.ChannelID))))
	}

	if !seen[event.ChannelID] {
		if err := d.create(sse, widget); err != nil {
			return err
		}
		seen[event.ChannelID] = true
		return nil
	}

	script, err := chartScript("u", widget)
	if err != nil {
		return err
	}
	return sse.ExecuteScript(script)
}

func (d *Dashboard) create(sse *ds.ServerSentEventGenerator, widget *models.ChartWidget) error {
	var writer strings.Builder
	if err := d.templates.ExecuteTemplate(&writer, "chart", widget); err != nil {
		return fmt.Errorf("execute chart template: %w", err)
	}
	if err := sse.PatchElements(writer.String(), ds.WithSelectorID(chartsContainerID), ds.WithModeAppend()); err != nil {
		return err
	}
	script, err := chartScript("c", widget)
	if err != nil {
		return err
	}
	return sse.ExecuteScript(script)
}

// SVGHandler renders one channel's chart on the server.
func (d *Dashboard) SVGHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "channel")
	widget, ok := d.dashboard.Widget(id)
	if !ok {
		http.NotFound(w, r)
		return
	}

	var buf bytes.Buffer
	if err := RenderSVG(&buf, widget); err != nil {
		d.log.Warnf("couldn't render chart %s: %v", id, err)
		http.Error(w, fmt.Sprintf("couldn't render chart: %v", err), http.StatusUnprocessableEntity)
		return
	}
	w.Header().Set("Content-Type", chart.ContentTypeSVG)
	_, _ = buf.WriteTo(w)
}

// ChannelsHandler lists the registered channels in layout order.
func (d *Dashboard) ChannelsHandler(w http.ResponseWriter, _ *http.Request) {
	widgets := d.dashboard.Widgets()
	channels := make([]channelInfo, 0, len(widgets))
	for _, widget := range widgets {
		channels = append(channels, channelInfo{
			ID:      widget.Key(),
			Version: widget.Version(),
			Points:  len(widget.Values()),
			Alarms:  len(widget.Annotations()),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(channels); err != nil {
		d.log.Warnf("couldn't encode channels: %v", err)
	}
}

func chartScript(fn string, widget *models.ChartWidget) (string, error) {
	payload := chartPayload{
		Title:   widget.Title(),
		Version: widget.Version(),
		Labels:  make([]int64, len(widget.Labels())),
		Values:  widget.Values(),
		Alarms:  make([]alarmPayload, len(widget.Annotations())),
	}
	for i, label := range widget.Labels() {
		payload.Labels[i] = label.UnixMilli()
	}
	for i, a := range widget.Annotations() {
		payload.Alarms[i] = alarmPayload{a.Timestamp.UnixMilli(), a.Value, a.Label, a.Radius}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode chart %s: %w", widget.Key(), err)
	}
	return fmt.Sprintf("%s(%s,%s)", fn, jsString(domID(widget.Key())), data), nil
}

// domID turns a channel id into something usable as an element id. Bytes outside [A-Za-z0-9-] are hex escaped
// behind an underscore so distinct channels never share an id.
func domID(channelID string) string {
	var b strings.Builder
	b.WriteString("chart-")
	for _, c := range []byte(channelID) {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-':
			b.WriteByte(c)
		default:
			_, _ = fmt.Fprintf(&b, "_%02x", c)
		}
	}
	return b.String()
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
