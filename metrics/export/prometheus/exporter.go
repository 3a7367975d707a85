package prometheus

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/MrEthical07/identityauth"
	"github.com/MrEthical07/identityauth/metrics/export/internaldefs"
)

const contentType = "text/plain; version=0.0.4; charset=utf-8"

type metricsSource interface {
	MetricsSnapshot() identityauth.MetricsSnapshot
	AuditDropped() uint64
}

// PrometheusExporter renders engine metrics in Prometheus text exposition
// format.
type PrometheusExporter struct {
	source metricsSource
}

func NewPrometheusExporter(engine *identityauth.Engine) *PrometheusExporter {
	return &PrometheusExporter{source: engine}
}

// NewPrometheusExporterFromSource reads from any value exposing the engine's
// MetricsSnapshot and AuditDropped methods.
func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler serves the exposition over HTTP.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		bw := bufio.NewWriter(w)
		p.write(bw)
		_ = bw.Flush()
	})
}

// Render returns the exposition as a string. It is empty when metrics are
// disabled and nothing was dropped.
func (p *PrometheusExporter) Render() string {
	var b strings.Builder
	p.write(&b)
	return b.String()
}

func (p *PrometheusExporter) write(w io.Writer) {
	if p == nil || p.source == nil {
		return
	}
	snap := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snap.Counters) == 0 && len(snap.Histograms) == 0 && dropped == 0 {
		return
	}

	for _, def := range internaldefs.CounterDefs {
		writeHeader(w, def, "counter")
		fmt.Fprintf(w, "%s %d\n", def.Name, snap.Counters[def.ID])
	}

	buckets := internaldefs.Buckets()
	for _, def := range internaldefs.HistogramDefs {
		cumulative := internaldefs.Cumulative(snap.Histograms[def.ID])
		writeHeader(w, def, "histogram")
		for i, b := range buckets {
			fmt.Fprintf(w, "%s_bucket{le=%q} %d\n", def.Name, b.Label, cumulative[i])
		}
		fmt.Fprintf(w, "%s_sum %g\n", def.Name, snap.HistogramSums[def.ID].Seconds())
		fmt.Fprintf(w, "%s_count %d\n", def.Name, cumulative[len(cumulative)-1])
	}

	writeHeader(w, internaldefs.AuditDropped, "counter")
	fmt.Fprintf(w, "%s %d\n", internaldefs.AuditDropped.Name, dropped)
}

var helpEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`)

func writeHeader(w io.Writer, def internaldefs.Def, typ string) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", def.Name, helpEscaper.Replace(def.Help), def.Name, typ)
}
