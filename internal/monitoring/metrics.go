package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics はリサンプリングパイプラインの計測値を保持する構造体
type Metrics struct {
	registry *prometheus.Registry

	EventsIn       prometheus.Counter     // 取り込んだモーションイベント数
	SamplesIn      prometheus.Counter     // 取り込んだ生サンプル数
	Resampled      *prometheus.CounterVec // 合成したサンプル数（method別）
	Refused        prometheus.Counter     // リサンプリングを見送った回数
	HorizonClamped prometheus.Counter     // 予測上限に丸めた回数
	ActivePointers prometheus.Gauge       // 現在のアクティブポインター数
}

// NewMetrics は新しいメトリクスレジストリを作成する
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		EventsIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "touchsampler",
			Name:      "events_in_total",
			Help:      "Number of motion events read from the source device.",
		}),
		SamplesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "touchsampler",
			Name:      "samples_in_total",
			Help:      "Number of raw samples read from the source device.",
		}),
		Resampled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "touchsampler",
			Name:      "samples_resampled_total",
			Help:      "Number of synthesized samples appended to motion events.",
		}, []string{"method"}),
		Refused: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "touchsampler",
			Name:      "resample_refused_total",
			Help:      "Number of calls where resampling was refused.",
		}),
		HorizonClamped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "touchsampler",
			Name:      "horizon_clamped_total",
			Help:      "Number of extrapolations clamped to the prediction horizon.",
		}),
		ActivePointers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "touchsampler",
			Name:      "active_pointers",
			Help:      "Number of pointers currently tracked.",
		}),
	}

	registry.MustRegister(m.EventsIn, m.SamplesIn, m.Resampled, m.Refused,
		m.HorizonClamped, m.ActivePointers)
	return m
}

// Handler はメトリクス公開用のHTTPハンドラを返す
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
