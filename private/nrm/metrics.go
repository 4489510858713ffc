// Copyright 2025 Photonpath Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package nrm

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's Prometheus instruments. A nil *Metrics is a
// no-op so tests need not register collectors.
type Metrics struct {
	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	reservations prometheus.Gauge
}

// NewMetrics registers the engine metrics with the default registerer.
func NewMetrics() *Metrics {
	return &Metrics{
		requests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "nrm_requests_total",
			Help: "Total requests handled, by operation and result.",
		}, []string{"op", "result"}),
		duration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name: "nrm_request_duration_seconds",
			Help: "Request handling duration, by operation.",
		}, []string{"op"}),
		reservations: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "nrm_reservations",
			Help: "Number of live reservations.",
		}),
	}
}

// Observe records one handled request.
func (m *Metrics) Observe(op, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(op, result).Inc()
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// SetReservations updates the live reservation gauge.
func (m *Metrics) SetReservations(n int) {
	if m == nil {
		return
	}
	m.reservations.Set(float64(n))
}
