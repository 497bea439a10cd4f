// Package metrics экспортирует метрики клиента аутентификации в Prometheus.
// Все методы безопасно вызывать на nil *Metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tracker_client"

// Исходы эпизода обновления токенов.
const (
	OutcomeSuccess   = "success"
	OutcomeRejected  = "rejected"
	OutcomeNoRefresh = "no_refresh_token"

	// OutcomeUnavailable - эндпоинт обновления недоступен, сессия сохранена.
	OutcomeUnavailable = "unavailable"
)

// Metrics содержит счетчики жизненного цикла токенов.
type Metrics struct {
	refreshEpisodes    *prometheus.CounterVec
	refreshWaiters     prometheus.Counter
	retriedRequests    *prometheus.CounterVec
	sessionTransitions *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
}

// New создает метрики и регистрирует их в reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		refreshEpisodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_episodes_total",
			Help:      "Token refresh episodes by outcome.",
		}, []string{"outcome"}),
		refreshWaiters: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_waiters_total",
			Help:      "Requests queued behind an in-flight token refresh.",
		}),
		retriedRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retried_requests_total",
			Help:      "Requests retried after a transient failure or a token refresh.",
		}, []string{"reason"}),
		sessionTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_transitions_total",
			Help:      "Session state machine transitions by target phase.",
		}, []string{"phase"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Duration of authenticated API requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "code"}),
	}

	reg.MustRegister(
		m.refreshEpisodes,
		m.refreshWaiters,
		m.retriedRequests,
		m.sessionTransitions,
		m.requestDuration,
	)
	return m
}

// RefreshEpisode учитывает завершенный эпизод обновления.
func (m *Metrics) RefreshEpisode(outcome string) {
	if m == nil {
		return
	}
	m.refreshEpisodes.WithLabelValues(outcome).Inc()
}

// RefreshWaiter учитывает запрос, вставший в очередь ожидания.
func (m *Metrics) RefreshWaiter() {
	if m == nil {
		return
	}
	m.refreshWaiters.Inc()
}

// RequestRetried учитывает повтор запроса.
func (m *Metrics) RequestRetried(reason string) {
	if m == nil {
		return
	}
	m.retriedRequests.WithLabelValues(reason).Inc()
}

// SessionTransition учитывает переход сессии в состояние phase.
func (m *Metrics) SessionTransition(phase string) {
	if m == nil {
		return
	}
	m.sessionTransitions.WithLabelValues(phase).Inc()
}

// ObserveRequest учитывает длительность запроса.
func (m *Metrics) ObserveRequest(method, code string, seconds float64) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, code).Observe(seconds)
}
