package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "linkup"

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)

	// CacheRequests counts read-through lookups by cache family and result (hit, miss, corrupt, error).
	CacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "cache_requests_total", Help: "Cache lookups by family and result."},
		[]string{"cache", "result"},
	)
	CacheInvalidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "cache_invalidations_total", Help: "Cache keys deleted by family."},
		[]string{"cache"},
	)

	SessionRotations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "session_rotations_total", Help: "Refresh token rotations by result."},
		[]string{"result"},
	)
	LoginLockouts = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "login_lockouts_total", Help: "Login attempts refused because the account is locked."},
	)

	NotificationsPushed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "notifications_pushed_total", Help: "Realtime notification pushes by result."},
		[]string{"result"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(CacheRequests)
	reg.MustRegister(CacheInvalidations)
	reg.MustRegister(SessionRotations)
	reg.MustRegister(LoginLockouts)
	reg.MustRegister(NotificationsPushed)
}
