package observability

import (
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	sessions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matrixctl",
			Subsystem: "session",
			Name:      "total",
			Help:      "Completed client sessions by outcome.",
		},
		[]string{"outcome"},
	)
	sessionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "matrixctl",
			Subsystem: "session",
			Name:      "duration_seconds",
			Help:      "Client session duration from dial to close.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
	polls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matrixctl",
			Subsystem: "session",
			Name:      "polls_total",
			Help:      "POL commands sent, by acknowledgement class.",
		},
		[]string{"reply"},
	)
)

// Poll reply classes. RecordPoll folds anything else into PollReplyOther.
const (
	PollReplyNotYet      = "not"
	PollReplyDone        = "done"
	PollReplyServerError = "server_error"
	PollReplyOther       = "other"
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(sessions, sessionDuration, polls)
	})
}

func RecordSession(outcome string, duration time.Duration) {
	RegisterMetrics()
	sessions.WithLabelValues(outcome).Inc()
	sessionDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func RecordPoll(reply string) {
	RegisterMetrics()
	switch reply {
	case PollReplyNotYet, PollReplyDone, PollReplyServerError:
	default:
		reply = PollReplyOther
	}
	polls.WithLabelValues(reply).Inc()
}

// ServeMetrics exposes the default registry on addr until the returned
// server is closed.
func ServeMetrics(addr string) (*http.Server, error) {
	RegisterMetrics()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Handler:           mux,
		Addr:              ln.Addr().String(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = ln.Close()
		}
	}()
	return srv, nil
}
