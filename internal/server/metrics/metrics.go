// Package metrics holds the Prometheus counters of the identity core.
package metrics

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/leafline/internal/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "leafline"

// Auth counts login, refresh and authenticate outcomes and issued tokens.
// A nil *Auth is valid and records nothing.
type Auth struct {
	login        *prometheus.CounterVec
	refresh      *prometheus.CounterVec
	authenticate *prometheus.CounterVec
	tokensIssued *prometheus.CounterVec
}

// NewAuth creates the counters and registers them with r
// (prometheus.DefaultRegisterer when nil). Counters that are already
// registered are reused.
func NewAuth(r prometheus.Registerer) (*Auth, error) {
	if r == nil {
		r = prometheus.DefaultRegisterer
	}

	m := &Auth{
		login:        newCounter("login_total", "Login attempts by result.", "result"),
		refresh:      newCounter("refresh_total", "Token refresh attempts by result.", "result"),
		authenticate: newCounter("authenticate_total", "Access token checks by result.", "result"),
		tokensIssued: newCounter("tokens_issued_total", "Tokens issued by type.", "type"),
	}

	for _, c := range []**prometheus.CounterVec{&m.login, &m.refresh, &m.authenticate, &m.tokensIssued} {
		if err := r.Register(*c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return nil, err
			}
			existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				return nil, err
			}
			*c = existing
		}
	}
	return m, nil
}

func newCounter(name, help, label string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "auth", Name: name, Help: help,
	}, []string{label})
}

func (m *Auth) ObserveLogin(err error) {
	if m != nil {
		m.login.WithLabelValues(Result(err)).Inc()
	}
}

func (m *Auth) ObserveRefresh(err error) {
	if m != nil {
		m.refresh.WithLabelValues(Result(err)).Inc()
	}
}

func (m *Auth) ObserveAuthenticate(err error) {
	if m != nil {
		m.authenticate.WithLabelValues(Result(err)).Inc()
	}
}

// TokenIssued counts one token of the given type ("access" or "refresh").
func (m *Auth) TokenIssued(kind string) {
	if m != nil {
		m.tokensIssued.WithLabelValues(kind).Inc()
	}
}

var resultLabels = map[error]string{
	common.ErrValidation:         "validation",
	common.ErrInvalidCredentials: "invalid_credentials",
	common.ErrUnauthenticated:    "unauthenticated",
	common.ErrInvalidToken:       "invalid_token",
	common.ErrTokenExpired:       "token_expired",
	common.ErrUnknownIdentity:    "unknown_identity",
	common.ErrAlreadyExists:      "already_exists",
	common.ErrInfrastructure:     "infrastructure",
	common.ErrForbidden:          "forbidden",
	common.ErrorNotFound:         "not_found",
}

// Result is the label value for err: "ok" for nil, the error kind otherwise.
func Result(err error) string {
	if err == nil {
		return "ok"
	}
	if l, ok := resultLabels[common.KindOf(err)]; ok {
		return l
	}
	return "error"
}

// Handler serves the metrics gathered by g
// (prometheus.DefaultGatherer when nil).
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
