// Package metrics holds the Prometheus collectors for account and team
// activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Result label values.
const (
	ResultSuccess     = "success"
	ResultDuplicate   = "duplicate"
	ResultInvalid     = "invalid"
	ResultDenied      = "denied"
	ResultNotFound    = "not_found"
	ResultBadPassword = "bad_password"
	ResultError       = "error"
)

// Metrics is the set of counters recorded by the HTTP handlers.
type Metrics struct {
	Signups         *prometheus.CounterVec
	Logins          *prometheus.CounterVec
	PasswordChanges *prometheus.CounterVec
	AccountsDeleted *prometheus.CounterVec
	TeamsCreated    *prometheus.CounterVec
	TeamsDeleted    *prometheus.CounterVec
}

// New creates the counters and registers them with reg.
// Panics if registration fails (following prometheus convention).
func New(reg prometheus.Registerer) *Metrics {
	counter := func(name, help string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "teambuilder",
			Name:      name,
			Help:      help,
		}, []string{"result"})
	}

	m := &Metrics{
		Signups:         counter("signups_total", "Total number of signup attempts"),
		Logins:          counter("logins_total", "Total number of login attempts"),
		PasswordChanges: counter("password_changes_total", "Total number of password change attempts"),
		AccountsDeleted: counter("accounts_deleted_total", "Total number of account deletion attempts"),
		TeamsCreated:    counter("teams_created_total", "Total number of team creation attempts"),
		TeamsDeleted:    counter("teams_deleted_total", "Total number of team deletion attempts"),
	}
	reg.MustRegister(m.Signups, m.Logins, m.PasswordChanges, m.AccountsDeleted, m.TeamsCreated, m.TeamsDeleted)
	return m
}

// Record increments c for result. A nil counter is ignored.
func Record(c *prometheus.CounterVec, result string) {
	if c == nil {
		return
	}
	c.WithLabelValues(result).Inc()
}
