package models

import "time"

// ProbeStatus classifies the outcome of probing one directory entry.
type ProbeStatus string

const (
	ProbeSuccess             ProbeStatus = "success"
	ProbeFailed              ProbeStatus = "failed"
	ProbeAllStrategiesFailed ProbeStatus = "all_strategies_failed"
)

// ProbeResult is the per-proxy outcome of a probe run.
type ProbeResult struct {
	Index         int           `json:"index"`
	Proxy         string        `json:"proxy"`
	Strategy      string        `json:"strategy,omitempty"`
	Status        ProbeStatus   `json:"status"`
	ResponseTime  time.Duration `json:"response_time_ms"`
	ContentLength int           `json:"content_length"`
	Valid         bool          `json:"valid"`
	Error         string        `json:"error,omitempty"`
}

// ProxySelection is the confirmed-working intermediary for the current
// session. It expires 30 minutes after ConfirmedAt, after which a fresh
// probe is required.
type ProxySelection struct {
	Index       int           `json:"index" db:"idx"`
	Proxy       string        `json:"proxy" db:"proxy_url"`
	Latency     time.Duration `json:"latency_ms" db:"latency_ms"`
	ConfirmedAt time.Time     `json:"confirmed_at" db:"confirmed_at"`
}
