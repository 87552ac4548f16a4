// Package constants centralizes tunable defaults for bulkpush.
// Every value here can be overridden through configuration; nothing in
// the scheduler or client hardcodes these numbers.
package constants

import (
	"time"
)

// Payload limits
const (
	// MaxPayloadSize - the contents API rejects writes above this size (100 MiB).
	// Files larger than this are classified TooLarge locally and never
	// sent over the network.
	MaxPayloadSize = 100 * 1024 * 1024
)

// Quota management
const (
	// DefaultLowWaterMark - a credential is proactively deactivated once
	// its remaining quota falls to this value or below. Keeps a small
	// reserve so probes and version lookups never hit a hard 403 wall.
	DefaultLowWaterMark = 10

	// DefaultProbeBackoff - how long the scheduler waits before
	// re-probing when no credential is eligible. Remote quotas reset on
	// coarse (hourly) windows, so tens of seconds is fine-grained enough.
	DefaultProbeBackoff = 30 * time.Second
)

// Retry configuration
const (
	// DefaultRetryBudget - maximum attempts per job across credentials
	// for transient failures.
	DefaultRetryBudget = 3

	// RetryInitialDelay - initial delay before first retry (500ms)
	RetryInitialDelay = 500 * time.Millisecond

	// RetryMaxDelay - maximum delay between retries (30s)
	// Exponential backoff caps at this value.
	RetryMaxDelay = 30 * time.Second

	// TransportRetryMax - low-level retryablehttp retries underneath the
	// scheduler's own retry budget. Kept small so a dead endpoint fails
	// fast enough for the scheduler to reclassify and move on.
	TransportRetryMax = 2
)

// HTTP client configuration
const (
	// HTTPDialTimeout - TCP connection establishment timeout
	HTTPDialTimeout = 30 * time.Second

	// HTTPDialKeepAlive - TCP keep-alive interval
	HTTPDialKeepAlive = 30 * time.Second

	// HTTPTLSHandshakeTimeout - TLS handshake timeout
	HTTPTLSHandshakeTimeout = 30 * time.Second

	// HTTPIdleConnTimeout - how long idle connections are kept in the pool
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPRequestTimeout - per-request timeout for API calls. Writes are
	// single PUTs well under the payload ceiling, so one minute covers
	// slow corporate proxies without letting a hung call stall a worker
	// forever.
	HTTPRequestTimeout = 60 * time.Second
)

// Reporter configuration
const (
	// DefaultReportInterval - how often the reporter renders run status.
	// Reporting on every job would dominate run time with terminal I/O
	// at tens of thousands of files.
	DefaultReportInterval = 10 * time.Second
)
