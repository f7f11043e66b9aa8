package errors

import (
	"fungily.io/fungily-score/pkg/log"
	"github.com/certifi/gocertifi"
	"github.com/getsentry/sentry-go"
	"os"
	"sync"
)

var (
	reportersMu sync.RWMutex
	reporters   []Reporter
)

// Reporter receives every error created through the *Report helpers.
type Reporter interface {
	Report(error)
}

// setting this env disables reporting
const debugMode = "DEBUG"

func addReporter(r Reporter) {
	reportersMu.Lock()
	defer reportersMu.Unlock()
	reporters = append(reporters, r)
}

// ResetReporters drops every configured reporter.
func ResetReporters() {
	reportersMu.Lock()
	defer reportersMu.Unlock()
	reporters = nil
}

func report(err error) {
	if err == nil || os.Getenv(debugMode) != "" {
		return
	}
	reportersMu.RLock()
	rs := make([]Reporter, len(reporters))
	copy(rs, reporters)
	reportersMu.RUnlock()
	for _, r := range rs {
		r.Report(err)
	}
}

// ReportersEnabled logs whether reporting is active for this process.
func ReportersEnabled() bool {
	if os.Getenv(debugMode) == "" {
		log.Info("Env DEBUG not set, report errors enabled.")
		return true
	}
	log.Info("Env DEBUG set, report errors disabled.")
	return false
}

type sentryReporter struct {
}

func (s *sentryReporter) Report(err error) {
	sentry.CaptureException(err)
}

// NewSentryReporter
// initializes the sentry client and registers it as a reporter.
// An empty DSN is not an error: the reporter is just skipped.
func NewSentryReporter(sentryDSN string) error {
	if sentryDSN == "" {
		log.Warn("empty DSN found, skipping sentry reporter initialization.")
		return nil
	}
	sentryClientOptions := sentry.ClientOptions{
		Dsn: sentryDSN,
	}

	rootCAs, err := gocertifi.CACerts()
	if err != nil {
		return Wrap(err, "init sentry CA")
	}

	sentryClientOptions.CaCerts = rootCAs
	err = sentry.Init(sentryClientOptions)
	if err != nil {
		return Wrap(err, "init sentry")
	}
	log.Info("sentry error reporter initialized.")
	addReporter(&sentryReporter{})
	return nil
}
