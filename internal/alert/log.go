package alert

import (
	"context"

	"github.com/jonathan/job-radar/internal/logging"
)

// LogChannel writes alerts to the logger. It never fails.
type LogChannel struct {
	logger logging.Logger
}

// NewLogChannel creates a log channel.
func NewLogChannel(logger logging.Logger) *LogChannel {
	return &LogChannel{logger: logging.OrDiscard(logger)}
}

func (l *LogChannel) Name() string {
	return "log"
}

func (l *LogChannel) Send(_ context.Context, a Alert) error {
	l.logger.WithFields(logging.Fields{
		"component":   "alert",
		"fingerprint": a.Fingerprint,
		"title":       a.Title,
		"company":     a.Company,
		"score":       a.Score,
		"url":         a.URL,
	}).Info("new job match")
	return nil
}
