package notify

import (
	"log/slog"

	"github.com/ledgerline/offline-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.Notifier = (*SlogNotifier)(nil)

// SlogNotifier routes user-facing notifications to structured logs. Headless
// deployments use this in place of a dashboard toast layer.
type SlogNotifier struct {
	logger *slog.Logger
}

// NewSlogNotifier creates a log-backed notifier.
func NewSlogNotifier(logger *slog.Logger) *SlogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogNotifier{logger: logger}
}

func (n *SlogNotifier) Success(msg string) {
	n.logger.Info("notification", "level", "success", "message", msg)
}

func (n *SlogNotifier) Info(msg string) {
	n.logger.Info("notification", "level", "info", "message", msg)
}

func (n *SlogNotifier) Warning(msg string) {
	n.logger.Warn("notification", "level", "warning", "message", msg)
}

func (n *SlogNotifier) Error(msg string) {
	n.logger.Error("notification", "level", "error", "message", msg)
}
