package infrastructure

import (
	"fmt"
	"os/exec"

	"github.com/yourusername/dl-client/internal/domain"
	"go.uber.org/zap"
)

// NotificationService handles sending desktop notifications. It also acts
// as a projector that only reacts to completion and failure.
type NotificationService struct {
	config *domain.NotificationConfig
	logger *zap.Logger
	run    func(name string, args ...string) error
}

// NewNotificationService creates a new notification service
func NewNotificationService(config *domain.NotificationConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		config: config,
		logger: logger,
		run: func(name string, args ...string) error {
			return exec.Command(name, args...).Run()
		},
	}
}

// Send sends a notification
func (n *NotificationService) Send(title, message string) error {
	if !n.config.Enabled {
		n.logger.Debug("Notifications disabled, skipping",
			zap.String("title", title),
			zap.String("message", message))
		return nil
	}

	var err error
	switch n.config.Method {
	case "osascript":
		script := fmt.Sprintf(`display notification %q with title %q`, message, title)
		err = n.run("osascript", "-e", script)
	case "notify-send":
		err = n.run("notify-send", title, message)
	default:
		n.logger.Warn("Unknown notification method", zap.String("method", n.config.Method))
		return nil
	}

	if err != nil {
		n.logger.Error("Failed to send notification",
			zap.String("method", n.config.Method),
			zap.Error(err))
		return err
	}

	n.logger.Debug("Notification sent",
		zap.String("title", title),
		zap.String("message", message))
	return nil
}

// NotifyDownloadCompleted sends notification when an artifact was received
func (n *NotificationService) NotifyDownloadCompleted(filename string) {
	n.Send("Download Completed", fmt.Sprintf("Received: %s", truncateString(filename, 60)))
}

// NotifyDownloadFailed sends notification when a download fails
func (n *NotificationService) NotifyDownloadFailed(message string) {
	n.Send("Download Failed", truncateString(message, 120))
}

func (n *NotificationService) OnSaveArtifact(data []byte, filename string) {
	n.NotifyDownloadCompleted(filename)
}

func (n *NotificationService) OnError(message string) {
	n.NotifyDownloadFailed(message)
}

func (n *NotificationService) OnProgressInit() {}
func (n *NotificationService) OnProgressUpdate(float64) {}
func (n *NotificationService) OnProgressReset() {}
func (n *NotificationService) OnPostprocessingEnter() {}
func (n *NotificationService) OnPostprocessingExit() {}
func (n *NotificationService) OnErrorCleared() {}

// truncateString truncates a string to the specified length
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
