package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aozora-juku/lesson-match-api/internal/timeslot"
	"github.com/aozora-juku/lesson-match-api/pkg/config"
	"github.com/aozora-juku/lesson-match-api/pkg/jobs"
	"github.com/aozora-juku/lesson-match-api/pkg/mail"
)

// Notifier dispatches outbound notification mail through a background queue.
// Delivery is fire-and-forget: a failed mail is logged and retried by the
// queue but never fails the operation that triggered it.
type Notifier struct {
	queue  *jobs.Queue
	sender mail.Sender
	admins []string
	logger *zap.Logger
}

// NewNotifier wires the sender behind a worker queue.
func NewNotifier(sender mail.Sender, cfg config.MailConfig, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &Notifier{
		sender: sender,
		admins: cfg.AdminRecipients,
		logger: logger,
	}
	n.queue = jobs.NewQueue("notifications", n.deliver, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})
	return n
}

// Start launches the delivery workers.
func (n *Notifier) Start(ctx context.Context) { n.queue.Start(ctx) }

// Stop drains the delivery workers.
func (n *Notifier) Stop() { n.queue.Stop() }

func (n *Notifier) deliver(ctx context.Context, job jobs.Job) error {
	msg, ok := job.Payload.(mail.Message)
	if !ok {
		n.logger.Error("notification job carried unexpected payload", zap.String("job_id", job.ID))
		return nil
	}
	return n.sender.Send(ctx, msg)
}

func (n *Notifier) enqueue(kind string, msg mail.Message) {
	if len(msg.To) == 0 {
		return
	}
	err := n.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: kind, Payload: msg})
	if err != nil {
		n.logger.Warn("failed to enqueue notification", zap.String("type", kind), zap.Error(err))
	}
}

// MatchConfirmed notifies all students on a freshly confirmed match.
func (n *Notifier) MatchConfirmed(to []string, courseName string, startAt time.Time) {
	n.enqueue("match_confirmed", mail.Message{
		To:      to,
		Subject: fmt.Sprintf("Lesson confirmed: %s", courseName),
		Text: fmt.Sprintf("Your lesson for %s has been scheduled for %s.",
			courseName, startAt.In(timeslot.Zone).Format("Mon Jan 2 15:04")),
	})
}

// StudentAssigned notifies a single student added to a confirmed match.
func (n *Notifier) StudentAssigned(to string, courseName string, startAt time.Time) {
	if to == "" {
		return
	}
	n.MatchConfirmed([]string{to}, courseName, startAt)
}

// ApplicationReceived alerts staff about a new application.
func (n *Notifier) ApplicationReceived(courseName, studentName string) {
	n.enqueue("application_received", mail.Message{
		To:      n.admins,
		Subject: fmt.Sprintf("New application: %s", courseName),
		Text:    fmt.Sprintf("%s applied to %s.", studentName, courseName),
	})
}

// ApplicationCancelled alerts staff about a cancellation.
func (n *Notifier) ApplicationCancelled(courseName, studentName string) {
	n.enqueue("application_cancelled", mail.Message{
		To:      n.admins,
		Subject: fmt.Sprintf("Application cancelled: %s", courseName),
		Text:    fmt.Sprintf("%s cancelled their application to %s.", studentName, courseName),
	})
}
