package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-exam-grader/internal/dto"
	"github.com/noah-isme/gema-exam-grader/internal/observability"
	"github.com/noah-isme/gema-exam-grader/internal/repository"
	"github.com/noah-isme/gema-exam-grader/pkg/mailer"
)

// ErrInconsistentNotification indicates a grade payload whose totals do not add up.
var ErrInconsistentNotification = errors.New("inconsistent grade notification")

// GradeNotifier receives grade results once a submission reaches graded.
type GradeNotifier interface {
	NotifyGraded(ctx context.Context, notification dto.GradeNotification) error
}

// ValidateGradeNotification checks the hand-off contract: the required fields are present,
// the total does not exceed the maximum, and the per-question scores add up to the total.
func ValidateGradeNotification(n dto.GradeNotification) error {
	if n.SubmissionID == 0 || n.ExamID == 0 {
		return fmt.Errorf("%w: missing identifiers", ErrInconsistentNotification)
	}
	if n.TotalScore < 0 || n.TotalScore > n.MaxScore {
		return fmt.Errorf("%w: total %d outside [0, %d]", ErrInconsistentNotification, n.TotalScore, n.MaxScore)
	}
	sum := 0
	for _, detail := range n.Details {
		sum += detail.Score
	}
	if sum != n.TotalScore {
		return fmt.Errorf("%w: details sum to %d, total is %d", ErrInconsistentNotification, sum, n.TotalScore)
	}
	return nil
}

type gradeEvent struct {
	Source       string                `json:"source"`
	Notification dto.GradeNotification `json:"notification"`
	SentAt       time.Time             `json:"sent_at"`
}

type eventGradeNotifier struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	nodeID       string
}

// NewEventGradeNotifier publishes grade events to Redis pub/sub and NATS. Either transport may be nil.
func NewEventGradeNotifier(redisClient *redis.Client, natsConn *nats.Conn, channelBase string) GradeNotifier {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":grading:completed"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".grading.completed"
	}
	return &eventGradeNotifier{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		nodeID:       uuid.NewString(),
	}
}

func (n *eventGradeNotifier) NotifyGraded(ctx context.Context, notification dto.GradeNotification) error {
	payload, err := json.Marshal(gradeEvent{
		Source:       n.nodeID,
		Notification: notification,
		SentAt:       time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	var errs []error
	if n.redis != nil && n.redisChannel != "" {
		err := n.redis.Publish(ctx, n.redisChannel, payload).Err()
		recordNotification("redis", err)
		if err != nil {
			errs = append(errs, fmt.Errorf("redis publish: %w", err))
		}
	}
	if n.nats != nil && n.natsSubject != "" {
		err := n.nats.Publish(n.natsSubject, payload)
		recordNotification("nats", err)
		if err != nil {
			errs = append(errs, fmt.Errorf("nats publish: %w", err))
		}
	}
	return errors.Join(errs...)
}

type emailGradeNotifier struct {
	mailer   mailer.Mailer
	students repository.StudentRepository
}

// NewEmailGradeNotifier e-mails the student a summary of their grade. When the payload lacks an
// address and students is non-nil, the contact is looked up by student id.
func NewEmailGradeNotifier(m mailer.Mailer, students repository.StudentRepository) GradeNotifier {
	return &emailGradeNotifier{mailer: m, students: students}
}

func (n *emailGradeNotifier) NotifyGraded(ctx context.Context, notification dto.GradeNotification) error {
	if strings.TrimSpace(notification.StudentEmail) == "" && n.students != nil && notification.StudentID != 0 {
		contact, err := n.students.GetContact(ctx, notification.StudentID)
		if err == nil {
			notification.StudentEmail = contact.Email
			notification.StudentName = contact.Name
		}
	}
	if strings.TrimSpace(notification.StudentEmail) == "" {
		recordNotification("email", mailer.ErrNoRecipient)
		return mailer.ErrNoRecipient
	}
	err := n.mailer.Send(ctx, mailer.Message{
		ToName:  notification.StudentName,
		ToEmail: notification.StudentEmail,
		Subject: "Your results for " + notification.ExamTitle,
		Text:    renderGradeEmail(notification),
	})
	recordNotification("email", err)
	return err
}

func renderGradeEmail(n dto.GradeNotification) string {
	var b strings.Builder
	name := n.StudentName
	if name == "" {
		name = "there"
	}
	fmt.Fprintf(&b, "Hi %s,\n\n", name)
	fmt.Fprintf(&b, "Your submission for %q has been graded: %d / %d.\n\n", n.ExamTitle, n.TotalScore, n.MaxScore)

	keys := make([]string, 0, len(n.Details))
	for key := range n.Details {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		detail := n.Details[key]
		fmt.Fprintf(&b, "Question %s: %d / %d\n  %s\n", key, detail.Score, detail.MaxScore, detail.Feedback)
	}
	return b.String()
}

type multiGradeNotifier struct {
	notifiers []GradeNotifier
}

// NewGradeNotifier fans a notification out to every non-nil notifier and joins their errors.
func NewGradeNotifier(notifiers ...GradeNotifier) GradeNotifier {
	active := make([]GradeNotifier, 0, len(notifiers))
	for _, notifier := range notifiers {
		if notifier != nil {
			active = append(active, notifier)
		}
	}
	return &multiGradeNotifier{notifiers: active}
}

func (m *multiGradeNotifier) NotifyGraded(ctx context.Context, notification dto.GradeNotification) error {
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.NotifyGraded(ctx, notification); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type logGradeNotifier struct {
	logger zerolog.Logger
}

// NewLogGradeNotifier logs grade hand-offs, used when no transport is configured.
func NewLogGradeNotifier(logger zerolog.Logger) GradeNotifier {
	return &logGradeNotifier{logger: logger.With().Str("component", "grade_notifier").Logger()}
}

func (n *logGradeNotifier) NotifyGraded(_ context.Context, notification dto.GradeNotification) error {
	n.logger.Info().
		Uint("submission_id", notification.SubmissionID).
		Int("total_score", notification.TotalScore).
		Int("max_score", notification.MaxScore).
		Msg("submission graded")
	recordNotification("log", nil)
	return nil
}

func recordNotification(channel string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	observability.GradeNotifications().WithLabelValues(channel, result).Inc()
}
