package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-exam-grader/internal/dto"
	"github.com/noah-isme/gema-exam-grader/pkg/mailer"
)

func sampleNotification() dto.GradeNotification {
	return dto.GradeNotification{
		SubmissionID: 7,
		ExamID:       3,
		ExamTitle:    "Loops",
		StudentID:    11,
		StudentName:  "Ada",
		StudentEmail: "ada@example.com",
		TotalScore:   15,
		MaxScore:     20,
		Details: map[string]dto.QuestionGradeResponse{
			"2": {Score: 5, MaxScore: 10, Feedback: "Brief"},
			"1": {Score: 10, MaxScore: 10, Feedback: "Correct answer!"},
		},
		GradedAt: time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC),
	}
}

type fakeMailer struct {
	messages []mailer.Message
	err      error
}

func (f *fakeMailer) Send(_ context.Context, msg mailer.Message) error {
	f.messages = append(f.messages, msg)
	return f.err
}

func TestValidateGradeNotification(t *testing.T) {
	require.NoError(t, ValidateGradeNotification(sampleNotification()))

	over := sampleNotification()
	over.MaxScore = 10
	require.ErrorIs(t, ValidateGradeNotification(over), ErrInconsistentNotification)

	mismatch := sampleNotification()
	mismatch.TotalScore = 14
	require.ErrorIs(t, ValidateGradeNotification(mismatch), ErrInconsistentNotification)

	anonymous := sampleNotification()
	anonymous.SubmissionID = 0
	require.ErrorIs(t, ValidateGradeNotification(anonymous), ErrInconsistentNotification)
}

func TestEventGradeNotifierPublishesToRedis(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer redisClient.Close()

	ctx := context.Background()
	pubsub := redisClient.Subscribe(ctx, "gema:grading:completed")
	defer pubsub.Close()
	_, err = pubsub.Receive(ctx)
	require.NoError(t, err)

	notifier := NewEventGradeNotifier(redisClient, nil, "gema")
	require.NoError(t, notifier.NotifyGraded(ctx, sampleNotification()))

	msg, err := pubsub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var event gradeEvent
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &event))
	require.Equal(t, uint(7), event.Notification.SubmissionID)
	require.Equal(t, 15, event.Notification.TotalScore)
	require.NotEmpty(t, event.Source)
}

func TestEmailGradeNotifier(t *testing.T) {
	m := &fakeMailer{}
	notifier := NewEmailGradeNotifier(m, nil)

	require.NoError(t, notifier.NotifyGraded(context.Background(), sampleNotification()))
	require.Len(t, m.messages, 1)
	msg := m.messages[0]
	require.Equal(t, "ada@example.com", msg.ToEmail)
	require.Equal(t, "Your results for Loops", msg.Subject)
	require.Contains(t, msg.Text, "15 / 20")
	require.Less(t, strings.Index(msg.Text, "Question 1"), strings.Index(msg.Text, "Question 2"))

	missing := sampleNotification()
	missing.StudentEmail = ""
	require.ErrorIs(t, notifier.NotifyGraded(context.Background(), missing), mailer.ErrNoRecipient)
}

func TestMultiGradeNotifierJoinsErrors(t *testing.T) {
	failing := &fakeMailer{err: errors.New("smtp down")}
	recorder := &recordingNotifier{}
	notifier := NewGradeNotifier(NewEmailGradeNotifier(failing, nil), nil, recorder, NewLogGradeNotifier(testLogger()))

	err := notifier.NotifyGraded(context.Background(), sampleNotification())
	require.ErrorContains(t, err, "smtp down")
	require.Len(t, recorder.notifications, 1)
}
