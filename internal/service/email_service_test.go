package service

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chorechart/internal/outbox"
)

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, params *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("ses-1")}, nil
}

func TestEmailSend(t *testing.T) {
	ses := &fakeSES{}
	svc := newEmailService(ses, "noreply@chorechart.test", "ChoreChart", "https://chorechart.test", true, zap.NewNop())

	msg := outbox.NewMessage(outbox.ChannelEmail, "kid@example.com", "Kid <3", "Task approved", "You earned 5 points")
	require.NoError(t, svc.Send(context.Background(), msg))

	require.NotNil(t, ses.input)
	assert.Equal(t, "ChoreChart <noreply@chorechart.test>", aws.ToString(ses.input.FromEmailAddress))
	assert.Equal(t, []string{"kid@example.com"}, ses.input.Destination.ToAddresses)

	simple := ses.input.Content.Simple
	assert.Equal(t, "Task approved", aws.ToString(simple.Subject.Data))
	html := aws.ToString(simple.Body.Html.Data)
	assert.Contains(t, html, "Kid &lt;3")
	assert.Contains(t, html, "https://chorechart.test")
	assert.Contains(t, aws.ToString(simple.Body.Text.Data), "Hi Kid <3,")
}

func TestEmailSendError(t *testing.T) {
	ses := &fakeSES{err: errors.New("throttled")}
	svc := newEmailService(ses, "noreply@chorechart.test", "", "", false, zap.NewNop())

	err := svc.Send(context.Background(), outbox.NewMessage(outbox.ChannelEmail, "a@example.com", "", "", "hi"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
	assert.Equal(t, "noreply@chorechart.test", aws.ToString(ses.input.FromEmailAddress))
	assert.Equal(t, "ChoreChart update", aws.ToString(ses.input.Content.Simple.Subject.Data))
}

func TestEmailDisabled(t *testing.T) {
	svc, err := NewEmailService(context.Background(), "us-east-1", "", "", "", false, nil)
	require.NoError(t, err)
	assert.False(t, svc.IsEnabled())
	assert.NoError(t, svc.Send(context.Background(), outbox.NewMessage(outbox.ChannelEmail, "a@example.com", "", "", "hi")))
}
