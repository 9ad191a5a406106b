package mailer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/hugh/go-magiclink/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestRenderMagicLink(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	msg, err := RenderMagicLink(MagicLinkEmail{
		To:        "ada@example.com",
		Name:      "Ada",
		URL:       "https://auth.example.com/auth/verify?token=abc",
		ExpiresAt: now.Add(15 * time.Minute),
	}, now)
	require.NoError(t, err)

	assert.Equal(t, "ada@example.com", msg.To)
	assert.Equal(t, "Your sign-in link", msg.Subject)
	assert.Contains(t, msg.Text, "Hi Ada,")
	assert.Contains(t, msg.Text, "https://auth.example.com/auth/verify?token=abc")
	assert.Contains(t, msg.Text, "15 minutes")
}

func TestRenderMagicLink_NoName(t *testing.T) {
	now := time.Now()
	msg, err := RenderMagicLink(MagicLinkEmail{To: "x@example.com", URL: "u", ExpiresAt: now.Add(20 * time.Second)}, now)
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "Hi,")
	assert.Contains(t, msg.Text, "1 minute")
}

func TestSESMailer_Send(t *testing.T) {
	fake := &fakeSES{}
	m := &SESMailer{client: fake, from: "login@example.com"}

	err := m.Send(context.Background(), Message{To: "ada@example.com", Subject: "s", Text: "body"})
	require.NoError(t, err)

	require.NotNil(t, fake.input)
	assert.Equal(t, "login@example.com", aws.ToString(fake.input.FromEmailAddress))
	assert.Equal(t, []string{"ada@example.com"}, fake.input.Destination.ToAddresses)
	assert.Equal(t, "body", aws.ToString(fake.input.Content.Simple.Body.Text.Data))

	fake.err = errors.New("throttled")
	assert.Error(t, m.Send(context.Background(), Message{To: "ada@example.com"}))
}

func TestLogMailer_Send(t *testing.T) {
	m := NewLogMailer(util.DiscardLogger())
	assert.NoError(t, m.Send(context.Background(), Message{To: "x@example.com", Subject: "s", Text: "t"}))
}
