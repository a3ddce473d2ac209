package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"lead-pipeline/internal/common/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMailer struct {
	inputs []*ses.SendEmailInput
	err    error
}

func (f *fakeMailer) SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error) {
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return nil, f.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("mail-1")}, nil
}

func TestSESNotifier_Sends(t *testing.T) {
	mailer := &fakeMailer{}
	n := NewSESNotifier(mailer, "alerts@example.com", []string{"ops@example.com"}, logger.NewTestLogger(t))

	err := n.QuotaThresholdCrossed(context.Background(), QuotaAlert{
		WorkspaceID: "ws-1", UserID: "u-1", Used: 8, Limit: 10, Threshold: 0.8, OccurredAt: time.Now(),
	})
	require.NoError(t, err)
	require.Len(t, mailer.inputs, 1)

	in := mailer.inputs[0]
	assert.Equal(t, "alerts@example.com", aws.ToString(in.Source))
	assert.Equal(t, []string{"ops@example.com"}, in.Destination.ToAddresses)
	assert.Contains(t, aws.ToString(in.Message.Subject.Data), "8/10")
	assert.Contains(t, aws.ToString(in.Message.Body.Text.Data), "threshold 80%")
}

func TestSESNotifier_NoRecipients(t *testing.T) {
	mailer := &fakeMailer{}
	n := NewSESNotifier(mailer, "alerts@example.com", nil, logger.NewNoOpLogger())
	require.NoError(t, n.QuotaThresholdCrossed(context.Background(), QuotaAlert{WorkspaceID: "ws-1"}))
	assert.Empty(t, mailer.inputs)
}

func TestFanout(t *testing.T) {
	pub := &fakePublisher{}
	mailer := &fakeMailer{err: errors.New("sandbox recipient")}
	f := Fanout{
		NewSNSNotifier(pub, "arn", logger.NewNoOpLogger()),
		NewSESNotifier(mailer, "a@example.com", []string{"b@example.com"}, logger.NewNoOpLogger()),
	}

	err := f.QuotaThresholdCrossed(context.Background(), QuotaAlert{WorkspaceID: "ws-1", Used: 8, Limit: 10})
	assert.ErrorContains(t, err, "sandbox recipient")
	assert.Len(t, pub.inputs, 1)
	assert.Len(t, mailer.inputs, 1)
}
