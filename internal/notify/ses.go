package notify

import (
	"context"
	stderrors "errors"
	"fmt"

	"lead-pipeline/internal/common/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// Mailer is satisfied by the SES client wrapper in internal/common/aws.
type Mailer interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

// SESNotifier emails quota warnings to a fixed list of operators.
type SESNotifier struct {
	mailer     Mailer
	from       string
	recipients []string
	logger     logger.Logger
}

func NewSESNotifier(mailer Mailer, from string, recipients []string, log logger.Logger) *SESNotifier {
	return &SESNotifier{
		mailer:     mailer,
		from:       from,
		recipients: recipients,
		logger:     log.WithFields(map[string]interface{}{"component": "quota-mailer"}),
	}
}

func (n *SESNotifier) QuotaThresholdCrossed(ctx context.Context, alert QuotaAlert) error {
	if len(n.recipients) == 0 {
		return nil
	}

	subject := fmt.Sprintf("Search quota at %d/%d for workspace %s", alert.Used, alert.Limit, alert.WorkspaceID)
	body := fmt.Sprintf(
		"Workspace %s has used %d of %d searches this period (warning threshold %.0f%%).\nLast search by user %s at %s.",
		alert.WorkspaceID, alert.Used, alert.Limit, alert.Threshold*100,
		alert.UserID, alert.OccurredAt.Format("2006-01-02 15:04 MST"),
	)

	out, err := n.mailer.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(n.from),
		Destination: &types.Destination{ToAddresses: n.recipients},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body), Charset: aws.String("UTF-8")},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("send quota email: %w", err)
	}

	n.logger.Info("quota email sent", map[string]interface{}{
		"workspaceId": alert.WorkspaceID,
		"recipients":  len(n.recipients),
		"messageId":   aws.ToString(out.MessageId),
	})
	return nil
}

// Notifier is the common shape of the SNS and SES notifiers.
type Notifier interface {
	QuotaThresholdCrossed(ctx context.Context, alert QuotaAlert) error
}

// Fanout delivers an alert to every notifier and joins their errors.
type Fanout []Notifier

func (f Fanout) QuotaThresholdCrossed(ctx context.Context, alert QuotaAlert) error {
	var errs []error
	for _, n := range f {
		if err := n.QuotaThresholdCrossed(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
