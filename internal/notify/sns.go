// Package notify dispatches quota notifications.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"lead-pipeline/internal/common/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// Publisher is satisfied by the SNS client wrapper in internal/common/aws.
type Publisher interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

// QuotaAlert is sent when a workspace's usage crosses the warning threshold.
type QuotaAlert struct {
	WorkspaceID string    `json:"workspaceId"`
	UserID      string    `json:"userId"`
	Used        int       `json:"used"`
	Limit       int       `json:"limit"`
	Threshold   float64   `json:"threshold"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// Crossed reports whether moving from used-1 to used crossed threshold
// (a fraction of limit). Only the crossing search alerts.
func Crossed(used, limit int, threshold float64) bool {
	if limit <= 0 || threshold <= 0 {
		return false
	}
	mark := threshold * float64(limit)
	return float64(used) >= mark && float64(used-1) < mark
}

type SNSNotifier struct {
	publisher Publisher
	topicARN  string
	logger    logger.Logger
}

func NewSNSNotifier(publisher Publisher, topicARN string, log logger.Logger) *SNSNotifier {
	return &SNSNotifier{
		publisher: publisher,
		topicARN:  topicARN,
		logger:    log.WithFields(map[string]interface{}{"component": "quota-notifier"}),
	}
}

func (n *SNSNotifier) QuotaThresholdCrossed(ctx context.Context, alert QuotaAlert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("encode quota alert: %w", err)
	}

	out, err := n.publisher.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Subject:  aws.String("Search quota warning"),
		Message:  aws.String(string(payload)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"eventType": {
				DataType:    aws.String("String"),
				StringValue: aws.String("quota.threshold_crossed"),
			},
			"workspaceId": {
				DataType:    aws.String("String"),
				StringValue: aws.String(alert.WorkspaceID),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("publish quota alert: %w", err)
	}

	n.logger.Info("quota alert published", map[string]interface{}{
		"workspaceId": alert.WorkspaceID,
		"used":        alert.Used,
		"limit":       alert.Limit,
		"messageId":   aws.ToString(out.MessageId),
	})
	return nil
}
