package accounts

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	commonaws "heritage-api/internal/common/aws"
	"heritage-api/internal/common/logger"
)

// Notifier publishes account lifecycle events to an SNS topic for the
// operations team. Publishing is best-effort and never blocks signup.
type Notifier struct {
	sns      *commonaws.SNSClient
	topicARN string
	logger   logger.Logger
}

func NewNotifier(snsClient *commonaws.SNSClient, topicARN string, log logger.Logger) *Notifier {
	return &Notifier{
		sns:      snsClient,
		topicARN: topicARN,
		logger:   log.WithFields(map[string]interface{}{"component": "notifier"}),
	}
}

// AccountCreated announces a new account signup.
func (n *Notifier) AccountCreated(ctx context.Context, email string) {
	if n.sns == nil || n.topicARN == "" {
		return
	}
	_, err := n.sns.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Subject:  aws.String("New API account"),
		Message:  aws.String(fmt.Sprintf("API account created for %s", email)),
	})
	if err != nil {
		n.logger.WithError(err).Warn("failed to publish account event", map[string]interface{}{
			"email": email,
		})
	}
}
