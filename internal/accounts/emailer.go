package accounts

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	commonaws "heritage-api/internal/common/aws"
	"heritage-api/internal/common/logger"
)

// Emailer delivers API keys to their owners through SES.
type Emailer struct {
	ses    *commonaws.SESClient
	from   string
	logger logger.Logger
}

func NewEmailer(sesClient *commonaws.SESClient, from string, log logger.Logger) *Emailer {
	return &Emailer{
		ses:    sesClient,
		from:   from,
		logger: log.WithFields(map[string]interface{}{"component": "emailer"}),
	}
}

// SendAPIKey emails the key to the account address.
func (e *Emailer) SendAPIKey(ctx context.Context, email, key string) error {
	body := fmt.Sprintf("Your API key is %s", key)

	_, err := e.ses.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(e.from),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String("Your API key")},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
	})
	if err != nil {
		e.logger.WithError(err).Error("failed to send API key email", map[string]interface{}{
			"email": email,
		})
		return fmt.Errorf("send api key email: %w", err)
	}

	e.logger.Info("API key email sent", map[string]interface{}{"email": email})
	return nil
}
