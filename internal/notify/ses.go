package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// SESDispatcher sends notifications through AWS SES.
type SESDispatcher struct {
	Client *sesv2.Client
	From   string
}

func (s *SESDispatcher) Send(ctx context.Context, req SendRequest) error {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.From),
		Destination: &types.Destination{
			ToAddresses: []string{req.To},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subjectFor(req.Template))},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(renderText(req))},
				},
			},
		},
	}

	if _, err := s.Client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailure, err)
	}
	return nil
}
