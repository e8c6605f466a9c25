// internal/config/ses.go
package config

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
)

// SESConfig holds the SES client used by the notification dispatcher.
type SESConfig struct {
	Client *sesv2.Client
	From   string
}

// NewSESConfig creates a new SES configuration from the environment.
func NewSESConfig(from string) (*SESConfig, error) {
	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(os.Getenv("AWS_REGION")),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			os.Getenv("AWS_SES_KEY"),
			os.Getenv("AWS_SES_SECRET"),
			"",
		)),
	)
	if err != nil {
		return nil, err
	}

	return &SESConfig{
		Client: sesv2.NewFromConfig(cfg),
		From:   from,
	}, nil
}
