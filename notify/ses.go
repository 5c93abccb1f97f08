package notify

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"github.com/cppla/punchclock/config"
)

type sesAPI interface {
	SendRawEmail(ctx context.Context, params *ses.SendRawEmailInput, optFns ...func(*ses.Options)) (*ses.SendRawEmailOutput, error)
}

// SESMailer sends raw mail through Amazon SES. Credentials come from the
// default AWS chain.
type SESMailer struct {
	client sesAPI
	from   string
}

// NewSESMailer loads the AWS configuration for cfg.Region.
func NewSESMailer(ctx context.Context, cfg config.SESConfig) (*SESMailer, error) {
	if cfg.From == "" {
		return nil, ErrNotConfigured
	}
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &SESMailer{client: ses.NewFromConfig(awsCfg), from: cfg.From}, nil
}

func (m *SESMailer) Send(ctx context.Context, msg Message) error {
	_, err := m.client.SendRawEmail(ctx, &ses.SendRawEmailInput{
		RawMessage: &types.RawMessage{Data: buildMessage(m.from, msg)},
	})
	if err != nil {
		return fmt.Errorf("ses send: %w", err)
	}
	return nil
}
