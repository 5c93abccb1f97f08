package notify

import (
	"fmt"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/cppla/punchclock/config"
)

// Alerter posts operational messages.
type Alerter interface {
	Info(message string) error
	Error(message string) error
}

// Slack posts to separate info and error channels.
type Slack struct {
	client  *slack.Client
	options SlackOption
}

type SlackOption struct {
	InfoChannelID  string
	ErrorChannelID string
}

func NewSlack(token string, options SlackOption, clientOpts ...slack.Option) *Slack {
	return &Slack{client: slack.New(token, clientOpts...), options: options}
}

func (s *Slack) postMessage(channelID, message string) error {
	if channelID == "" {
		return nil
	}
	_, _, err := s.client.PostMessage(channelID, slack.MsgOptionText(message, false))
	if err != nil {
		return fmt.Errorf("failed to post message to Slack: %w", err)
	}
	return nil
}

func (s *Slack) Info(message string) error {
	return s.postMessage(s.options.InfoChannelID, message)
}

func (s *Slack) Error(message string) error {
	return s.postMessage(s.options.ErrorChannelID, message)
}

// LogAlerter writes alerts to the log only.
type LogAlerter struct {
	Logger *zap.Logger
}

func (a LogAlerter) Info(message string) error {
	a.Logger.Info("alert", zap.String("message", message))
	return nil
}

func (a LogAlerter) Error(message string) error {
	a.Logger.Error("alert", zap.String("message", message))
	return nil
}

// NewAlerter returns Slack when a bot token is configured and a LogAlerter otherwise.
func NewAlerter(cfg config.SlackConfig, logger *zap.Logger) Alerter {
	if cfg.BotToken == "" {
		return LogAlerter{Logger: logger}
	}
	return NewSlack(cfg.BotToken, SlackOption{InfoChannelID: cfg.InfoChannel, ErrorChannelID: cfg.ErrorChannel})
}
