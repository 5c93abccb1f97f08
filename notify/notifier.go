package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/punchclock/config"
	"github.com/cppla/punchclock/models"
	"github.com/cppla/punchclock/services"
)

// MailNotifier renders engine notifications as mail to the user's address.
// Users without an email are skipped.
type MailNotifier struct {
	mailer          Mailer
	defaultTimezone string
	logger          *zap.Logger
}

func NewMailNotifier(mailer Mailer, defaultTimezone string, logger *zap.Logger) *MailNotifier {
	return &MailNotifier{mailer: mailer, defaultTimezone: defaultTimezone, logger: logger}
}

func (n *MailNotifier) SendWeekendWarning(ctx context.Context, user models.User, punch models.Punch) error {
	at := n.local(user, punch.PunchTime)
	return n.send(ctx, user, "Punch recorded on a non-working day",
		fmt.Sprintf("Hello %s,\n\nA %s punch was recorded on %s at %s, which is not one of your working days.\n",
			user.Username, punch.PunchType, at.Format("Monday 2006-01-02"), at.Format("15:04")))
}

func (n *MailNotifier) SendMissedPunchOutAlert(ctx context.Context, user models.User, inTime, outTime time.Time) error {
	in, out := n.local(user, inTime), n.local(user, outTime)
	return n.send(ctx, user, "Missed punch out",
		fmt.Sprintf("Hello %s,\n\nYou punched in at %s on %s and did not punch out. The system closed the session at %s.\nPlease ask an administrator to correct the time if needed.\n",
			user.Username, in.Format("15:04"), in.Format("2006-01-02"), out.Format("15:04")))
}

func (n *MailNotifier) SendReminder(ctx context.Context, user models.User, inTime time.Time) error {
	in := n.local(user, inTime)
	return n.send(ctx, user, "Reminder: you are still punched in",
		fmt.Sprintf("Hello %s,\n\nYou have been punched in since %s. Remember to punch out when you leave.\n",
			user.Username, in.Format("15:04")))
}

func (n *MailNotifier) send(ctx context.Context, user models.User, subject, body string) error {
	if user.Email == "" {
		n.logger.Debug("notification skipped, no email", zap.Uint("user_id", user.ID), zap.String("subject", subject))
		return nil
	}
	return n.mailer.Send(ctx, Message{To: user.Email, Subject: subject, Body: body})
}

func (n *MailNotifier) local(user models.User, t time.Time) time.Time {
	loc, err := services.LoadLocation(services.ResolveTimezone(&user, n.defaultTimezone))
	if err != nil {
		return t.UTC()
	}
	return t.In(loc)
}

// NewNotifier builds the notifier selected by app.mail_transport. "none" or
// an empty transport yields a no-op notifier.
func NewNotifier(ctx context.Context, cfg config.AppConfig, logger *zap.Logger) (services.Notifier, error) {
	switch cfg.App.MailTransport {
	case "smtp":
		return NewMailNotifier(NewSMTPMailer(cfg.SMTP), cfg.Policy.DefaultTimezone, logger), nil
	case "ses":
		m, err := NewSESMailer(ctx, cfg.SES)
		if err != nil {
			return nil, err
		}
		return NewMailNotifier(m, cfg.Policy.DefaultTimezone, logger), nil
	default:
		return services.NopNotifier{}, nil
	}
}
