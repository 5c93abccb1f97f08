package notify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cppla/punchclock/config"
	"github.com/cppla/punchclock/models"
	"github.com/cppla/punchclock/services"
)

type fakeMailer struct {
	sent []Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg Message) error {
	f.sent = append(f.sent, msg)
	return f.err
}

func TestMailNotifierUsesUserTimezone(t *testing.T) {
	m := &fakeMailer{}
	n := NewMailNotifier(m, "UTC", zap.NewNop())
	user := models.User{ID: 1, Username: "alice", Email: "alice@example.com", Timezone: "Asia/Tokyo"}

	in := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	out := time.Date(2026, 3, 10, 14, 58, 0, 0, time.UTC)
	require.NoError(t, n.SendMissedPunchOutAlert(context.Background(), user, in, out))

	require.Len(t, m.sent, 1)
	assert.Equal(t, "alice@example.com", m.sent[0].To)
	assert.Equal(t, "Missed punch out", m.sent[0].Subject)
	assert.Contains(t, m.sent[0].Body, "09:00")
	assert.Contains(t, m.sent[0].Body, "23:58")
}

func TestMailNotifierSkipsUsersWithoutEmail(t *testing.T) {
	m := &fakeMailer{}
	n := NewMailNotifier(m, "UTC", zap.NewNop())
	require.NoError(t, n.SendReminder(context.Background(), models.User{ID: 2, Username: "bob"}, time.Now()))
	assert.Empty(t, m.sent)
}

func TestMailNotifierPropagatesMailerError(t *testing.T) {
	m := &fakeMailer{err: errors.New("relay down")}
	n := NewMailNotifier(m, "UTC", zap.NewNop())
	punch := models.Punch{PunchType: models.PunchIn, PunchTime: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)}
	err := n.SendWeekendWarning(context.Background(), models.User{Email: "a@example.com"}, punch)
	assert.EqualError(t, err, "relay down")
	assert.Contains(t, m.sent[0].Body, "Saturday 2026-03-14")
}

func TestBuildMessageEncodesNonASCIISubject(t *testing.T) {
	raw := string(buildMessage(formatAddress("Punchclock", "noreply@example.com"), Message{
		To:      "a@example.com",
		Subject: "Rappel: pointé",
		Body:    "body",
	}))
	assert.True(t, strings.HasPrefix(raw, "From: Punchclock <noreply@example.com>\r\nTo: a@example.com\r\n"))
	assert.Contains(t, raw, "Subject: =?UTF-8?b?")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\nbody"))
}

func TestSMTPMailerRequiresHost(t *testing.T) {
	err := NewSMTPMailer(config.SMTPConfig{}).Send(context.Background(), Message{To: "a@example.com"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

type fakeSES struct {
	input *ses.SendRawEmailInput
}

func (f *fakeSES) SendRawEmail(_ context.Context, in *ses.SendRawEmailInput, _ ...func(*ses.Options)) (*ses.SendRawEmailOutput, error) {
	f.input = in
	return &ses.SendRawEmailOutput{}, nil
}

func TestSESMailerSendsRawMessage(t *testing.T) {
	client := &fakeSES{}
	m := &SESMailer{client: client, from: "noreply@example.com"}
	require.NoError(t, m.Send(context.Background(), Message{To: "a@example.com", Subject: "Hi", Body: "text"}))

	require.NotNil(t, client.input)
	data := string(client.input.RawMessage.Data)
	assert.Contains(t, data, "From: noreply@example.com\r\n")
	assert.Contains(t, data, "Subject: Hi\r\n")
}

func TestNewNotifierDefaultsToNop(t *testing.T) {
	n, err := NewNotifier(context.Background(), config.AppConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, services.NopNotifier{}, n)
}

func TestSlackPostsToChannels(t *testing.T) {
	var (
		mu       sync.Mutex
		channels []string
		texts    []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		mu.Lock()
		channels = append(channels, r.FormValue("channel"))
		texts = append(texts, r.FormValue("text"))
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"channel":"` + r.FormValue("channel") + `","ts":"1.0"}`))
	}))
	defer srv.Close()

	s := NewSlack("xoxb-test", SlackOption{InfoChannelID: "CINFO", ErrorChannelID: "CERR"}, slack.OptionAPIURL(srv.URL+"/"))
	require.NoError(t, s.Info("all good"))
	require.NoError(t, s.Error("open punches"))

	assert.Equal(t, []string{"CINFO", "CERR"}, channels)
	assert.Equal(t, []string{"all good", "open punches"}, texts)
}

func TestNewAlerterWithoutTokenLogs(t *testing.T) {
	a := NewAlerter(config.SlackConfig{}, zap.NewNop())
	assert.IsType(t, LogAlerter{}, a)
	assert.NoError(t, a.Error("x"))
}
