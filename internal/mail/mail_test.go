package mail

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sendgrid/rest"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/edigar/sales-control/internal/domain"
)

func TestRenderDailySalesReport(t *testing.T) {
	report := domain.DailySalesReport{
		RecipientName:   "John Doe",
		TotalSales:      10,
		TotalAmount:     decimal.RequireFromString("1500.50"),
		TotalCommission: decimal.RequireFromString("150.05"),
		ReportDate:      "2025-10-26",
	}

	msg, err := RenderDailySalesReport(report, "john@example.com")
	require.NoError(t, err)

	assert.Equal(t, "john@example.com", msg.To)
	assert.Equal(t, "John Doe", msg.ToName)
	assert.Equal(t, "Daily Sales Report - 26/10/2025", msg.Subject)
	for _, body := range []string{msg.HTMLBody, msg.TextBody} {
		assert.Contains(t, body, "John Doe")
		assert.Contains(t, body, "10")
		assert.Contains(t, body, "1.500,50")
		assert.Contains(t, body, "150,05")
		assert.Contains(t, body, "26/10/2025")
	}
	assert.Contains(t, msg.HTMLBody, "summary of all sales")
}

func TestRenderDailySellerSalesReport(t *testing.T) {
	report := domain.DailySellerSalesReport{
		SellerID:        1,
		SellerName:      "Ana <Souza>",
		SellerEmail:     "ana@example.com",
		TotalSales:      3,
		TotalAmount:     decimal.RequireFromString("750"),
		TotalCommission: decimal.RequireFromString("63.75"),
		ReportDate:      "2025-10-26",
	}

	msg, err := RenderDailySellerSalesReport(report)
	require.NoError(t, err)

	assert.Equal(t, "ana@example.com", msg.To)
	assert.Equal(t, "Daily Sales Report - 26/10/2025", msg.Subject)
	assert.Contains(t, msg.HTMLBody, "Ana &lt;Souza&gt;")
	assert.Contains(t, msg.HTMLBody, "750,00")
	assert.Contains(t, msg.HTMLBody, "63,75")
	assert.Contains(t, msg.HTMLBody, "summary of your sales")
}

func TestSubjectKeepsUnparseableDate(t *testing.T) {
	assert.Equal(t, "Daily Sales Report - soon", Subject("soon"))
}

func TestFormatMoney(t *testing.T) {
	cases := map[string]string{
		"0":          "0,00",
		"0.5":        "0,50",
		"999.999":    "1.000,00",
		"1500.5":     "1.500,50",
		"63.75":      "63,75",
		"1234567.89": "1.234.567,89",
		"-1500.5":    "-1.500,50",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatMoney(decimal.RequireFromString(in)), in)
	}
}

type fakeDialer struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m...)
	return nil
}

func TestSMTPSenderBuildsMessage(t *testing.T) {
	dialer := &fakeDialer{}
	sender := &SMTPSender{from: Address{Email: "reports@example.com", Name: "Reports"}, dialer: dialer}

	err := sender.Send(context.Background(), Message{
		To: "ana@example.com", ToName: "Ana", Subject: "Daily Sales Report - 26/10/2025",
		HTMLBody: "<p>hi</p>", TextBody: "hi",
	})
	require.NoError(t, err)
	require.Len(t, dialer.sent, 1)

	m := dialer.sent[0]
	assert.Equal(t, []string{"Daily Sales Report - 26/10/2025"}, m.GetHeader("Subject"))
	require.Len(t, m.GetHeader("To"), 1)
	assert.Contains(t, m.GetHeader("To")[0], "ana@example.com")
	assert.Contains(t, m.GetHeader("From")[0], "reports@example.com")

	var raw strings.Builder
	_, err = m.WriteTo(&raw)
	require.NoError(t, err)
	assert.Contains(t, raw.String(), "text/html")
	assert.Contains(t, raw.String(), "text/plain")
}

func TestSMTPSenderWrapsTransportError(t *testing.T) {
	boom := errors.New("connection refused")
	sender := &SMTPSender{dialer: &fakeDialer{err: boom}}

	err := sender.Send(context.Background(), Message{To: "ana@example.com", HTMLBody: "x"})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "ana@example.com")
}

func TestSendersRejectEmptyRecipient(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	senders := []Sender{
		&SMTPSender{dialer: &fakeDialer{}},
		&SendGridSender{client: &fakeSendGrid{}},
		NewLogSender(logger),
	}
	for _, s := range senders {
		assert.ErrorIs(t, s.Send(context.Background(), Message{To: "  "}), ErrNoRecipient)
	}
}

type fakeSendGrid struct {
	got      *sgmail.SGMailV3
	response *rest.Response
	err      error
}

func (f *fakeSendGrid) SendWithContext(_ context.Context, email *sgmail.SGMailV3) (*rest.Response, error) {
	f.got = email
	if f.err != nil {
		return nil, f.err
	}
	if f.response == nil {
		return &rest.Response{StatusCode: 202}, nil
	}
	return f.response, nil
}

func TestSendGridSender(t *testing.T) {
	client := &fakeSendGrid{}
	sender := &SendGridSender{from: Address{Email: "reports@example.com", Name: "Reports"}, client: client}

	err := sender.Send(context.Background(), Message{To: "ana@example.com", ToName: "Ana", Subject: "s", HTMLBody: "<p>x</p>", TextBody: "x"})
	require.NoError(t, err)
	require.NotNil(t, client.got)
	assert.Equal(t, "s", client.got.Subject)
	assert.Equal(t, "reports@example.com", client.got.From.Address)
	require.Len(t, client.got.Personalizations, 1)
	assert.Equal(t, "ana@example.com", client.got.Personalizations[0].To[0].Address)
}

func TestSendGridSenderFailsOnErrorStatus(t *testing.T) {
	client := &fakeSendGrid{response: &rest.Response{StatusCode: 401, Body: "unauthorized"}}
	sender := &SendGridSender{client: client}

	err := sender.Send(context.Background(), Message{To: "ana@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestNewSendGridSenderRequiresKey(t *testing.T) {
	_, err := NewSendGridSender("", Address{})
	assert.Error(t, err)
}

func TestLogSenderRecordsMessage(t *testing.T) {
	logger, hook := logtest.NewNullLogger()

	err := NewLogSender(logger).Send(context.Background(), Message{To: "ana@example.com", Subject: "s"})
	require.NoError(t, err)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "ana@example.com", entry.Data["to"])
}

type countingSender struct{ calls int }

func (c *countingSender) Send(context.Context, Message) error {
	c.calls++
	return nil
}

func TestThrottledForwardsAndHonoursCancellation(t *testing.T) {
	next := &countingSender{}
	throttled := NewThrottled(next, 1)

	require.NoError(t, throttled.Send(context.Background(), Message{To: "a@example.com"}))
	assert.Equal(t, 1, next.calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, throttled.Send(ctx, Message{To: "b@example.com"}))
	assert.Equal(t, 1, next.calls)
}
