package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/wolfman30/bl-concierge/pkg/logging"
)

func TestNewSendGridSender_NilWithoutAPIKey(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{
		APIKey:    "",
		FromEmail: "support@example.com",
	}, nil)

	if sender != nil {
		t.Error("expected nil sender when API key is empty")
	}
}

func TestNewSendGridSender_DefaultFromName(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{
		APIKey:    "test-key",
		FromEmail: "support@example.com",
	}, nil)

	if sender == nil {
		t.Fatal("expected non-nil sender")
	}
	if sender.from.Name != "IQSTrade Support" {
		t.Errorf("expected default from name, got %q", sender.from.Name)
	}
}

func TestSendGridSender_Send_NilClient(t *testing.T) {
	sender := &SendGridSender{}

	err := sender.Send(context.Background(), EmailMessage{To: "customer@example.com", Subject: "Test", Body: "Test body"})
	if err == nil {
		t.Error("expected error when client is nil")
	}
}

type fakeSendGrid struct {
	status int
	err    error
	sent   []*mail.SGMailV3
}

func (f *fakeSendGrid) SendWithContext(_ context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	f.sent = append(f.sent, email)
	if f.err != nil {
		return nil, f.err
	}
	return &rest.Response{StatusCode: f.status}, nil
}

func TestSendGridSender_Send(t *testing.T) {
	fake := &fakeSendGrid{status: 202}
	sender := &SendGridSender{client: fake, from: Identity{Email: "support@example.com", Name: "Support", ReplyTo: "billing@example.com"}, logger: logging.Discard()}

	if err := sender.Send(context.Background(), EmailMessage{To: "customer@example.com", Subject: "Receipt", Body: "hello", Category: CategoryReceipt}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fake.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(fake.sent))
	}
	sent := fake.sent[0]
	if sent.Subject != "Receipt" {
		t.Errorf("unexpected subject %q", sent.Subject)
	}
	if sent.ReplyTo == nil || sent.ReplyTo.Address != "billing@example.com" {
		t.Errorf("expected reply-to billing@example.com, got %+v", sent.ReplyTo)
	}
	if len(sent.Categories) != 1 || sent.Categories[0] != CategoryReceipt {
		t.Errorf("expected receipt category, got %v", sent.Categories)
	}
}

func TestSendGridSender_Send_ErrorStatus(t *testing.T) {
	fake := &fakeSendGrid{status: 401}
	sender := &SendGridSender{client: fake, logger: logging.Discard()}

	err := sender.Send(context.Background(), EmailMessage{To: "customer@example.com", Subject: "Receipt", Body: "hello"})
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestStubEmailSender_Send(t *testing.T) {
	sender := NewStubEmailSender(nil)

	if err := sender.Send(context.Background(), EmailMessage{To: "customer@example.com", Subject: "Test Subject"}); err != nil {
		t.Errorf("stub sender should not return error, got: %v", err)
	}
}

type fakeSES struct {
	inputs []*sesv2.SendEmailInput
	err    error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestNewSESSender_NilClient(t *testing.T) {
	if NewSESSender(nil, SESConfig{}, nil) != nil {
		t.Fatal("expected nil sender without client")
	}
}

func TestSESSender_Send(t *testing.T) {
	fake := &fakeSES{}
	sender := NewSESSender(fake, SESConfig{FromEmail: "support@example.com"}, nil)

	msg := ReceiptEmail("customer@example.com", []string{"NYC220"}, "200", "https://receipts.example.com/r.pdf")
	if err := sender.Send(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fake.inputs) != 1 {
		t.Fatalf("expected one SES call, got %d", len(fake.inputs))
	}
	in := fake.inputs[0]
	if got := aws.ToString(in.FromEmailAddress); got != "IQSTrade Support <support@example.com>" {
		t.Errorf("unexpected from address %q", got)
	}
	if in.Destination.ToAddresses[0] != "customer@example.com" {
		t.Errorf("unexpected destination %v", in.Destination.ToAddresses)
	}
	if !strings.Contains(aws.ToString(in.Content.Simple.Body.Text.Data), "https://receipts.example.com/r.pdf") {
		t.Error("expected receipt url in text body")
	}
	if in.Content.Simple.Body.Html == nil || !strings.Contains(aws.ToString(in.Content.Simple.Body.Html.Data), `href="https://receipts.example.com/r.pdf"`) {
		t.Error("expected receipt link in html body")
	}
	if len(in.EmailTags) != 1 || aws.ToString(in.EmailTags[0].Value) != CategoryReceipt {
		t.Errorf("expected receipt tag, got %+v", in.EmailTags)
	}
	if len(in.ReplyToAddresses) != 0 {
		t.Errorf("reply-to should be omitted when unset, got %v", in.ReplyToAddresses)
	}
}

func TestSESSender_PlainTextOmitsHTML(t *testing.T) {
	fake := &fakeSES{}
	sender := NewSESSender(fake, SESConfig{FromEmail: "support@example.com", FromName: "Ops", ReplyTo: "billing@example.com"}, nil)

	if err := sender.Send(context.Background(), EmailMessage{To: "customer@example.com", Subject: "x", Body: "y"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	in := fake.inputs[0]
	if in.Content.Simple.Body.Html != nil {
		t.Error("html body should be omitted for plain text message")
	}
	if got := aws.ToString(in.FromEmailAddress); got != "Ops <support@example.com>" {
		t.Errorf("unexpected from address %q", got)
	}
	if len(in.ReplyToAddresses) != 1 || in.ReplyToAddresses[0] != "billing@example.com" {
		t.Errorf("unexpected reply-to %v", in.ReplyToAddresses)
	}
	if len(in.EmailTags) != 0 {
		t.Errorf("expected no tags, got %+v", in.EmailTags)
	}
}

func TestSESSender_SendError(t *testing.T) {
	sender := NewSESSender(&fakeSES{err: errors.New("throttled")}, SESConfig{FromEmail: "support@example.com"}, nil)
	if err := sender.Send(context.Background(), EmailMessage{To: "customer@example.com", Subject: "x", Body: "y"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestReceiptEmail(t *testing.T) {
	msg := ReceiptEmail("customer@example.com", []string{"NYC220", "NYC221"}, "400", "https://x/r.pdf")
	if msg.Subject != "Payment Receipt for BL NYC220, NYC221" {
		t.Errorf("unexpected subject %q", msg.Subject)
	}
	if !strings.Contains(msg.Body, "$400") {
		t.Errorf("expected amount in body: %q", msg.Body)
	}
	if msg.Category != CategoryReceipt {
		t.Errorf("expected receipt category, got %q", msg.Category)
	}
}
