package sending

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/emersion/go-message/mail"
	"github.com/ignite/mailroom/internal/domain"
	"github.com/ignite/mailroom/internal/pkg/logger"
)

// SESAPI is the subset of the SES v2 client used by SESSender.
type SESAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender sends emails via AWS SES using the SDK v2. Messages with
// attachments go out as raw MIME.
type SESSender struct {
	client SESAPI
}

// NewSESSender creates an SES sender. With static keys the client uses them;
// with useDefaultChain it falls back to the default AWS credential chain;
// otherwise the sender stays unconfigured and Ready reports it.
func NewSESSender(ctx context.Context, accessKey, secretKey, region string, useDefaultChain bool) *SESSender {
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	switch {
	case accessKey != "" && secretKey != "":
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	case !useDefaultChain:
		return &SESSender{}
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		logger.Warn("SES: failed to initialize AWS config", "error", err)
		return &SESSender{}
	}
	return &SESSender{client: sesv2.NewFromConfig(cfg)}
}

// NewSESSenderWithClient wraps an existing client.
func NewSESSenderWithClient(client SESAPI) *SESSender {
	return &SESSender{client: client}
}

// Ready implements Sender.
func (s *SESSender) Ready() error {
	if s.client == nil {
		return fmt.Errorf("%w: SES client not initialized, check credentials", ErrNotConfigured)
	}
	return nil
}

// Send implements Sender.
func (s *SESSender) Send(ctx context.Context, msg *domain.EmailMessage) (string, error) {
	if err := s.Ready(); err != nil {
		return "", err
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(msg.From),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
	}
	if len(msg.Attachments) == 0 {
		input.Content = &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.HTML), Charset: aws.String("UTF-8")},
				},
			},
		}
	} else {
		raw, err := BuildMIME(msg, time.Now())
		if err != nil {
			return "", fmt.Errorf("build MIME message: %w", err)
		}
		input.Content = &types.EmailContent{Raw: &types.RawMessage{Data: raw}}
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return "", fmt.Errorf("SES send: %w", err)
	}

	messageID := aws.ToString(out.MessageId)
	logger.Debug("SES accepted message", "recipient", msg.To, "message_id", messageID)
	return messageID, nil
}

// BuildMIME renders msg as a multipart/mixed message with an HTML body and
// one part per attachment.
func BuildMIME(msg *domain.EmailMessage, date time.Time) ([]byte, error) {
	from, err := mail.ParseAddress(msg.From)
	if err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	to, err := mail.ParseAddress(msg.To)
	if err != nil {
		return nil, fmt.Errorf("to address: %w", err)
	}

	var h mail.Header
	h.SetDate(date)
	h.SetAddressList("From", []*mail.Address{from})
	h.SetAddressList("To", []*mail.Address{to})
	h.SetSubject(msg.Subject)

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, err
	}

	iw, err := mw.CreateInline()
	if err != nil {
		return nil, err
	}
	var ih mail.InlineHeader
	ih.SetContentType("text/html", map[string]string{"charset": "utf-8"})
	ih.Set("Content-Transfer-Encoding", "quoted-printable")
	pw, err := iw.CreatePart(ih)
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(pw, msg.HTML); err != nil {
		return nil, err
	}
	if err := pw.Close(); err != nil {
		return nil, err
	}
	if err := iw.Close(); err != nil {
		return nil, err
	}

	for _, f := range msg.Attachments {
		var ah mail.AttachmentHeader
		ct := mime.TypeByExtension(path.Ext(f.Filename))
		if ct == "" {
			ct = "application/octet-stream"
		}
		ah.Set("Content-Type", ct)
		ah.Set("Content-Transfer-Encoding", "base64")
		ah.SetFilename(f.Filename)
		aw, err := mw.CreateAttachment(ah)
		if err != nil {
			return nil, err
		}
		if _, err := aw.Write(f.Content); err != nil {
			return nil, err
		}
		if err := aw.Close(); err != nil {
			return nil, err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
