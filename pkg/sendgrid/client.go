package sendgrid

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/finxan/finxan-backend/pkg/config"
	pkgerrors "github.com/finxan/finxan-backend/pkg/errors"
	"github.com/sendgrid/rest"
	sg "github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	sendPath        = "/v3/mail/send"
	defaultFromName = "Finxan"
	errorBodyLimit  = 1024
)

var errAPIKeyRequired = errors.New("sendgrid api key is required")

// Mailer is the narrow sending surface used by the notification worker.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Message is a single-recipient email.
type Message struct {
	To       string
	ToName   string
	Subject  string
	HTMLBody string
	TextBody string
}

// Client sends mail through the SendGrid v3 API.
type Client struct {
	rest    *rest.Client
	request rest.Request
	from    *mail.Email
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.rest = &rest.Client{HTTPClient: client}
		}
	}
}

func NewClient(cfg config.SendgridConfig, opts ...Option) (*Client, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errAPIKeyRequired
	}
	from := strings.TrimSpace(cfg.DefaultFrom)
	if from == "" {
		return nil, errors.New("sendgrid from address is required")
	}

	// an empty host makes the library fall back to api.sendgrid.com
	request := sg.GetRequest(key, sendPath, strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"))
	request.Method = rest.Post

	c := &Client{
		rest:    &rest.Client{HTTPClient: &http.Client{Timeout: 10 * time.Second}},
		request: request,
		from:    mail.NewEmail(defaultFromName, from),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Send delivers msg. SendGrid answers 202 on acceptance.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "sendgrid client not configured")
	}
	if strings.TrimSpace(msg.To) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient is required")
	}
	if msg.TextBody == "" && msg.HTMLBody == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "email body is required")
	}

	email := mail.NewV3Mail()
	email.SetFrom(c.from)
	email.Subject = msg.Subject
	personalization := mail.NewPersonalization()
	personalization.AddTos(mail.NewEmail(msg.ToName, msg.To))
	email.AddPersonalizations(personalization)
	if msg.TextBody != "" {
		email.AddContent(mail.NewContent("text/plain", msg.TextBody))
	}
	if msg.HTMLBody != "" {
		email.AddContent(mail.NewContent("text/html", msg.HTMLBody))
	}

	request := c.request
	request.Body = mail.GetRequestBody(email)

	resp, err := c.rest.SendWithContext(ctx, request)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute sendgrid request")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body := strings.TrimSpace(resp.Body)
		if len(body) > errorBodyLimit {
			body = body[:errorBodyLimit]
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, body), "sendgrid send failed")
	}
	return nil
}
