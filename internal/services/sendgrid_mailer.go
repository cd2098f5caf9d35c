package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"
)

// Mailer delivers transactional email.
type Mailer interface {
	SendPasswordReset(ctx context.Context, toEmail, link string) error
}

// SendGridMailer posts to the SendGrid v3 mail/send endpoint.
type SendGridMailer struct {
	APIKey     string
	FromEmail  string
	FromName   string
	Endpoint   string
	HTTPClient *http.Client
}

var _ Mailer = (*SendGridMailer)(nil)

func NewSendGridMailer(apiKey, fromEmail string) *SendGridMailer {
	return &SendGridMailer{
		APIKey:     strings.TrimSpace(apiKey),
		FromEmail:  strings.TrimSpace(fromEmail),
		FromName:   "Gift List",
		Endpoint:   "https://api.sendgrid.com/v3/mail/send",
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type sendGridAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendGridPersonalization struct {
	To      []sendGridAddress `json:"to"`
	Subject string            `json:"subject"`
}

type sendGridMailSendRequest struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridAddress           `json:"from"`
	Content          []sendGridContent         `json:"content"`
}

// mailMessage is one outgoing message. SendGrid wants text/plain before text/html.
type mailMessage struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

func (m *SendGridMailer) SendPasswordReset(ctx context.Context, toEmail, link string) error {
	to := strings.TrimSpace(toEmail)
	return m.send(ctx, mailMessage{
		To:      to,
		Subject: "Reset your password",
		Text: fmt.Sprintf("Someone asked to reset the password for %s.\n\n"+
			"Follow this link to choose a new one:\n%s\n\nIf it wasn't you, ignore this email.\n", to, link),
		HTML: fmt.Sprintf(`<p>Someone asked to reset the password for %s.</p>`+
			`<p><a href="%s">Choose a new password</a></p><p>If it wasn't you, ignore this email.</p>`,
			html.EscapeString(to), html.EscapeString(link)),
	})
}

func (m *SendGridMailer) send(ctx context.Context, msg mailMessage) error {
	switch {
	case m.APIKey == "":
		return errors.New("missing SENDGRID_API_KEY")
	case m.FromEmail == "":
		return errors.New("missing MAIL_FROM_EMAIL")
	case msg.To == "":
		return errors.New("missing recipient")
	}

	content := []sendGridContent{{Type: "text/plain", Value: msg.Text}}
	if msg.HTML != "" {
		content = append(content, sendGridContent{Type: "text/html", Value: msg.HTML})
	}
	body, err := json.Marshal(sendGridMailSendRequest{
		Personalizations: []sendGridPersonalization{{
			To:      []sendGridAddress{{Email: msg.To}},
			Subject: msg.Subject,
		}},
		From:    sendGridAddress{Email: m.FromEmail, Name: m.FromName},
		Content: content,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+m.APIKey)
	req.Header.Set("Content-Type", "application/json")

	client := m.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("sendgrid mail send http %d", resp.StatusCode)
	}
	return nil
}
