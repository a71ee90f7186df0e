package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

// SMTPMailer sends mail through an SMTP relay: Mailhog in development,
// a provider's SMTP endpoint in production.
type SMTPMailer struct {
	config    SMTPConfig
	baseURL   string
	templates *template.Template
	logger    *slog.Logger

	// sendMail is smtp.SendMail outside tests.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailer parses the embedded templates and returns a mailer.
// baseURL is used to build links back to the store.
func NewSMTPMailer(config SMTPConfig, baseURL string, logger *slog.Logger) (*SMTPMailer, error) {
	if config.From == "" {
		config.From = DefaultFromEmail
	}
	if config.FromName == "" {
		config.FromName = DefaultFromName
	}

	templates, err := template.New("email").Funcs(templateFuncs()).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}

	return &SMTPMailer{
		config:    config,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		templates: templates,
		logger:    logger,
		sendMail:  smtp.SendMail,
	}, nil
}

// SendPurchaseReceipt renders and sends the receipt.
func (s *SMTPMailer) SendPurchaseReceipt(ctx context.Context, receipt Receipt) error {
	if receipt.To == "" {
		return fmt.Errorf("receipt for %s has no recipient", receipt.PurchaseKey)
	}

	accountURL := s.baseURL + "/account/purchases"
	name := receipt.Name
	if name == "" {
		name = "there"
	}

	htmlBody, err := s.render("receipt.html", map[string]interface{}{
		"Name":        name,
		"Items":       receipt.Items,
		"Total":       receipt.Total,
		"PurchaseKey": receipt.PurchaseKey,
		"AccountURL":  accountURL,
		"StoreName":   s.config.FromName,
	})
	if err != nil {
		return fmt.Errorf("failed to render receipt template: %w", err)
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Hi %s,\n\nThank you for your purchase.\n\n", name)
	for _, item := range receipt.Items {
		fmt.Fprintf(&text, "%s  %s\n", item.Name, FormatCents(item.Price))
	}
	fmt.Fprintf(&text, "\nTotal  %s\n\nYour files: %s\n\nPurchase key: %s\n", FormatCents(receipt.Total), accountURL, receipt.PurchaseKey)

	return s.send(ctx, Email{
		To:       receipt.To,
		Subject:  "Your purchase receipt",
		HTMLBody: htmlBody,
		TextBody: text.String(),
	})
}

func (s *SMTPMailer) send(ctx context.Context, email Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	var auth smtp.Auth
	if s.config.Username != "" && s.config.Password != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	if err := s.sendMail(addr, auth, s.config.From, []string{email.To}, s.buildMessage(email)); err != nil {
		s.logger.Error("failed to send email", "to", email.To, "subject", email.Subject, "error", err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent", "to", email.To, "subject", email.Subject)
	return nil
}

// buildMessage writes a multipart/alternative message with text and HTML parts.
func (s *SMTPMailer) buildMessage(email Email) []byte {
	var buf bytes.Buffer
	const boundary = "==============PACKS_BOUNDARY=============="

	fmt.Fprintf(&buf, "From: %s <%s>\r\n", s.config.FromName, s.config.From)
	fmt.Fprintf(&buf, "To: %s\r\n", email.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", email.Subject)
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n\r\n", boundary)

	for _, part := range []struct{ contentType, body string }{
		{"text/plain", email.TextBody},
		{"text/html", email.HTMLBody},
	} {
		fmt.Fprintf(&buf, "--%s\r\n", boundary)
		fmt.Fprintf(&buf, "Content-Type: %s; charset=utf-8\r\n\r\n", part.contentType)
		buf.WriteString(part.body)
		buf.WriteString("\r\n")
	}
	fmt.Fprintf(&buf, "--%s--\r\n", boundary)

	return buf.Bytes()
}

func (s *SMTPMailer) render(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"money": FormatCents,
		"currentYear": func() int {
			return time.Now().Year()
		},
	}
}

var _ Mailer = (*SMTPMailer)(nil)
