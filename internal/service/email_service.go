package service

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/growpixel/leadmail/internal/model"
)

const mimeBoundary = "LeadmailBoundary"

// SMTPConfig describes the outbound mail account.
type SMTPConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromName    string
	FromAddress string

	// Secure selects implicit TLS (SMTPS, typically port 465). When false
	// the sender falls back to smtp.SendMail with opportunistic STARTTLS.
	Secure bool

	ConnectionTimeout time.Duration
	// SendTimeout bounds the whole SMTP exchange on the secure path via a
	// connection deadline. Zero means no deadline.
	SendTimeout time.Duration
}

// EmailSender is the outbound mail capability consumed by the dispatch
// coordinator. Injected at construction so tests can substitute a stub.
type EmailSender interface {
	SendEmail(ctx context.Context, recipient, subject, htmlBody string, attachments []model.Attachment) error
}

// SMTPEmailSender sends mail over net/smtp.
type SMTPEmailSender struct {
	cfg    SMTPConfig
	logger *slog.Logger
}

func NewSMTPEmailSender(cfg SMTPConfig, logger *slog.Logger) *SMTPEmailSender {
	return &SMTPEmailSender{cfg: cfg, logger: logger}
}

// SendEmail performs one synchronous delivery attempt. No retries; the
// caller owns failure policy.
func (sender *SMTPEmailSender) SendEmail(ctx context.Context, recipient, subject, htmlBody string, attachments []model.Attachment) error {
	if contextError := ctx.Err(); contextError != nil {
		return contextError
	}

	smtpAddr := net.JoinHostPort(sender.cfg.Host, fmt.Sprintf("%d", sender.cfg.Port))
	fromHeader := fmt.Sprintf("\"%s\" <%s>", sanitizeHeaderValue(sender.cfg.FromName), sender.cfg.FromAddress)
	message := buildEmailMessage(fromHeader, recipient, subject, htmlBody, attachments)
	auth := smtp.PlainAuth("", sender.cfg.Username, sender.cfg.Password, sender.cfg.Host)

	var sendError error
	if sender.cfg.Secure {
		sendError = sender.sendImplicitTLS(smtpAddr, auth, recipient, message)
	} else {
		sendError = smtp.SendMail(smtpAddr, auth, sender.cfg.FromAddress, []string{recipient}, []byte(message))
	}
	if sendError != nil {
		return fmt.Errorf("smtp send failed: %w", sendError)
	}

	sender.logger.Info("email_sent", "recipient", recipient, "attachments", len(attachments))
	return nil
}

// sendImplicitTLS talks SMTPS: the TLS handshake happens before any SMTP
// exchange. Certificate validation is relaxed on purpose; the deployment
// targets mail hosts whose certificates do not always match SMTP_HOST.
func (sender *SMTPEmailSender) sendImplicitTLS(smtpAddr string, auth smtp.Auth, recipient, message string) error {
	dialer := &net.Dialer{Timeout: sender.cfg.ConnectionTimeout}
	tlsConfig := &tls.Config{
		ServerName:         sender.cfg.Host,
		InsecureSkipVerify: true,
	}

	connection, dialError := tls.DialWithDialer(dialer, "tcp", smtpAddr, tlsConfig)
	if dialError != nil {
		return dialError
	}
	if sender.cfg.SendTimeout > 0 {
		if deadlineError := connection.SetDeadline(time.Now().Add(sender.cfg.SendTimeout)); deadlineError != nil {
			connection.Close()
			return deadlineError
		}
	}

	client, clientError := smtp.NewClient(connection, sender.cfg.Host)
	if clientError != nil {
		connection.Close()
		return clientError
	}
	defer client.Close()

	if authError := client.Auth(auth); authError != nil {
		return authError
	}
	if mailError := client.Mail(sender.cfg.FromAddress); mailError != nil {
		return mailError
	}
	if rcptError := client.Rcpt(recipient); rcptError != nil {
		return rcptError
	}
	dataWriter, dataError := client.Data()
	if dataError != nil {
		return dataError
	}
	if _, writeError := dataWriter.Write([]byte(message)); writeError != nil {
		dataWriter.Close()
		return writeError
	}
	if closeError := dataWriter.Close(); closeError != nil {
		return closeError
	}
	return client.Quit()
}

// buildEmailMessage renders the wire-format message: a plain HTML body when
// there are no attachments, multipart/mixed with base64 parts otherwise.
func buildEmailMessage(fromHeader, recipient, subject, htmlBody string, attachments []model.Attachment) string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("From: %s\r\n", sanitizeHeaderValue(fromHeader)))
	builder.WriteString(fmt.Sprintf("To: %s\r\n", sanitizeHeaderValue(recipient)))
	builder.WriteString(fmt.Sprintf("Subject: %s\r\n", sanitizeHeaderValue(subject)))
	builder.WriteString("MIME-Version: 1.0\r\n")

	if len(attachments) == 0 {
		builder.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
		builder.WriteString("\r\n")
		builder.WriteString(htmlBody)
		return builder.String()
	}

	builder.WriteString(fmt.Sprintf("Content-Type: multipart/mixed; boundary=\"%s\"\r\n", mimeBoundary))
	builder.WriteString("\r\n")

	builder.WriteString(fmt.Sprintf("--%s\r\n", mimeBoundary))
	builder.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	builder.WriteString("\r\n")
	builder.WriteString(htmlBody)
	builder.WriteString("\r\n")

	for _, attachment := range attachments {
		builder.WriteString(fmt.Sprintf("--%s\r\n", mimeBoundary))
		builder.WriteString(fmt.Sprintf("Content-Type: %s\r\n", sanitizeHeaderValue(attachment.ContentType)))
		builder.WriteString("Content-Transfer-Encoding: base64\r\n")
		builder.WriteString(fmt.Sprintf("Content-Disposition: attachment; filename=\"%s\"\r\n", sanitizeHeaderValue(attachment.Filename)))
		builder.WriteString("\r\n")
		writeBase64Wrapped(&builder, attachment.Data)
	}

	builder.WriteString(fmt.Sprintf("--%s--", mimeBoundary))
	return builder.String()
}

// sanitizeHeaderValue strips CR and LF so untrusted values cannot inject
// additional headers.
func sanitizeHeaderValue(value string) string {
	replacer := strings.NewReplacer("\r", "", "\n", "")
	return replacer.Replace(value)
}

func writeBase64Wrapped(builder *strings.Builder, data []byte) {
	const lineLength = 76
	encoded := base64.StdEncoding.EncodeToString(data)
	for start := 0; start < len(encoded); start += lineLength {
		end := start + lineLength
		if end > len(encoded) {
			end = len(encoded)
		}
		builder.WriteString(encoded[start:end])
		builder.WriteString("\r\n")
	}
}
