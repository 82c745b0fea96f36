package notifier

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Gmail defaults.
const (
	DefaultSMTPHost = "smtp.gmail.com"
	DefaultSMTPPort = 587
)

// EmailOptions configures the SMTP sender. AppPassword is a Gmail app password.
type EmailOptions struct {
	Host        string
	Port        int
	From        string
	To          string
	AppPassword string
}

// EmailSender delivers HTML mail over SMTP with STARTTLS.
type EmailSender struct {
	opts     EmailOptions
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	now      func() time.Time
}

// NewEmailSender creates an SMTP sender. Empty host and port take the Gmail defaults.
func NewEmailSender(opts EmailOptions) *EmailSender {
	if opts.Host == "" {
		opts.Host = DefaultSMTPHost
	}
	if opts.Port == 0 {
		opts.Port = DefaultSMTPPort
	}
	return &EmailSender{opts: opts, sendMail: smtp.SendMail, now: time.Now}
}

func (e *EmailSender) Name() string { return "email" }

// Send mails msg.HTML to the configured recipients. smtp.SendMail upgrades
// the connection with STARTTLS when the server offers it.
func (e *EmailSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	to := recipients(e.opts.To)
	if len(to) == 0 {
		return errors.New("email: no recipients configured")
	}

	addr := net.JoinHostPort(e.opts.Host, strconv.Itoa(e.opts.Port))
	auth := smtp.PlainAuth("", e.opts.From, e.opts.AppPassword, e.opts.Host)
	body := e.buildMessage(to, msg)
	if err := e.sendMail(addr, auth, e.opts.From, to, body); err != nil {
		return errors.Wrapf(err, "email: send %q via %s", msg.Subject, addr)
	}
	return nil
}

func (e *EmailSender) buildMessage(to []string, msg Message) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", e.opts.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", e.now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.HTML, "\n", "\r\n"))
	return b.Bytes()
}

func recipients(s string) []string {
	var out []string
	for _, addr := range strings.Split(s, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}
