// Package mailer delivers the finished report over SMTP.
package mailer

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-errors/errors"
)

// Options carries SMTP settings for one delivery.
type Options struct {
	Host       string
	Port       int
	From       string
	Subject    string
	Recipients []string
}

// Mailer sends the report as a base64-encoded attachment. Send failures are
// the caller's to log; by contract they never fail the run.
type Mailer struct {
	opts Options
	send func(addr, from string, to []string, msg []byte) error
}

// New constructs a Mailer that relays through opts.Host without
// authentication.
func New(opts Options) *Mailer {
	return &Mailer{
		opts: opts,
		send: func(addr, from string, to []string, msg []byte) error {
			return smtp.SendMail(addr, nil, from, to, msg)
		},
	}
}

// SendReport attaches the file at path to a plain-text message and sends it
// to every configured recipient.
func (m *Mailer) SendReport(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, 0)
	}
	body := fmt.Sprintf("Attached: %s host inventory report.\r\n", filepath.Base(path))
	msg, err := buildMessage(m.opts, filepath.Base(path), body, content)
	if err != nil {
		return err
	}
	addr := fmt.Sprintf("%s:%d", m.opts.Host, m.opts.Port)
	if err := m.send(addr, m.opts.From, m.opts.Recipients, msg); err != nil {
		return errors.Wrap(err, 0)
	}
	return nil
}

// buildMessage assembles a multipart/mixed MIME message with one text part
// and one attachment part.
func buildMessage(opts Options, filename, body string, attachment []byte) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", opts.From)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(opts.Recipients, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", opts.Subject)
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", mw.Boundary())

	textHeader := textproto.MIMEHeader{}
	textHeader.Set("Content-Type", "text/plain; charset=utf-8")
	part, err := mw.CreatePart(textHeader)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}
	if _, err := part.Write([]byte(body)); err != nil {
		return nil, errors.Wrap(err, 0)
	}

	attachHeader := textproto.MIMEHeader{}
	attachHeader.Set("Content-Type", fmt.Sprintf("text/csv; name=%q", filename))
	attachHeader.Set("Content-Transfer-Encoding", "base64")
	attachHeader.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	part, err = mw.CreatePart(attachHeader)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}
	if _, err := part.Write(wrapBase64(attachment)); err != nil {
		return nil, errors.Wrap(err, 0)
	}

	if err := mw.Close(); err != nil {
		return nil, errors.Wrap(err, 0)
	}
	return buf.Bytes(), nil
}

// wrapBase64 encodes data and folds it at the RFC 2045 76-column limit.
func wrapBase64(data []byte) []byte {
	encoded := base64.StdEncoding.EncodeToString(data)
	const width = 76
	var out bytes.Buffer
	for len(encoded) > width {
		out.WriteString(encoded[:width])
		out.WriteString("\r\n")
		encoded = encoded[width:]
	}
	out.WriteString(encoded)
	return out.Bytes()
}
