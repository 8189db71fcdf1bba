// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package alert sends email notifications when a monitored deployment goes
// unhealthy. Delivery is plain SMTP with optional AUTH; the server, sender
// and recipients all come from the alert section of the config file.
package alert

import (
	"errors"
	"fmt"
	"net/smtp"
	"os"
	"strings"

	"github.com/apex/log"

	"github.com/staranto/carbonctlgo/internal/config"
)

// ErrNotConfigured is returned by FromConfig when the alert section is
// absent. Callers treat it as "alerting disabled", not a failure.
var ErrNotConfigured = errors.New("alerting is not configured")

// Mailer delivers alert mail through a single SMTP relay.
type Mailer struct {
	Host string
	From string
	To   []string

	Port     int
	username string
	password string

	// send is swapped out by tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// FromConfig builds a Mailer from the alert.* config keys. The password may
// also come from CARBONCTL_SMTP_PASSWORD, which wins over the config file so
// secrets can stay out of it.
func FromConfig() (*Mailer, error) {
	host, err := config.GetString("alert.host")
	if err != nil || host == "" {
		return nil, ErrNotConfigured
	}

	from, err := config.GetString("alert.from")
	if err != nil || from == "" {
		return nil, errors.New("alert.from is required when alert.host is set")
	}

	to, err := config.GetStringSlice("alert.to")
	if err != nil || len(to) == 0 {
		return nil, errors.New("alert.to is required when alert.host is set")
	}

	port, _ := config.GetInt("alert.port", 587)
	username, _ := config.GetString("alert.username", "")
	password, _ := config.GetString("alert.password", "")
	if p, ok := os.LookupEnv("CARBONCTL_SMTP_PASSWORD"); ok {
		password = p
	}

	return &Mailer{
		Host:     host,
		Port:     port,
		From:     from,
		To:       to,
		username: username,
		password: password,
		send:     smtp.SendMail,
	}, nil
}

// Send delivers one message to every configured recipient.
func (m *Mailer) Send(subject string, body string) error {
	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.Host)
	}

	addr := fmt.Sprintf("%s:%d", m.Host, m.Port)
	msg := Compose(m.From, m.To, subject, body)

	if err := m.send(addr, auth, m.From, m.To, msg); err != nil {
		return fmt.Errorf("failed to send alert via %s: %w", addr, err)
	}

	log.Infof("sent alert %q to %s", subject, strings.Join(m.To, ", "))
	return nil
}

// Compose renders an RFC 5322 message body. CRLF line endings matter; some
// relays reject bare LF.
func Compose(from string, to []string, subject string, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + strings.Join(to, ", ") + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return []byte(b.String())
}
