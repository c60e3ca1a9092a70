// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package identity

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// ResetDelivery carries a freshly issued reset token to its owner.
type ResetDelivery struct {
	Contact         string
	OrganizationKey string
	MemberKey       string
	Token           string
	Link            string
	ExpiresAt       time.Time
}

// ResetNotifier delivers reset tokens out of band.
type ResetNotifier interface {
	SendPasswordReset(ctx context.Context, d ResetDelivery) error
}

// LogNotifier records that a reset was issued without sending it anywhere.
// The token itself is never logged.
type LogNotifier struct{}

func (LogNotifier) SendPasswordReset(ctx context.Context, d ResetDelivery) error {
	slog.WarnContext(ctx, "password reset issued but no mail transport is configured",
		slog.String("organization", d.OrganizationKey),
		slog.String("member", d.MemberKey),
		slog.Time("expires_at", d.ExpiresAt),
	)
	return nil
}

// SMTPNotifier sends reset links by mail.
type SMTPNotifier struct {
	addr string
	from string
	auth smtp.Auth
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPNotifier creates a notifier for host:port. Credentials are optional.
func NewSMTPNotifier(host string, port int, username, password, from string) *SMTPNotifier {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &SMTPNotifier{
		addr: net.JoinHostPort(host, strconv.Itoa(port)),
		from: from,
		auth: auth,
		send: smtp.SendMail,
	}
}

func (n *SMTPNotifier) SendPasswordReset(ctx context.Context, d ResetDelivery) error {
	to := strings.TrimSpace(d.Contact)
	if to == "" || strings.ContainsAny(to, "\r\n") {
		return fmt.Errorf("invalid reset contact")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", n.from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	b.WriteString("Subject: Password reset\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&b, "A password reset was requested for %s/%s.\r\n\r\n", d.OrganizationKey, d.MemberKey)
	fmt.Fprintf(&b, "Use this link before %s:\r\n%s\r\n", d.ExpiresAt.Format(time.RFC1123), d.Link)

	if err := n.send(n.addr, n.auth, n.from, []string{to}, []byte(b.String())); err != nil {
		return fmt.Errorf("failed to send reset mail: %w", err)
	}
	return nil
}
