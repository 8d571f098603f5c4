// Package email delivers ranked job matches to the candidate over SMTP.
package email

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/suyash-mankar/PMIP-BE-sub000/internal/matching"
)

// DeliveryError reports a failed send. It is fatal to run completion, but
// the ranked results stay queryable.
type DeliveryError struct {
	To  string
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver job matches to %s: %v", e.To, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Config holds SMTP connection settings.
type Config struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// Dispatcher sends match digests over SMTP.
type Dispatcher struct {
	config Config
	logger *zap.Logger

	// sendMail is swappable for tests.
	sendMail func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

func NewDispatcher(config Config, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		config:   config,
		logger:   logger,
		sendMail: smtp.SendMail,
	}
}

// Send emails the ranked jobs to the candidate.
func (d *Dispatcher) Send(ctx context.Context, to string, jobs []matching.ScoredJobItem, intentText string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return &DeliveryError{To: to, Err: fmt.Errorf("recipient address is empty")}
	}
	if err := ctx.Err(); err != nil {
		return &DeliveryError{To: to, Err: err}
	}

	msg := buildMessage(d.config.From, to, jobs, intentText)

	var auth smtp.Auth
	if d.config.Username != "" {
		auth = smtp.PlainAuth("", d.config.Username, d.config.Password, d.config.Host)
	}

	addr := net.JoinHostPort(d.config.Host, fmt.Sprintf("%d", d.config.Port))
	if err := d.sendMail(addr, auth, d.config.From, []string{to}, msg); err != nil {
		return &DeliveryError{To: to, Err: err}
	}

	d.logger.Info("job match digest delivered",
		zap.String("to", to),
		zap.Int("jobs", len(jobs)),
	)

	return nil
}

func buildMessage(from, to string, jobs []matching.ScoredJobItem, intentText string) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: Your top %d job matches\r\n", len(jobs))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")

	if intentText = strings.TrimSpace(intentText); intentText != "" {
		fmt.Fprintf(&b, "You asked for: %s\r\n\r\n", intentText)
	}

	for i, job := range jobs {
		fmt.Fprintf(&b, "%d. %s at %s", i+1, job.Title, job.Company)
		if job.Location != "" {
			fmt.Fprintf(&b, " (%s)", job.Location)
		}
		b.WriteString("\r\n")
		if job.Rationale != "" {
			fmt.Fprintf(&b, "   Why: %s\r\n", job.Rationale)
		}
		fmt.Fprintf(&b, "   Apply: %s\r\n\r\n", job.ApplyURL)
	}

	return []byte(b.String())
}
