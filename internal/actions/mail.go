package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/jobs/taskengine/internal/biz/task"
	"github.com/samber/lo"
)

// MailInput send_email的参数，To和Cc为逗号分隔
type MailInput struct {
	From    string `json:"From"`
	To      string `json:"To"`
	Cc      string `json:"Cc"`
	Subject string `json:"Subject"`
	Body    string `json:"Body"`
}

type MailOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type MailExecutor struct {
	opts MailOptions
	send sendMailFunc
}

func NewMailExecutor(opts MailOptions) *MailExecutor {
	return &MailExecutor{opts: opts, send: smtp.SendMail}
}

func (e *MailExecutor) Execute(ctx context.Context, action task.Action, input string) (string, error) {
	if action != task.ActionSendEmail {
		return "", fmt.Errorf("mail executor does not support action %q", action)
	}
	var in MailInput
	if err := json.Unmarshal([]byte(input), &in); err != nil {
		return "", fmt.Errorf("failed to parse mail input: %w", err)
	}
	if in.From == "" {
		in.From = e.opts.From
	}
	to := splitAddresses(in.To)
	cc := splitAddresses(in.Cc)
	recipients := lo.Uniq(append(append([]string{}, to...), cc...))
	if len(recipients) == 0 {
		return "", fmt.Errorf("mail input requires To")
	}

	var auth smtp.Auth
	if e.opts.Username != "" {
		auth = smtp.PlainAuth("", e.opts.Username, e.opts.Password, e.opts.Host)
	}
	addr := net.JoinHostPort(e.opts.Host, strconv.Itoa(e.opts.Port))

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.send(addr, auth, in.From, recipients, buildMessage(in, to, cc))
	}()
	select {
	case err := <-errCh:
		if err != nil {
			return "", fmt.Errorf("failed to send mail: %w", err)
		}
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return fmt.Sprintf("sent to %s", strings.Join(recipients, ",")), nil
}

func splitAddresses(s string) []string {
	return lo.Filter(lo.Map(strings.Split(s, ","), func(a string, _ int) string {
		return strings.TrimSpace(a)
	}), func(a string, _ int) bool {
		return a != ""
	})
}

func buildMessage(in MailInput, to, cc []string) []byte {
	var b strings.Builder
	b.WriteString("From: " + in.From + "\r\n")
	b.WriteString("To: " + strings.Join(to, ", ") + "\r\n")
	if len(cc) > 0 {
		b.WriteString("Cc: " + strings.Join(cc, ", ") + "\r\n")
	}
	b.WriteString("Subject: " + in.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(in.Body)
	return []byte(b.String())
}
