package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// SMTPNotifier sends HTML mail per event kind. Recipients maps a role name to
// the addresses that review for it; decision and auto-approval mail goes to
// the requester's role bucket "requester" when configured.
type SMTPNotifier struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	Recipients map[string][]string
}

func (n *SMTPNotifier) Notify(_ context.Context, ev Event) error {
	to := n.recipients(ev)
	if len(to) == 0 {
		return nil
	}

	subject, body := render(ev)
	msg := strings.Join([]string{
		"From: " + n.From,
		"To: " + strings.Join(to, ", "),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=UTF-8",
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", n.Host, n.Port)
	var auth smtp.Auth
	if n.Username != "" {
		auth = smtp.PlainAuth("", n.Username, n.Password, n.Host)
	}
	if err := smtp.SendMail(addr, auth, n.From, to, []byte(msg)); err != nil {
		return fmt.Errorf("send notification mail: %w", err)
	}
	return nil
}

func (n *SMTPNotifier) recipients(ev Event) []string {
	switch ev.Kind {
	case KindTaskAssigned, KindEscalated:
		// Reviewers of the assigned role plus admins, as the original
		// recipient query did.
		return append(append([]string{}, n.Recipients[ev.Role]...), n.Recipients["admin"]...)
	default:
		return n.Recipients["requester"]
	}
}

func render(ev Event) (subject, body string) {
	switch ev.Kind {
	case KindTaskAssigned:
		subject = fmt.Sprintf("New Leave Request - %s Approval Required", strings.ToUpper(ev.Role))
		body = fmt.Sprintf(
			"<h2>Leave Request Approval Required</h2><p>A leave request from <strong>%s</strong> requires your approval.</p><p>Please log in to the system to review it.</p>",
			ev.Requester)
	case KindEscalated:
		subject = "Leave Request Escalated to HR"
		body = fmt.Sprintf(
			"<h2>Leave Request Escalated</h2><p>The request from <strong>%s</strong> was not answered in time and has been reassigned to HR.</p>",
			ev.Requester)
	case KindAutoApproved:
		subject = "Leave Request Approved"
		body = fmt.Sprintf("<h2>Leave Request Update</h2><p>%s's leave request was approved automatically.</p>", ev.Requester)
	default:
		verdict, title := "rejected", "Rejected"
		if ev.Approved {
			verdict, title = "approved", "Approved"
		}
		subject = fmt.Sprintf("Leave Request %s by %s", title, strings.ToUpper(ev.Role))
		body = fmt.Sprintf("<h2>Leave Request Update</h2><p>Your leave request has been <strong>%s</strong> by %s.</p>", verdict, ev.Role)
		if ev.Comments != "" {
			body += fmt.Sprintf("<p><strong>Comments:</strong> %s</p>", ev.Comments)
		}
	}
	return subject, body
}
