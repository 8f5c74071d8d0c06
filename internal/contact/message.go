package contact

import (
	"fmt"
	"html"
	"strings"
)

const (
	subjectPrefix  = "Portfolio: "
	defaultSubject = "New message"
	noSubject      = "(no subject)"
)

// Sender identifies the mailbox the relay authenticates as and the inbox
// that receives contact messages.
type Sender struct {
	Name      string
	Address   string
	Recipient string
}

// Message is the outbound email for one submission.
type Message struct {
	FromName string
	From     string
	To       string
	ReplyTo  string
	Subject  string
	Text     string
	HTML     string
}

// BuildMessage formats sub as an email from sender. When escapeHTML is false
// the visitor's text is interpolated into the HTML body as-is.
func BuildMessage(sub Submission, sender Sender, escapeHTML bool) *Message {
	subject := sub.SanitizedSubject()
	if subject == "" {
		subject = defaultSubject
	}

	to := sender.Recipient
	if to == "" {
		to = sender.Address
	}

	return &Message{
		FromName: sender.Name,
		From:     sender.Address,
		To:       to,
		ReplyTo:  sub.Email,
		Subject:  subjectPrefix + subject,
		Text:     fmt.Sprintf("From: %s <%s>\n\n%s", sub.Name, sub.Email, sub.Message),
		HTML:     htmlBody(sub, escapeHTML),
	}
}

func htmlBody(sub Submission, escape bool) string {
	esc := func(s string) string { return s }
	if escape {
		esc = html.EscapeString
	}

	subject := sub.Subject
	if subject == "" {
		subject = noSubject
	}
	message := strings.ReplaceAll(esc(sub.Message), "\n", "<br/>")

	var b strings.Builder
	b.WriteString("<div>\n")
	fmt.Fprintf(&b, "  <p><strong>From:</strong> %s &lt;%s&gt;</p>\n", esc(sub.Name), esc(sub.Email))
	fmt.Fprintf(&b, "  <p><strong>Subject:</strong> %s</p>\n", esc(subject))
	b.WriteString("  <p><strong>Message:</strong></p>\n")
	fmt.Fprintf(&b, "  <p>%s</p>\n", message)
	b.WriteString("</div>\n")
	return b.String()
}
