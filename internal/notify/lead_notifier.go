package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/wolfman30/lead-crm/internal/leads"
	"github.com/wolfman30/lead-crm/pkg/logging"
)

// LeadNotifier emails the admin inbox about each new public submission.
type LeadNotifier struct {
	sender EmailSender
	to     string
	logger *logging.Logger
}

var _ leads.Notifier = (*LeadNotifier)(nil)

// NewLeadNotifier returns nil when there is no sender or recipient.
func NewLeadNotifier(sender EmailSender, to string, logger *logging.Logger) *LeadNotifier {
	if sender == nil || strings.TrimSpace(to) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &LeadNotifier{sender: sender, to: strings.TrimSpace(to), logger: logger.Component("lead_notifier")}
}

// NotifyNewLead sends the new-lead email.
func (n *LeadNotifier) NotifyNewLead(ctx context.Context, lead *leads.Lead) error {
	if n == nil {
		return nil
	}
	if lead == nil {
		return errors.New("notify: lead required")
	}
	return n.sender.Send(ctx, newLeadMessage(n.to, lead))
}

func newLeadMessage(to string, lead *leads.Lead) EmailMessage {
	phone := lead.Phone
	if phone == "" {
		phone = "-"
	}
	rows := [][2]string{
		{"Name", lead.Name},
		{"Email", lead.Email},
		{"Phone", phone},
		{"Source", lead.Source},
		{"Received", lead.CreatedAt.Format("2006-01-02 15:04 MST")},
	}

	var text, markup strings.Builder
	markup.WriteString("<h2>New lead</h2><table>")
	for _, row := range rows {
		fmt.Fprintf(&text, "%s: %s\n", row[0], row[1])
		fmt.Fprintf(&markup, "<tr><th align=\"left\">%s</th><td>%s</td></tr>", row[0], html.EscapeString(row[1]))
	}
	markup.WriteString("</table>")
	if len(lead.Notes) > 0 {
		fmt.Fprintf(&text, "\nNote: %s\n", lead.Notes[0].Text)
		fmt.Fprintf(&markup, "<p><strong>Note:</strong> %s</p>", html.EscapeString(lead.Notes[0].Text))
	}

	return EmailMessage{
		To:      to,
		Subject: fmt.Sprintf("New lead: %s (%s)", lead.Name, lead.Source),
		Body:    text.String(),
		HTML:    markup.String(),
	}
}
