package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/lead-crm/internal/leads"
	"github.com/wolfman30/lead-crm/pkg/logging"
)

func TestNewLeadNotifier_RequiresRecipient(t *testing.T) {
	stub := NewStubEmailSender(nil)
	assert.Nil(t, NewLeadNotifier(stub, "  ", nil))
	assert.Nil(t, NewLeadNotifier(nil, "admin@example.com", nil))

	var n *LeadNotifier
	assert.NoError(t, n.NotifyNewLead(context.Background(), &leads.Lead{}))
}

func TestLeadNotifier_SendsSummary(t *testing.T) {
	stub := NewStubEmailSender(logging.New("error"))
	n := NewLeadNotifier(stub, "sales@example.com", logging.New("error"))
	require.NotNil(t, n)

	lead := &leads.Lead{
		ID:        "lead-1",
		Name:      "Ada <script>",
		Email:     "ada@example.com",
		Source:    "referral",
		Status:    leads.StatusNew,
		Notes:     []leads.Note{{ID: "n1", Text: "wants a demo"}},
		CreatedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, n.NotifyNewLead(context.Background(), lead))
	require.Len(t, stub.sent, 1)

	msg := stub.sent[0]
	assert.Equal(t, "sales@example.com", msg.To)
	assert.Equal(t, "New lead: Ada <script> (referral)", msg.Subject)
	assert.Contains(t, msg.Body, "Email: ada@example.com")
	assert.Contains(t, msg.Body, "Phone: -")
	assert.Contains(t, msg.Body, "Note: wants a demo")
	assert.Contains(t, msg.HTML, "Ada &lt;script&gt;")
	assert.NotContains(t, msg.HTML, "<script>")
}

func TestLeadNotifier_NilLead(t *testing.T) {
	n := NewLeadNotifier(NewStubEmailSender(nil), "sales@example.com", nil)
	assert.Error(t, n.NotifyNewLead(context.Background(), nil))
}
