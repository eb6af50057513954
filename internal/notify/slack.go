package notify

import (
	"fmt"

	"github.com/lotline/lotline/internal/models"
	slackapi "github.com/slack-go/slack"
)

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// SlackNotifier posts escalations to a Slack channel.
type SlackNotifier struct {
	client    slackClient
	channelID string
}

// SlackOpts holds parameters for creating a SlackNotifier.
type SlackOpts struct {
	Token     string
	ChannelID string
	// For testing: inject a mock client instead of the real Slack API.
	Client slackClient
}

// NewSlack creates a Slack notifier.
func NewSlack(opts SlackOpts) (*SlackNotifier, error) {
	if opts.Client == nil && opts.Token == "" {
		return nil, fmt.Errorf("notify: slack token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("notify: slack channel is required")
	}
	n := &SlackNotifier{client: opts.Client, channelID: opts.ChannelID}
	if n.client == nil {
		n.client = slackapi.New(opts.Token)
	}
	return n, nil
}

// Name implements escalation.Subscriber.
func (n *SlackNotifier) Name() string { return "slack" }

// Notify posts the escalation as an attachment with lead details.
func (n *SlackNotifier) Notify(esc *models.Escalation) error {
	fields := []slackapi.AttachmentField{
		{Title: "Lead", Value: esc.LeadID, Short: true},
		{Title: "Score", Value: fmt.Sprintf("%.1f", esc.Score), Short: true},
		{Title: "Trigger", Value: esc.TriggeringAction, Short: true},
		{Title: "Source", Value: esc.SourceChannel, Short: true},
	}
	if esc.VehicleID != "" {
		fields = append(fields, slackapi.AttachmentField{Title: "Vehicle", Value: esc.VehicleID, Short: true})
	}
	if esc.CustomerContact != "" {
		fields = append(fields, slackapi.AttachmentField{Title: "Contact", Value: esc.CustomerContact, Short: true})
	}
	attachment := slackapi.Attachment{
		Color:  severityColor(esc.EscalationType),
		Title:  headline(esc),
		Fields: fields,
	}
	_, _, err := n.client.PostMessage(n.channelID,
		slackapi.MsgOptionText(headline(esc), false),
		slackapi.MsgOptionAttachments(attachment))
	if err != nil {
		return fmt.Errorf("notify: slack post: %w", err)
	}
	return nil
}
