package notify

import (
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/lotline/lotline/internal/escalation"
	"github.com/lotline/lotline/internal/models"
	slackapi "github.com/slack-go/slack"
)

func sampleEscalation() *models.Escalation {
	return &models.Escalation{
		ID:               "esc-4f1c09a2b37d",
		LeadID:           "leadprof-9a2b37d4f1c0",
		EscalationType:   escalation.TypeColdToWarm,
		OldStatus:        models.LeadNew,
		NewStatus:        models.LeadEngaged,
		Score:            11,
		VehicleID:        "veh-1",
		CustomerName:     "Dana R",
		CustomerContact:  "dana@example.com",
		SourceChannel:    "web",
		TriggeringAction: "availability_check",
	}
}

type mockSlack struct {
	channel string
	opts    []slackapi.MsgOption
	calls   int
}

func (m *mockSlack) PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error) {
	m.channel = channelID
	m.opts = options
	m.calls++
	return channelID, "1234.5678", nil
}

func TestSlackNotify(t *testing.T) {
	mock := &mockSlack{}
	n, err := NewSlack(SlackOpts{ChannelID: "C012345", Client: mock})
	if err != nil {
		t.Fatalf("new slack: %v", err)
	}
	if err := n.Notify(sampleEscalation()); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if mock.calls != 1 || mock.channel != "C012345" {
		t.Errorf("post = %d calls to %q", mock.calls, mock.channel)
	}
}

func TestSlackRequiresConfig(t *testing.T) {
	if _, err := NewSlack(SlackOpts{ChannelID: "C012345"}); err == nil {
		t.Error("missing token accepted")
	}
	if _, err := NewSlack(SlackOpts{Token: "xoxb-test"}); err == nil {
		t.Error("missing channel accepted")
	}
}

type mockDiscord struct {
	channel string
	embed   *discordgo.MessageEmbed
}

func (m *mockDiscord) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.channel = channelID
	m.embed = embed
	return &discordgo.Message{}, nil
}

func TestDiscordNotify(t *testing.T) {
	mock := &mockDiscord{}
	n, err := NewDiscord(DiscordOpts{ChannelID: "987654", Session: mock})
	if err != nil {
		t.Fatalf("new discord: %v", err)
	}
	if err := n.Notify(sampleEscalation()); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if mock.channel != "987654" {
		t.Errorf("channel = %q", mock.channel)
	}
	if mock.embed == nil || !strings.Contains(mock.embed.Title, "Dana R") {
		t.Errorf("embed title = %+v, want customer name", mock.embed)
	}
}

func TestHeadline(t *testing.T) {
	esc := sampleEscalation()
	h := headline(esc)
	if !strings.Contains(h, "Warm") || !strings.Contains(h, "Dana R") {
		t.Errorf("headline = %q", h)
	}
	esc.CustomerName = ""
	if h := headline(esc); !strings.Contains(h, esc.LeadID) {
		t.Errorf("anonymous headline = %q, want lead id fallback", h)
	}
}
