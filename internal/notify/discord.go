package notify

import (
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"
	"github.com/lotline/lotline/internal/models"
)

// session abstracts the discordgo.Session methods we use, enabling test mocks.
type session interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordNotifier posts escalations to a Discord channel as embeds.
type DiscordNotifier struct {
	sess      session
	channelID string
}

// DiscordOpts holds parameters for creating a DiscordNotifier.
type DiscordOpts struct {
	BotToken  string
	ChannelID string
	// For testing: inject a mock session instead of the real Discord API.
	Session session
}

// NewDiscord creates a Discord notifier. The REST API is enough for
// outbound alerts, so no gateway connection is opened.
func NewDiscord(opts DiscordOpts) (*DiscordNotifier, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("notify: discord bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("notify: discord channel is required")
	}
	n := &DiscordNotifier{sess: opts.Session, channelID: opts.ChannelID}
	if n.sess == nil {
		dg, err := discordgo.New("Bot " + opts.BotToken)
		if err != nil {
			return nil, fmt.Errorf("notify: discord session: %w", err)
		}
		n.sess = dg
	}
	return n, nil
}

// Name implements escalation.Subscriber.
func (n *DiscordNotifier) Name() string { return "discord" }

// Notify posts the escalation as an embed.
func (n *DiscordNotifier) Notify(esc *models.Escalation) error {
	color, err := strconv.ParseInt(severityColor(esc.EscalationType)[1:], 16, 32)
	if err != nil {
		color = 0x36a64f
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: "Lead", Value: esc.LeadID, Inline: true},
		{Name: "Score", Value: fmt.Sprintf("%.1f", esc.Score), Inline: true},
		{Name: "Trigger", Value: esc.TriggeringAction, Inline: true},
	}
	if esc.VehicleID != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Vehicle", Value: esc.VehicleID, Inline: true})
	}
	embed := &discordgo.MessageEmbed{
		Title:  headline(esc),
		Color:  int(color),
		Fields: fields,
	}
	if _, err := n.sess.ChannelMessageSendEmbed(n.channelID, embed); err != nil {
		return fmt.Errorf("notify: discord send: %w", err)
	}
	return nil
}
