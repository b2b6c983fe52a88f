// Package discord adapts a discordgo session to the service: it sends
// listing embeds, handles the channel registration command and greets new
// guilds.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	"jobmate/internship-service/internal/model"
	"jobmate/internship-service/internal/notifier"
)

const (
	embedColor = 0x00ff00

	setChannelCommand = "set_channel"
	greetingChannel   = "general"

	confirmText  = "Internship updates will now be sent to this channel."
	greetingText = "Hi! I post new internship listings. An admin can run `%s%s` in the channel where updates should go."

	// Embed field values must not be empty.
	emptyField = "N/A"
)

// Registrar records a channel subscription.
type Registrar interface {
	Register(ctx context.Context, channelID, guildID string) (model.Subscription, bool, error)
}

// Backfiller delivers the current listings to a newly registered channel.
type Backfiller interface {
	Backfill(ctx context.Context, channelID string) error
}

// Bot is the Discord side of the service. It implements notifier.Sender.
type Bot struct {
	session *discordgo.Session
	prefix  string
	subs    Registrar
	log     *slog.Logger

	// set by Open
	ctx      context.Context
	backfill Backfiller

	mu     sync.Mutex
	guilds map[string]bool // guilds present at Ready are not greeted
}

// New creates a Bot for token. The session is not connected until Open.
func New(token, prefix string, subs Registrar) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discordgo.New: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent

	b := &Bot{
		session: session,
		prefix:  prefix,
		subs:    subs,
		log:     slog.With("component", "discord"),
		guilds:  make(map[string]bool),
	}
	session.AddHandler(b.onReady)
	session.AddHandler(b.onGuildCreate)
	session.AddHandler(b.onMessageCreate)
	return b, nil
}

// Open connects to the gateway. ctx bounds the work started from events;
// backfill is run for every newly registered channel.
func (b *Bot) Open(ctx context.Context, backfill Backfiller) error {
	b.ctx = ctx
	b.backfill = backfill
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("discord open: %w", err)
	}
	return nil
}

// Close disconnects from the gateway.
func (b *Bot) Close() error {
	return b.session.Close()
}

// Send posts msg to channelID as an embed.
func (b *Bot) Send(ctx context.Context, channelID string, msg notifier.Message) error {
	_, err := b.session.ChannelMessageSendEmbed(channelID, buildEmbed(msg), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("send to %s: %w", channelID, err)
	}
	return nil
}

func buildEmbed(msg notifier.Message) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: msg.Title,
		Color: embedColor,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "🌍 Location", Value: orNA(msg.Location), Inline: true},
			{Name: "📅 Date Posted", Value: orNA(msg.DatePosted), Inline: true},
			{Name: "💼 Application Link", Value: orNA(msg.ApplicationLink)},
		},
	}
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return emptyField
	}
	return s
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.mu.Lock()
	for _, g := range r.Guilds {
		b.guilds[g.ID] = true
	}
	b.mu.Unlock()
	b.log.Info("connected", "user", r.User.String(), "guilds", len(r.Guilds))
}

// onGuildCreate greets guilds the bot joins after Ready. GuildCreate also
// fires for every existing guild while connecting, which must stay silent.
func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	if g.Unavailable {
		return
	}
	b.mu.Lock()
	known := b.guilds[g.ID]
	b.guilds[g.ID] = true
	b.mu.Unlock()
	if known {
		return
	}

	ch := pickGreetingChannel(g.Channels, func(channelID string) bool {
		perms, err := s.UserChannelPermissions(s.State.User.ID, channelID)
		return err == nil && perms&discordgo.PermissionSendMessages != 0
	})
	if ch == nil {
		b.log.Warn("no channel to greet in", "guild", g.ID, "name", g.Name)
		return
	}

	text := fmt.Sprintf(greetingText, b.prefix, setChannelCommand)
	if _, err := s.ChannelMessageSend(ch.ID, text); err != nil {
		b.log.Warn("greeting failed", "guild", g.ID, "channel", ch.ID, "err", err)
		return
	}
	b.log.Info("greeted guild", "guild", g.ID, "channel", ch.Name)
}

// pickGreetingChannel returns the text channel named "general" when the bot
// can send there, otherwise the first sendable text channel by position.
func pickGreetingChannel(channels []*discordgo.Channel, canSend func(channelID string) bool) *discordgo.Channel {
	text := make([]*discordgo.Channel, 0, len(channels))
	for _, c := range channels {
		if c.Type == discordgo.ChannelTypeGuildText {
			text = append(text, c)
		}
	}
	sort.SliceStable(text, func(i, j int) bool { return text[i].Position < text[j].Position })

	for _, c := range text {
		if c.Name == greetingChannel && canSend(c.ID) {
			return c
		}
	}
	for _, c := range text {
		if canSend(c.ID) {
			return c
		}
	}
	return nil
}

// parseCommand returns the command name when content starts with prefix.
func parseCommand(content, prefix string) (string, bool) {
	content = strings.TrimSpace(content)
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", false
	}
	fields := strings.Fields(strings.TrimPrefix(content, prefix))
	if len(fields) == 0 {
		return "", false
	}
	return strings.ToLower(fields[0]), true
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if m.GuildID == "" {
		return // direct message
	}
	cmd, ok := parseCommand(m.Content, b.prefix)
	if !ok || cmd != setChannelCommand {
		return
	}
	b.handleSetChannel(s, m.ChannelID, m.GuildID)
}

func (b *Bot) handleSetChannel(s *discordgo.Session, channelID, guildID string) {
	ctx := b.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	log := b.log.With("channel", channelID, "guild", guildID)

	_, created, err := b.subs.Register(ctx, channelID, guildID)
	if err != nil {
		log.Error("register failed", "err", err)
		if _, err := s.ChannelMessageSend(channelID, "Could not register this channel, please try again later."); err != nil {
			log.Warn("error reply failed", "err", err)
		}
		return
	}
	log.Info("channel registered", "created", created)

	if _, err := s.ChannelMessageSend(channelID, confirmText); err != nil {
		log.Warn("confirmation failed", "err", err)
	}

	if b.backfill == nil {
		return
	}
	if err := b.backfill.Backfill(ctx, channelID); err != nil {
		log.Error("backfill failed", "err", err)
	}
}
