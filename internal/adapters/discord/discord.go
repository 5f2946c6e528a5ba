// Package discord adapts the bot's neutral transport types to a discordgo
// session: message delivery, slash commands, presence and lifecycle.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/SoloWolfStudios/BoostBotTracker/internal/tibia"
	"github.com/SoloWolfStudios/BoostBotTracker/internal/transport"
	"github.com/SoloWolfStudios/BoostBotTracker/internal/updater"
	logx "github.com/SoloWolfStudios/BoostBotTracker/pkg/logx"
)

// Controller is the slice of the update core the slash commands drive.
type Controller interface {
	Reconcile(ctx context.Context, force bool) updater.Result
	Status(ctx context.Context) *tibia.BoostedSummary
}

type Config struct {
	Token   string
	GuildID string // empty = register commands globally

	Logger logx.Logger
}

// Service owns the gateway session. It satisfies transport.EmbedSender and
// transport.TextSender so the controller and the log sink can post through it
// without importing discordgo.
type Service struct {
	cfg Config
	log logx.Logger

	locMu sync.Mutex
	loc   *time.Location

	dg   *discordgo.Session
	ctrl Controller

	runCtx context.Context
}

func New(cfg Config) (*Service, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("discord: token required")
	}
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: %w", err)
	}
	dg.Identify.Intents = discordgo.MakeIntent(discordgo.IntentsGuilds)

	return &Service{cfg: cfg, log: cfg.Logger, loc: time.UTC, dg: dg}, nil
}

// SetLocation sets the timezone for the status embed's reset countdown.
// Defaults to UTC; safe to call while running (schedule hot-reload).
func (s *Service) SetLocation(loc *time.Location) {
	if loc != nil {
		s.locMu.Lock()
		s.loc = loc
		s.locMu.Unlock()
	}
}

func (s *Service) location() *time.Location {
	s.locMu.Lock()
	defer s.locMu.Unlock()
	return s.loc
}

// SetController wires the update core in before Start. Separate from New
// because the controller needs this service as its sender.
func (s *Service) SetController(ctrl Controller) { s.ctrl = ctrl }

// SetLogger swaps the bootstrap logger for the live one. The adapter is
// built before the log service (it is the log service's Discord sink), so
// it starts with a plain console logger.
func (s *Service) SetLogger(log logx.Logger) {
	if !log.IsZero() {
		s.log = log
	}
}

// Start opens the gateway, sets presence and registers the slash commands.
func (s *Service) Start(ctx context.Context) error {
	s.runCtx = ctx

	s.dg.AddHandler(func(dg *discordgo.Session, r *discordgo.Ready) {
		s.log.Info("connected to discord",
			logx.String("user", r.User.Username),
			logx.Int("guilds", len(r.Guilds)),
		)
		if err := dg.UpdateWatchStatus(0, "Tibia boosted creatures"); err != nil {
			s.log.Warn("presence update failed", logx.Err(err))
		}
	})
	s.dg.AddHandler(func(dg *discordgo.Session, i *discordgo.InteractionCreate) {
		if i.Type != discordgo.InteractionApplicationCommand {
			return
		}
		s.handleCommand(i)
	})

	if err := s.dg.Open(); err != nil {
		return fmt.Errorf("discord open: %w", err)
	}

	if err := s.registerCommands(ctx); err != nil {
		// The bot still functions on schedule without slash commands.
		s.log.Warn("slash command registration failed", logx.Err(err))
	}
	return nil
}

func (s *Service) Close() error {
	if s.dg == nil {
		return nil
	}
	return s.dg.Close()
}

func (s *Service) registerCommands(ctx context.Context) error {
	appID := ""
	if s.dg.State != nil && s.dg.State.User != nil {
		appID = s.dg.State.User.ID
	}
	if appID == "" {
		return errors.New("missing application ID (gateway not ready)")
	}
	_, err := s.dg.ApplicationCommandBulkOverwrite(
		appID,
		strings.TrimSpace(s.cfg.GuildID),
		commandDefs(),
		discordgo.WithContext(ctx),
	)
	return err
}

// SendEmbed implements transport.EmbedSender, classifying REST failures into
// the transport sentinels the controller compares against.
func (s *Service) SendEmbed(ctx context.Context, channelID string, e transport.Embed) error {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return fmt.Errorf("%w: empty channel id", transport.ErrChannelNotFound)
	}
	_, err := s.dg.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{toMessageEmbed(e)},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return classifySendErr(err)
	}
	return nil
}

// SendText implements transport.TextSender. Used by the log service's
// Discord sink.
func (s *Service) SendText(ctx context.Context, channelID string, text string) error {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" || strings.TrimSpace(text) == "" {
		return nil
	}
	_, err := s.dg.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: text,
		AllowedMentions: &discordgo.MessageAllowedMentions{
			// Log lines can quote arbitrary content; never let them ping anyone.
			Parse: []discordgo.AllowedMentionType{},
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return classifySendErr(err)
	}
	return nil
}

// CheckChannel verifies a configured channel is visible to the bot. Used at
// startup to warn about misconfiguration before the first tick fails.
func (s *Service) CheckChannel(ctx context.Context, channelID string) error {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return fmt.Errorf("%w: empty channel id", transport.ErrChannelNotFound)
	}
	if _, err := s.dg.Channel(channelID, discordgo.WithContext(ctx)); err != nil {
		return classifySendErr(err)
	}
	return nil
}

func classifySendErr(err error) error {
	var rerr *discordgo.RESTError
	if errors.As(err, &rerr) {
		if rerr.Message != nil {
			switch rerr.Message.Code {
			case discordgo.ErrCodeMissingAccess, discordgo.ErrCodeMissingPermissions:
				return fmt.Errorf("%w: %v", transport.ErrPermissionDenied, err)
			case discordgo.ErrCodeUnknownChannel:
				return fmt.Errorf("%w: %v", transport.ErrChannelNotFound, err)
			}
		}
		if rerr.Response != nil {
			switch rerr.Response.StatusCode {
			case http.StatusForbidden:
				return fmt.Errorf("%w: %v", transport.ErrPermissionDenied, err)
			case http.StatusNotFound:
				return fmt.Errorf("%w: %v", transport.ErrChannelNotFound, err)
			}
		}
	}
	return err
}

func toMessageEmbed(e transport.Embed) *discordgo.MessageEmbed {
	me := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Color,
	}
	if e.Thumbnail != "" {
		me.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: e.Thumbnail}
	}
	if e.Footer != "" {
		me.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
	}
	if !e.Timestamp.IsZero() {
		me.Timestamp = e.Timestamp.UTC().Format(time.RFC3339)
	}
	for _, f := range e.Fields {
		me.Fields = append(me.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Inline,
		})
	}
	return me
}

// safely runs interaction work on its own goroutine; a panic in one command
// must not take down the gateway session.
func (s *Service) safely(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("command handler panicked",
					logx.String("command", name),
					logx.Any("panic", r),
					logx.Stack(string(debug.Stack())),
				)
			}
		}()
		fn()
	}()
}
