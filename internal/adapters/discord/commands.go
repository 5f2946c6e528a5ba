package discord

import (
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/SoloWolfStudios/BoostBotTracker/internal/render"
	"github.com/SoloWolfStudios/BoostBotTracker/internal/transport"
	"github.com/SoloWolfStudios/BoostBotTracker/internal/updater"
	logx "github.com/SoloWolfStudios/BoostBotTracker/pkg/logx"
)

const (
	cmdUpdate = "update"
	cmdStatus = "status"
)

func commandDefs() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        cmdUpdate,
			Description: "Force update boosted creature and boss posts",
		},
		{
			Name:        cmdStatus,
			Description: "Check current boosted creature and boss",
		},
	}
}

func (s *Service) handleCommand(i *discordgo.InteractionCreate) {
	if g := strings.TrimSpace(s.cfg.GuildID); g != "" && i.GuildID != "" && i.GuildID != g {
		return
	}
	name := i.ApplicationCommandData().Name
	s.log.Info("slash command received", logx.String("command", name))

	switch name {
	case cmdUpdate:
		s.runUpdate(i)
	case cmdStatus:
		s.runStatus(i)
	default:
		s.log.Debug("unhandled command", logx.String("command", name))
	}
}

// runUpdate forces a reconcile pass. The fetch can take a while under retry,
// so the interaction is deferred and answered from a worker goroutine.
func (s *Service) runUpdate(i *discordgo.InteractionCreate) {
	if s.ctrl == nil {
		s.log.Error("update command received before controller was wired")
		return
	}
	if err := s.deferEphemeral(i); err != nil {
		s.log.Warn("interaction defer failed", logx.Err(err))
		return
	}
	s.safely(cmdUpdate, func() {
		res := s.ctrl.Reconcile(s.runCtx, true)
		s.followupText(i, UpdateResponse(res))
	})
}

func (s *Service) runStatus(i *discordgo.InteractionCreate) {
	if s.ctrl == nil {
		s.log.Error("status command received before controller was wired")
		return
	}
	if err := s.deferEphemeral(i); err != nil {
		s.log.Warn("interaction defer failed", logx.Err(err))
		return
	}
	s.safely(cmdStatus, func() {
		summary := s.ctrl.Status(s.runCtx)
		if summary == nil {
			s.followupText(i, "❌ Failed to fetch boosted data")
			return
		}
		s.followupEmbed(i, render.StatusEmbed(summary, time.Now(), s.location()))
	})
}

// UpdateResponse renders a Reconcile result into the reply for /update, one
// line per slot plus one per error.
func UpdateResponse(res updater.Result) string {
	lines := make([]string, 0, 2+len(res.Errors))
	if res.CreaturePosted {
		lines = append(lines, "✅ Boosted creature updated")
	} else {
		lines = append(lines, "⚠️ No creature update needed")
	}
	if res.BossPosted {
		lines = append(lines, "✅ Boosted boss updated")
	} else {
		lines = append(lines, "⚠️ No boss update needed")
	}
	for _, msg := range res.Errors {
		lines = append(lines, "❌ "+msg)
	}
	return strings.Join(lines, "\n")
}

func (s *Service) deferEphemeral(i *discordgo.InteractionCreate) error {
	return s.dg.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})
}

func (s *Service) followupText(i *discordgo.InteractionCreate, msg string) {
	_, err := s.dg.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: msg,
		Flags:   discordgo.MessageFlagsEphemeral,
	})
	if err != nil {
		s.log.Warn("interaction followup failed", logx.Err(err))
	}
}

func (s *Service) followupEmbed(i *discordgo.InteractionCreate, e transport.Embed) {
	_, err := s.dg.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{toMessageEmbed(e)},
		Flags:  discordgo.MessageFlagsEphemeral,
	})
	if err != nil {
		s.log.Warn("interaction followup failed", logx.Err(err))
	}
}
