// Package render turns boosted-entity observations into channel-ready embeds.
// Everything here is a pure function of its inputs; callers own the clock and
// the transport.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/hako/durafmt"

	"github.com/SoloWolfStudios/BoostBotTracker/internal/tibia"
	"github.com/SoloWolfStudios/BoostBotTracker/internal/transport"
)

const (
	creatureColor = 0x00ff88
	bossColor     = 0xff4444
	statusColor   = 0x00ff88

	footerText = "Data from TibiaData API"

	// Server save, when the boosted pair rolls over.
	resetHour = 10
)

// CreatureNotice builds the boosted-creature announcement. details may be nil
// (lookup failed); the notice then carries the name and image only.
func CreatureNotice(name string, details *tibia.EntityDetails, summary *tibia.BoostedSummary) transport.Embed {
	e := transport.Embed{
		Title:       "🦎 Boosted Creature: " + name,
		Description: "Today's boosted creature! Double experience and double loot.",
		Color:       creatureColor,
		Thumbnail:   WikiImageURL(name),
		Footer:      footerText,
	}
	if summary != nil {
		e.Timestamp = summary.ObservedAt
	}
	appendDetails(&e, details)
	return e
}

// BossNotice builds the boosted-boss announcement.
func BossNotice(name string, details *tibia.EntityDetails, summary *tibia.BoostedSummary) transport.Embed {
	e := transport.Embed{
		Title:       "👹 Boosted Boss: " + name,
		Description: "Today's boosted boss! Double loot and a boosted spawn.",
		Color:       bossColor,
		Thumbnail:   WikiImageURL(name),
		Footer:      footerText,
	}
	if summary != nil {
		e.Timestamp = summary.ObservedAt
	}
	appendDetails(&e, details)
	return e
}

func appendDetails(e *transport.Embed, details *tibia.EntityDetails) {
	if details == nil {
		return
	}
	if d := strings.TrimSpace(details.Description); d != "" {
		e.Description += "\n\n" + d
	}
	e.Fields = append(e.Fields,
		transport.Field{Name: "❤️ Hit Points", Value: tibia.FormatCount(details.Hitpoints), Inline: true},
		transport.Field{Name: "⭐ Experience", Value: tibia.FormatCount(details.Experience), Inline: true},
	)
	if details.Race != "" {
		e.Fields = append(e.Fields,
			transport.Field{Name: "🧬 Race", Value: details.Race, Inline: true},
		)
	}
}

// StatusEmbed builds the read-only status reply. Absent slots render as
// "Unknown". loc is the game-server timezone used for the reset countdown.
func StatusEmbed(summary *tibia.BoostedSummary, now time.Time, loc *time.Location) transport.Embed {
	creature, boss := "Unknown", "Unknown"
	if summary.HasCreature() {
		creature = summary.Creature
	}
	if summary.HasBoss() {
		boss = summary.Boss
	}

	return transport.Embed{
		Title:     "📊 Current Boosted Status",
		Color:     statusColor,
		Timestamp: now.UTC(),
		Fields: []transport.Field{
			{Name: "🦎 Boosted Creature", Value: creature, Inline: true},
			{Name: "👹 Boosted Boss", Value: boss, Inline: true},
			{Name: "⏰ Next Reset", Value: resetLine(now, loc), Inline: false},
		},
		Footer: footerText,
	}
}

func resetLine(now time.Time, loc *time.Location) string {
	until := NextReset(now, loc).Sub(now)
	human := durafmt.Parse(until.Round(time.Minute)).LimitFirstN(2).String()
	return fmt.Sprintf("Daily at 10:00 CEST (in %s)", human)
}

// NextReset returns the next daily server save after now in loc.
func NextReset(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), resetHour, 0, 0, 0, loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// WikiImageURL points at TibiaWiki's image redirect for an entity. Unlike the
// API path form, the wiki keeps the original capitalization.
func WikiImageURL(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return "https://tibia.fandom.com/wiki/Special:Redirect/file/" + strings.ReplaceAll(name, " ", "_") + ".gif"
}
