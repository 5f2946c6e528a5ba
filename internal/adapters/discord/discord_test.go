package discord

import (
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/SoloWolfStudios/BoostBotTracker/internal/transport"
	"github.com/SoloWolfStudios/BoostBotTracker/internal/updater"
)

func TestUpdateResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		res  updater.Result
		want string
	}{
		{
			name: "both posted",
			res:  updater.Result{CreaturePosted: true, BossPosted: true},
			want: "✅ Boosted creature updated\n✅ Boosted boss updated",
		},
		{
			name: "nothing to do",
			res:  updater.Result{},
			want: "⚠️ No creature update needed\n⚠️ No boss update needed",
		},
		{
			name: "creature only",
			res:  updater.Result{CreaturePosted: true},
			want: "✅ Boosted creature updated\n⚠️ No boss update needed",
		},
		{
			name: "errors appended last",
			res: updater.Result{
				BossPosted: true,
				Errors:     []string{"Failed to fetch boosted data"},
			},
			want: "⚠️ No creature update needed\n✅ Boosted boss updated\n❌ Failed to fetch boosted data",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := UpdateResponse(tt.res); got != tt.want {
				t.Fatalf("UpdateResponse() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestToMessageEmbed(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, time.March, 4, 10, 0, 0, 0, time.UTC)
	e := transport.Embed{
		Title:       "Boosted Creature",
		Description: "Today: Dragon Lord",
		Color:       0x00ff88,
		Thumbnail:   "https://example.test/dragon_lord.gif",
		Footer:      "Data from TibiaData API",
		Timestamp:   ts,
		Fields: []transport.Field{
			{Name: "Hitpoints", Value: "1,900", Inline: true},
			{Name: "Loot", Value: "gold coin", Inline: false},
		},
	}

	me := toMessageEmbed(e)
	if me.Title != e.Title || me.Description != e.Description || me.Color != e.Color {
		t.Fatalf("toMessageEmbed() basics = %q/%q/%#x, want %q/%q/%#x",
			me.Title, me.Description, me.Color, e.Title, e.Description, e.Color)
	}
	if me.Thumbnail == nil || me.Thumbnail.URL != e.Thumbnail {
		t.Fatalf("toMessageEmbed() thumbnail = %+v, want URL %q", me.Thumbnail, e.Thumbnail)
	}
	if me.Footer == nil || me.Footer.Text != e.Footer {
		t.Fatalf("toMessageEmbed() footer = %+v, want %q", me.Footer, e.Footer)
	}
	if me.Timestamp != "2026-03-04T10:00:00Z" {
		t.Fatalf("toMessageEmbed() timestamp = %q, want %q", me.Timestamp, "2026-03-04T10:00:00Z")
	}
	if len(me.Fields) != 2 {
		t.Fatalf("toMessageEmbed() fields = %d, want 2", len(me.Fields))
	}
	if me.Fields[0].Name != "Hitpoints" || !me.Fields[0].Inline {
		t.Fatalf("toMessageEmbed() field[0] = %+v, want inline Hitpoints", me.Fields[0])
	}
	if me.Fields[1].Inline {
		t.Fatalf("toMessageEmbed() field[1] inline = true, want false")
	}
}

func TestToMessageEmbedOmitsEmptyParts(t *testing.T) {
	t.Parallel()

	me := toMessageEmbed(transport.Embed{Title: "bare"})
	if me.Thumbnail != nil || me.Footer != nil {
		t.Fatalf("toMessageEmbed() thumbnail/footer = %+v/%+v, want nil/nil", me.Thumbnail, me.Footer)
	}
	if me.Timestamp != "" {
		t.Fatalf("toMessageEmbed() timestamp = %q, want empty", me.Timestamp)
	}
	if len(me.Fields) != 0 {
		t.Fatalf("toMessageEmbed() fields = %d, want 0", len(me.Fields))
	}
}

func TestClassifySendErr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error // sentinel the result must match, nil = passthrough
	}{
		{
			name: "missing access code",
			err:  &discordgo.RESTError{Message: &discordgo.APIErrorMessage{Code: discordgo.ErrCodeMissingAccess}},
			want: transport.ErrPermissionDenied,
		},
		{
			name: "missing permissions code",
			err:  &discordgo.RESTError{Message: &discordgo.APIErrorMessage{Code: discordgo.ErrCodeMissingPermissions}},
			want: transport.ErrPermissionDenied,
		},
		{
			name: "unknown channel code",
			err:  &discordgo.RESTError{Message: &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownChannel}},
			want: transport.ErrChannelNotFound,
		},
		{
			name: "forbidden status without api code",
			err:  &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusForbidden}},
			want: transport.ErrPermissionDenied,
		},
		{
			name: "not found status without api code",
			err:  &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusNotFound}},
			want: transport.ErrChannelNotFound,
		},
		{
			name: "unrelated rest error",
			err:  &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusInternalServerError}},
		},
		{
			name: "plain error",
			err:  errors.New("connection reset"),
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := classifySendErr(tt.err)
			if tt.want == nil {
				if !errors.Is(got, tt.err) && got.Error() != tt.err.Error() {
					t.Fatalf("classifySendErr() = %v, want passthrough of %v", got, tt.err)
				}
				if errors.Is(got, transport.ErrPermissionDenied) || errors.Is(got, transport.ErrChannelNotFound) {
					t.Fatalf("classifySendErr() = %v, want no sentinel", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Fatalf("classifySendErr() = %v, want errors.Is %v", got, tt.want)
			}
			if !strings.Contains(got.Error(), tt.want.Error()) {
				t.Fatalf("classifySendErr() message %q missing %q", got.Error(), tt.want.Error())
			}
		})
	}
}
