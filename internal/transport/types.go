package transport

import (
	"context"
	"errors"
	"time"
)

// Embed is a platform-neutral rich notification payload. The Discord
// adapter converts it to a native embed; nothing outside the adapter
// imports discordgo types.
type Embed struct {
	Title       string
	Description string
	Color       int
	Fields      []Field
	Thumbnail   string // image URL, empty = none
	Footer      string
	Timestamp   time.Time // zero = omit
}

type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Send failures the update controller cares about. Adapters wrap the
// platform error so callers can classify with errors.Is while keeping the
// underlying detail in the chain.
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrChannelNotFound  = errors.New("channel not found")
)

// EmbedSender delivers a rich notification to a channel resolved by ID.
type EmbedSender interface {
	SendEmbed(ctx context.Context, channelID string, e Embed) error
}

// TextSender delivers a plain text message to a channel resolved by ID.
// Used by the logx Discord sink.
type TextSender interface {
	SendText(ctx context.Context, channelID string, text string) error
}
