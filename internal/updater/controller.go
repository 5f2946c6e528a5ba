// Package updater owns the change-detection loop: observe the boosted pair,
// compare against the last posted values, and publish embeds for whatever
// actually changed.
package updater

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/SoloWolfStudios/BoostBotTracker/internal/render"
	"github.com/SoloWolfStudios/BoostBotTracker/internal/tibia"
	"github.com/SoloWolfStudios/BoostBotTracker/internal/transport"
	logx "github.com/SoloWolfStudios/BoostBotTracker/pkg/logx"
)

// Fetcher is the slice of the TibiaData client the controller needs.
// All methods signal failure by returning nil.
type Fetcher interface {
	Boosted(ctx context.Context) *tibia.BoostedSummary
	Details(ctx context.Context, name string) *tibia.EntityDetails
}

// Result reports what one reconcile pass did. Errors keeps user-displayable
// strings in slot order (creature first).
type Result struct {
	CreaturePosted bool
	BossPosted     bool
	Errors         []string
}

const errFetchFailed = "Failed to fetch boosted data"

type Config struct {
	CreatureChannelID string
	BossChannelID     string
	Logger            logx.Logger
}

// Controller holds the only mutable state in the bot: the last posted
// creature and boss names. Reconcile passes are serialized so a scheduled
// tick and a manual /update can never double-post one transition.
type Controller struct {
	// mu serializes the whole observe-compare-send-commit sequence and
	// guards lastPosted*.
	mu                 sync.Mutex
	lastPostedCreature string
	lastPostedBoss     string

	// depsMu guards the swappable collaborators (config hot reload). Held
	// only for field copies, never across network calls.
	depsMu            sync.RWMutex
	fetch             Fetcher
	sender            transport.EmbedSender
	creatureChannelID string
	bossChannelID     string

	log logx.Logger
}

func New(fetch Fetcher, sender transport.EmbedSender, cfg Config) *Controller {
	return &Controller{
		fetch:             fetch,
		sender:            sender,
		creatureChannelID: cfg.CreatureChannelID,
		bossChannelID:     cfg.BossChannelID,
		log:               cfg.Logger,
	}
}

// SetFetcher swaps the API client (used when the tibia config section changes).
func (c *Controller) SetFetcher(f Fetcher) {
	if f == nil {
		return
	}
	c.depsMu.Lock()
	c.fetch = f
	c.depsMu.Unlock()
}

// SetChannels swaps the target channels. Last-posted state is kept, so
// retargeting does not cause a spurious repost.
func (c *Controller) SetChannels(creatureID, bossID string) {
	c.depsMu.Lock()
	c.creatureChannelID = creatureID
	c.bossChannelID = bossID
	c.depsMu.Unlock()
}

func (c *Controller) deps() (Fetcher, transport.EmbedSender, string, string) {
	c.depsMu.RLock()
	defer c.depsMu.RUnlock()
	return c.fetch, c.sender, c.creatureChannelID, c.bossChannelID
}

// Reconcile performs one full pass: fetch the boosted summary, then for each
// slot post a notification iff the observed value is present and either force
// is set or it differs from the last posted value. The last-posted value is
// committed only after a successful send, so failed sends retry next tick.
//
// Safe to call from concurrent triggers; passes run one at a time.
func (c *Controller) Reconcile(ctx context.Context, force bool) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	fetch, sender, creatureCh, bossCh := c.deps()

	var res Result
	summary := fetch.Boosted(ctx)
	if summary == nil {
		c.log.Warn("reconcile aborted: boosted summary unavailable")
		res.Errors = append(res.Errors, errFetchFailed)
		return res
	}

	if summary.HasCreature() && (force || summary.Creature != c.lastPostedCreature) {
		if creatureCh == "" {
			c.log.Warn("creature channel not configured; skipping post",
				logx.String("name", summary.Creature))
		} else if errStr := c.post(ctx, fetch, sender, creatureCh, summary.Creature, summary, render.CreatureNotice); errStr != "" {
			res.Errors = append(res.Errors, errStr)
		} else {
			c.lastPostedCreature = summary.Creature
			res.CreaturePosted = true
			c.log.Info("posted boosted creature update", logx.String("name", summary.Creature))
		}
	}

	if summary.HasBoss() && (force || summary.Boss != c.lastPostedBoss) {
		if bossCh == "" {
			c.log.Warn("boss channel not configured; skipping post",
				logx.String("name", summary.Boss))
		} else if errStr := c.post(ctx, fetch, sender, bossCh, summary.Boss, summary, render.BossNotice); errStr != "" {
			res.Errors = append(res.Errors, errStr)
		} else {
			c.lastPostedBoss = summary.Boss
			res.BossPosted = true
			c.log.Info("posted boosted boss update", logx.String("name", summary.Boss))
		}
	}

	return res
}

type renderFunc func(name string, details *tibia.EntityDetails, summary *tibia.BoostedSummary) transport.Embed

// post fetches details (absence tolerated), renders and sends one notice.
// Returns a user-displayable error string, or "" on success.
func (c *Controller) post(
	ctx context.Context,
	fetch Fetcher,
	sender transport.EmbedSender,
	channelID, name string,
	summary *tibia.BoostedSummary,
	renderNotice renderFunc,
) string {
	details := fetch.Details(ctx, name)
	if details == nil {
		c.log.Warn("posting without details", logx.String("name", name))
	}

	embed := renderNotice(name, details, summary)
	if err := sender.SendEmbed(ctx, channelID, embed); err != nil {
		c.log.Error("notification send failed",
			logx.String("name", name),
			logx.String("channel_id", channelID),
			logx.Err(err),
		)
		return sendErrorString(name, err)
	}
	return ""
}

func sendErrorString(name string, err error) string {
	switch {
	case errors.Is(err, transport.ErrPermissionDenied):
		return fmt.Sprintf("No permission to post the %s update", name)
	case errors.Is(err, transport.ErrChannelNotFound):
		return fmt.Sprintf("Could not find the channel for the %s update", name)
	default:
		return fmt.Sprintf("Failed to send %s update: %v", name, err)
	}
}

// Status returns a fresh observation without touching controller state.
// It does not take the reconcile lock, so a slow tick cannot stall it.
func (c *Controller) Status(ctx context.Context) *tibia.BoostedSummary {
	c.depsMu.RLock()
	fetch := c.fetch
	c.depsMu.RUnlock()
	return fetch.Boosted(ctx)
}
