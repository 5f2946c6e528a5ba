package tibia

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	humanize "github.com/dustin/go-humanize"
	"golang.org/x/time/rate"

	logx "github.com/SoloWolfStudios/BoostBotTracker/pkg/logx"
)

const (
	DefaultBaseURL = "https://api.tibiadata.com/v4"
	DefaultWorld   = "Antica"

	defaultRetryMax    = 3
	defaultTimeout     = 30 * time.Second
	defaultBackoffBase = time.Second

	// Responses are small JSON documents; the creature index is the largest
	// at well under a megabyte.
	maxBodyBytes = 4 << 20

	userAgent = "BoostBotTracker/1.0"
)

// Config tunes the TibiaData client. The zero value is usable: every field
// has a production default.
type Config struct {
	BaseURL string
	World   string // reference world whose world-information carries the boosted creature

	RetryMax       *int          // total attempts = RetryMax+1; nil means 3
	RequestTimeout time.Duration // per-attempt HTTP timeout
	BackoffBase    time.Duration // attempt n sleeps BackoffBase<<n; defaults to 1s
	RatePerSec     int           // client-side request pacing; 0 = unlimited

	// HTTPClient overrides the built-in pooled client (tests).
	HTTPClient *http.Client

	Logger logx.Logger
}

// Client wraps TibiaData API v4. All queries share one pooled HTTP client and
// one bounded-retry policy; none of them ever returns an error value. A nil
// result is the sole failure signal, and the failure itself is logged here.
type Client struct {
	baseURL     string
	world       string
	retryMax    int
	backoffBase time.Duration

	http    *http.Client
	limiter *rate.Limiter
	log     logx.Logger
}

func New(cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	world := strings.TrimSpace(cfg.World)
	if world == "" {
		world = DefaultWorld
	}
	retryMax := defaultRetryMax
	if cfg.RetryMax != nil && *cfg.RetryMax >= 0 {
		retryMax = *cfg.RetryMax
	}
	backoffBase := cfg.BackoffBase
	if backoffBase <= 0 {
		backoffBase = defaultBackoffBase
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.RequestTimeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				// Keep pressure on the third-party API modest.
				MaxIdleConns:        10,
				MaxConnsPerHost:     5,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	var limiter *rate.Limiter
	if cfg.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	}

	return &Client{
		baseURL:     baseURL,
		world:       world,
		retryMax:    retryMax,
		backoffBase: backoffBase,
		http:        hc,
		limiter:     limiter,
		log:         cfg.Logger,
	}
}

// World returns the reference world this client observes.
func (c *Client) World() string { return c.world }

// Close releases idle pooled connections. The client stays usable afterwards.
func (c *Client) Close() {
	if t, ok := c.http.Transport.(*http.Transport); ok && t != nil {
		t.CloseIdleConnections()
	}
}

// request GETs an endpoint and decodes the 200 body into out.
//
// Retry policy (attempt counter starts at 0, total attempts = retryMax+1):
//   - 200: decode and return true. A body that fails to decode is a shape
//     mismatch, not a transient fault; it returns false without retrying.
//   - 429: sleep backoffBase<<attempt and try again. Shares the same attempt
//     counter as every other failure, so the overall budget stays bounded.
//   - any other status, timeout or transport error: if attempts remain,
//     sleep backoffBase<<attempt and try again.
//
// Exhaustion returns false. Failures are logged, never returned.
func (c *Client) request(ctx context.Context, endpoint string, out any) bool {
	url := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")

	for attempt := 0; attempt <= c.retryMax; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return false
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			c.log.Error("tibia request build failed", logx.String("url", url), logx.Err(err))
			return false
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return false
			}
			c.log.Error("tibia request error",
				logx.String("url", url),
				logx.Int("attempt", attempt+1),
				logx.Err(err),
			)
			if attempt < c.retryMax && !c.sleep(ctx, c.backoff(attempt)) {
				return false
			}
			continue
		}

		switch resp.StatusCode {
		case http.StatusOK:
			body, rerr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
			drainAndClose(resp.Body)
			if rerr != nil {
				c.log.Error("tibia response read error",
					logx.String("url", url),
					logx.Int("attempt", attempt+1),
					logx.Err(rerr),
				)
				if attempt < c.retryMax && !c.sleep(ctx, c.backoff(attempt)) {
					return false
				}
				continue
			}
			if err := json.Unmarshal(body, out); err != nil {
				// Retrying will not fix a shape mismatch.
				c.log.Error("tibia response malformed", logx.String("url", url), logx.Err(err))
				return false
			}
			return true

		case http.StatusTooManyRequests:
			drainAndClose(resp.Body)
			wait := c.backoff(attempt)
			c.log.Warn("tibia rate limited",
				logx.String("url", url),
				logx.Int("attempt", attempt+1),
				logx.Duration("wait", wait),
			)
			if !c.sleep(ctx, wait) {
				return false
			}

		default:
			drainAndClose(resp.Body)
			c.log.Error("tibia request failed",
				logx.String("url", url),
				logx.Int("status", resp.StatusCode),
				logx.Int("attempt", attempt+1),
			)
			if attempt < c.retryMax && !c.sleep(ctx, c.backoff(attempt)) {
				return false
			}
		}
	}

	c.log.Error("tibia fetch exhausted",
		logx.String("url", url),
		logx.Int("attempts", c.retryMax+1),
	)
	return false
}

func (c *Client) backoff(attempt int) time.Duration {
	if attempt > 20 {
		attempt = 20
	}
	return c.backoffBase << uint(attempt)
}

func (c *Client) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}

type apiInformation struct {
	Timestamp string `json:"timestamp"`
}

func (i apiInformation) parsed() time.Time {
	ts, err := time.Parse(time.RFC3339, strings.TrimSpace(i.Timestamp))
	if err != nil {
		return time.Time{}
	}
	return ts
}

type worldEnvelope struct {
	World struct {
		WorldInformation struct {
			BoostedCreature string `json:"boosted_creature"`
		} `json:"world_information"`
	} `json:"world"`
	Information apiInformation `json:"information"`
}

type bossesEnvelope struct {
	BoostableBosses struct {
		Boosted *struct {
			Name string `json:"name"`
		} `json:"boosted"`
	} `json:"boostable_bosses"`
	Information apiInformation `json:"information"`
}

type creatureEnvelope struct {
	Creature *EntityDetails `json:"creature"`
}

type creaturesEnvelope struct {
	Creatures *CreatureIndex `json:"creatures"`
}

// Boosted fetches the currently boosted creature (from the reference world's
// world-information) and boss (from the boostable-bosses listing). The two
// requests are independent: nil comes back only when neither slot could be
// observed, otherwise the summary is partial.
func (c *Client) Boosted(ctx context.Context) *BoostedSummary {
	var creature string
	var observedAt time.Time

	var world worldEnvelope
	if c.request(ctx, "world/"+c.world, &world) {
		creature = strings.TrimSpace(world.World.WorldInformation.BoostedCreature)
		observedAt = world.Information.parsed()
	}

	var boss string
	var bosses bossesEnvelope
	if c.request(ctx, "boostablebosses", &bosses) {
		if b := bosses.BoostableBosses.Boosted; b != nil {
			boss = strings.TrimSpace(b.Name)
		}
	}

	if creature == "" && boss == "" {
		c.log.Warn("no boosted creature or boss observed", logx.String("world", c.world))
		return nil
	}

	c.log.Info("fetched boosted data",
		logx.String("creature", creature),
		logx.String("boss", boss),
	)
	return &BoostedSummary{Creature: creature, Boss: boss, ObservedAt: observedAt}
}

// Details looks up one creature or boss record by display name. Nil for empty
// input (no request is made), for fetch failure, and for a response missing
// the creature wrapper.
func (c *Client) Details(ctx context.Context, name string) *EntityDetails {
	normalized := normalizeName(name)
	if normalized == "" {
		return nil
	}

	var env creatureEnvelope
	if !c.request(ctx, "creature/"+normalized, &env) {
		return nil
	}
	if env.Creature == nil {
		c.log.Warn("no details found", logx.String("name", name))
		return nil
	}
	return env.Creature
}

// AllCreatures fetches the full creature index. Diagnostics only.
func (c *Client) AllCreatures(ctx context.Context) *CreatureIndex {
	var env creaturesEnvelope
	if !c.request(ctx, "creatures", &env) {
		return nil
	}
	if env.Creatures == nil {
		c.log.Warn("creature index missing from response")
		return nil
	}
	return env.Creatures
}

// normalizeName turns a display name into the API's path form:
// trimmed, lowercased, spaces as underscores.
func normalizeName(name string) string {
	s := strings.TrimSpace(name)
	if s == "" {
		return ""
	}
	return strings.ToLower(strings.ReplaceAll(s, " ", "_"))
}

// FormatCount renders numeric stats with thousands separators, matching the
// embed style ("1,955"). Non-positive values are unknown to the API.
func FormatCount(v int64) string {
	if v <= 0 {
		return "Unknown"
	}
	return humanize.Comma(v)
}
