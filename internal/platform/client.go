// Package platform is the GraphQL + pub/sub-adjacent HTTP client for the
// streaming platform: persisted-query POSTs, channel lookup, stream status,
// spade URL scraping, minute-watched beacons, and bonus claims, all paced
// through a shared rate limiter.
package platform

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

var ErrStreamerOffline = errors.New("streamer offline")

type Client struct {
	token     string
	deviceID  string
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter

	settingsRegex *regexp.Regexp
	spadeRegex    *regexp.Regexp
}

// New constructs a Client for an already-authenticated bearer token.
func New(token string) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		token:     token,
		deviceID:  randomString(32),
		userAgent: defaultUserAgent,
		client:    &http.Client{Jar: jar, Timeout: 20 * time.Second},
		limiter:   rate.NewLimiter(rate.Limit(5), 10),
		settingsRegex: regexp.MustCompile(`(https://static\.twitchcdn\.net/config/settings.*?\.js|https://assets\.twitch\.tv/config/settings.*?\.js)`),
		spadeRegex:    regexp.MustCompile(`"spade_url":"(.*?)"`),
	}
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// PostGQL issues one persisted-query operation after clearing the shared
// rate limiter.
func (c *Client) PostGQL(ctx context.Context, op Operation) (map[string]interface{}, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	body, err := json.Marshal(op)
	if err != nil {
		return nil, fmt.Errorf("encode gql payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, GQLURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "OAuth "+c.token)
	req.Header.Set("Client-Id", ClientID)
	req.Header.Set("X-Device-Id", c.deviceID)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gql request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("gql transient error: %s", resp.Status)
	}
	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode gql response: %w", err)
	}
	return result, nil
}

func (c *Client) GetChannelID(ctx context.Context, login string) (string, error) {
	op := Operations.GetIDFromLogin.WithVariables(map[string]interface{}{"login": strings.ToLower(login)})
	resp, err := c.PostGQL(ctx, op)
	if err != nil {
		return "", err
	}
	id, _ := navigate(resp, "data.user.id").(string)
	if id == "" {
		return "", fmt.Errorf("user %s not found", login)
	}
	return id, nil
}

// StreamStatus reports liveness and the current broadcast id for
// channelLogin, backing LivePoller's poll cycle. An offline channel yields
// live=false with a nil error.
func (c *Client) StreamStatus(ctx context.Context, channelLogin string) (live bool, broadcastID string, err error) {
	op := Operations.StreamMetadata.WithVariables(map[string]interface{}{"channel": strings.ToLower(channelLogin)})
	resp, err := c.PostGQL(ctx, op)
	if err != nil {
		return false, "", err
	}
	stream := navigate(resp, "data.user.stream")
	if stream == nil {
		return false, "", nil
	}
	id, _ := navigate(stream, "id").(string)
	return true, id, nil
}

// ChannelPointsBalance fetches the current point balance and an available
// claim id, if any, for BonusClaimer's batched refresh.
func (c *Client) ChannelPointsBalance(ctx context.Context, channelLogin string) (points int64, claimID string, err error) {
	op := Operations.ChannelPointsContext.WithVariables(map[string]interface{}{"channelLogin": channelLogin})
	resp, err := c.PostGQL(ctx, op)
	if err != nil {
		return 0, "", err
	}
	self := navigate(resp, "data.community.channel.self.communityPoints")
	selfMap, ok := self.(map[string]interface{})
	if !ok {
		return 0, "", fmt.Errorf("channel points missing for %s", channelLogin)
	}
	points = int64(fromFloat(selfMap["balance"]))
	if claim, ok := selfMap["availableClaim"].(map[string]interface{}); ok {
		claimID, _ = claim["id"].(string)
	}
	return points, claimID, nil
}

// ClaimBonus redeems the community-points bonus claim.
func (c *Client) ClaimBonus(ctx context.Context, channelID, claimID string) error {
	op := Operations.ClaimCommunityPoints.WithVariables(map[string]interface{}{
		"input": map[string]interface{}{"channelID": channelID, "claimID": claimID},
	})
	_, err := c.PostGQL(ctx, op)
	return err
}

// MakePrediction places a bet of points on outcomeID within eventID.
func (c *Client) MakePrediction(ctx context.Context, eventID, outcomeID string, points int64) error {
	op := Operations.MakePrediction.WithVariables(map[string]interface{}{
		"input": map[string]interface{}{
			"eventID":    eventID,
			"outcomeID":  outcomeID,
			"points":     points,
			"transactionID": randomString(36),
		},
	})
	resp, err := c.PostGQL(ctx, op)
	if err != nil {
		return err
	}
	if errs := navigate(resp, "errors"); errs != nil {
		return fmt.Errorf("make prediction rejected: %v", errs)
	}
	return nil
}

// JoinRaid follows a raid target. No component in the module calls it; a
// StreamerConfig's FollowRaid flag is not acted on.
func (c *Client) JoinRaid(ctx context.Context, raidID string) error {
	op := Operations.JoinRaid.WithVariables(map[string]interface{}{
		"input": map[string]interface{}{"raidID": raidID},
	})
	_, err := c.PostGQL(ctx, op)
	return err
}

// SpadeURL scrapes the ephemeral telemetry-ingest endpoint for a channel
// login by parsing it out of the channel's settings script.
func (c *Client) SpadeURL(ctx context.Context, channelLogin string) (string, error) {
	pageURL := TwitchURL + "/" + channelLogin
	body, err := c.getBody(ctx, pageURL)
	if err != nil {
		return "", err
	}
	match := c.settingsRegex.FindStringSubmatch(string(body))
	if len(match) < 2 {
		return "", errors.New("settings script not found")
	}
	settingsBody, err := c.getBody(ctx, match[1])
	if err != nil {
		return "", err
	}
	spade := c.spadeRegex.FindStringSubmatch(string(settingsBody))
	if len(spade) < 2 {
		return "", errors.New("spade url not found")
	}
	return spade[1], nil
}

func (c *Client) getBody(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// SendMinuteWatched posts the base64 "minute-watched" telemetry payload to
// spadeURL, the WatchLoop viewership heartbeat.
func (c *Client) SendMinuteWatched(ctx context.Context, spadeURL, base64Payload string) error {
	form := url.Values{}
	form.Set("data", base64Payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, spadeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("minute watched failed: %d %s", resp.StatusCode, string(body))
	}
	return nil
}

func randomString(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	buf := make([]byte, length)
	for i := range buf {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		buf[i] = charset[n.Int64()]
	}
	return string(buf)
}

func fromFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	default:
		return 0
	}
}

func navigate(data interface{}, path string) interface{} {
	if data == nil {
		return nil
	}
	current := data
	for _, p := range strings.Split(path, ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		current = m[p]
		if current == nil {
			return nil
		}
	}
	return current
}
