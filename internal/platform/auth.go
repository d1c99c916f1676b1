package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// Bootstrap runs the device-code authorization flow and persists the
// resulting token as JSON at tokenPath. It is not part of the default
// startup path, which assumes a bearer credential is already available, but
// is kept as an opt-in helper for first-time setup.
func Bootstrap(ctx context.Context, tokenPath string) (string, error) {
	client := &http.Client{Timeout: 30 * time.Second}

	form := url.Values{
		"client_id": {ClientID},
		"scopes":    {"channel_read chat:read user_blocks_edit user_blocks_read user_follows_edit user_read"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://id.twitch.tv/oauth2/device", bytes.NewBufferString(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Client-Id", ClientID)

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("device flow start failed: %s", string(body))
	}

	var payload struct {
		DeviceCode string `json:"device_code"`
		UserCode   string `json:"user_code"`
		Interval   int    `json:"interval"`
		ExpiresIn  int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	fmt.Printf("Open https://www.twitch.tv/activate and enter code: %s (expires in %d minutes)\n", payload.UserCode, payload.ExpiresIn/60)

	tokenForm := url.Values{
		"client_id":   {ClientID},
		"device_code": {payload.DeviceCode},
		"grant_type":  {"urn:ietf:params:oauth:grant-type:device_code"},
	}
	deadline := time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Duration(payload.Interval) * time.Second):
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://id.twitch.tv/oauth2/token", bytes.NewBufferString(tokenForm.Encode()))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Client-Id", ClientID)
		resp, err := client.Do(req)
		if err != nil {
			return "", err
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			var tok struct {
				AccessToken string `json:"access_token"`
			}
			if err := json.Unmarshal(body, &tok); err != nil {
				return "", err
			}
			if tok.AccessToken == "" {
				return "", errors.New("no access token received")
			}
			if err := persistToken(tokenPath, tok.AccessToken); err != nil {
				return "", err
			}
			return tok.AccessToken, nil
		}
	}
	return "", errors.New("device code expired before authorization")
}

// LoadToken reads a previously bootstrapped token from tokenPath.
func LoadToken(tokenPath string) (string, error) {
	data, err := os.ReadFile(tokenPath)
	if err != nil {
		return "", err
	}
	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", err
	}
	if payload.AccessToken == "" {
		return "", errors.New("token file missing access_token")
	}
	return payload.AccessToken, nil
}

func persistToken(tokenPath, token string) error {
	if err := os.MkdirAll(filepath.Dir(tokenPath), 0o755); err != nil && filepath.Dir(tokenPath) != "." {
		return err
	}
	data, err := json.MarshalIndent(map[string]string{"access_token": token}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(tokenPath, data, 0o600)
}
