package dispatcher

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"

	"go-theoprotect/internal/logging"
)

// FastBanExecutor issues bans and kicks straight over HTTP, bypassing
// the session library's queueing. Used by the nuke response path where
// every millisecond of delay is another deleted channel.
type FastBanExecutor struct {
	httpPool    *HTTPPool
	rateLimiter *RateLimitMonitor
	token       string
	baseURL     string
}

func NewFastBanExecutor(httpPool *HTTPPool, rateLimiter *RateLimitMonitor, token, baseURL string) *FastBanExecutor {
	if baseURL == "" {
		baseURL = "https://discord.com/api/v10"
	}
	return &FastBanExecutor{
		httpPool:    httpPool,
		rateLimiter: rateLimiter,
		token:       token,
		baseURL:     baseURL,
	}
}

// ExecuteBan bans the user and returns the wall time the call took in
// microseconds.
func (fbe *FastBanExecutor) ExecuteBan(guildID, userID, reason string, purgeSeconds int) (int64, error) {
	start := time.Now()

	if !fbe.rateLimiter.CanExecute("ban", guildID) {
		return 0, fmt.Errorf("rate limited")
	}

	body, _ := json.Marshal(map[string]interface{}{
		"delete_message_seconds": purgeSeconds,
	})

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(fmt.Sprintf("%s/guilds/%s/bans/%s", fbe.baseURL, guildID, userID))
	req.Header.SetMethod(fasthttp.MethodPut)
	req.Header.Set("Authorization", "Bot "+fbe.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Audit-Log-Reason", reason)
	req.SetBody(body)

	if err := fbe.httpPool.GetClient().DoTimeout(req, resp, 2*time.Second); err != nil {
		return 0, err
	}
	fbe.rateLimiter.UpdateFromResponse(resp, "ban", guildID)

	elapsed := time.Since(start).Microseconds()
	status := resp.StatusCode()
	if status >= 200 && status < 300 {
		logging.Info("fast ban: user %s in guild %s (%d us, status %d)", userID, guildID, elapsed, status)
		return elapsed, nil
	}
	logging.Error("fast ban failed: user %s in guild %s (status %d)", userID, guildID, status)
	return 0, fmt.Errorf("ban failed: %d", status)
}

func (fbe *FastBanExecutor) ExecuteKick(guildID, userID, reason string) error {
	if !fbe.rateLimiter.CanExecute("kick", guildID) {
		return fmt.Errorf("rate limited")
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(fmt.Sprintf("%s/guilds/%s/members/%s", fbe.baseURL, guildID, userID))
	req.Header.SetMethod(fasthttp.MethodDelete)
	req.Header.Set("Authorization", "Bot "+fbe.token)
	req.Header.Set("X-Audit-Log-Reason", reason)

	if err := fbe.httpPool.GetClient().DoTimeout(req, resp, 2*time.Second); err != nil {
		return err
	}
	fbe.rateLimiter.UpdateFromResponse(resp, "kick", guildID)

	if status := resp.StatusCode(); status < 200 || status >= 300 {
		return fmt.Errorf("kick failed: %d", status)
	}
	return nil
}
