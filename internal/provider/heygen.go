package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ignite/outreach-orchestrator/internal/config"
	"github.com/ignite/outreach-orchestrator/internal/domain"
	"github.com/ignite/outreach-orchestrator/internal/events"
)

var allowedVideoExtensions = map[string]bool{
	".mp4":  true,
	".webm": true,
	".mov":  true,
}

// HeyGen generates personalized avatar videos. Generation is asynchronous;
// completion arrives via webhook or GetVideoStatus polling.
type HeyGen struct {
	cfg      config.VideoConfig
	client   *apiClient
	download *http.Client
}

// NewHeyGen builds a HeyGen video provider from config.
func NewHeyGen(cfg config.VideoConfig) *HeyGen {
	auth := func(req *http.Request) {
		req.Header.Set("X-Api-Key", cfg.APIKey)
	}
	return &HeyGen{
		cfg:      cfg,
		client:   newAPIClient("heygen", cfg.BaseURL, cfg.Timeout(), auth),
		download: &http.Client{Timeout: 5 * time.Minute},
	}
}

// ValidateConfig checks credentials and the download sandbox settings.
func (h *HeyGen) ValidateConfig() error {
	if h.cfg.APIKey == "" {
		return NewConfigError("heygen", "HEYGEN_API_KEY is not set")
	}
	if h.cfg.DownloadDir == "" {
		return NewConfigError("heygen", "download directory is not set")
	}
	if len(h.cfg.AllowedDomains) == 0 {
		return NewConfigError("heygen", "allowed domain list is empty")
	}
	return nil
}

type heygenGenerateResponse struct {
	Data struct {
		VideoID string `json:"video_id"`
	} `json:"data"`
}

// GenerateVideo submits a generation job. CallbackID round-trips through the
// provider and comes back in the completion webhook.
func (h *HeyGen) GenerateVideo(ctx context.Context, req *VideoRequest) (*VideoJob, error) {
	if strings.TrimSpace(req.Script) == "" {
		return nil, NewValidationError("heygen", "video script is empty")
	}
	body := map[string]interface{}{
		"video_inputs": []map[string]interface{}{
			{
				"character": map[string]string{"type": "avatar", "avatar_id": req.AvatarID},
				"voice":     map[string]string{"type": "text", "input_text": req.Script},
			},
		},
		"callback_id": req.CallbackID,
	}
	var resp heygenGenerateResponse
	if err := h.client.doJSON(ctx, http.MethodPost, "/video/generate", body, &resp); err != nil {
		return nil, err
	}
	return &VideoJob{VideoID: resp.Data.VideoID, CallbackID: req.CallbackID}, nil
}

type heygenStatusResponse struct {
	Data struct {
		Status   string `json:"status"`
		VideoURL string `json:"video_url"`
		Error    string `json:"error"`
	} `json:"data"`
}

// GetVideoStatus polls one generation job.
func (h *HeyGen) GetVideoStatus(ctx context.Context, videoID string) (*VideoStatus, error) {
	var resp heygenStatusResponse
	path := "/video_status.get?video_id=" + url.QueryEscape(videoID)
	if err := h.client.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &VideoStatus{
		VideoID:  videoID,
		Status:   resp.Data.Status,
		VideoURL: resp.Data.VideoURL,
		Error:    resp.Data.Error,
	}, nil
}

// DownloadVideo fetches a finished video into the download directory and
// returns the local path. The URL must be HTTPS on an allow-listed host;
// destName must carry a video extension and resolve inside the directory.
func (h *HeyGen) DownloadVideo(ctx context.Context, videoURL, destName string) (string, error) {
	dest, err := h.validateDownload(videoURL, destName)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return "", fmt.Errorf("build download request: %w", err)
	}
	resp, err := h.download.Do(req)
	if err != nil {
		return "", fmt.Errorf("download video: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", NewAPIError("heygen", "video download failed", resp.StatusCode, "")
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}
	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create video file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("write video file: %w", err)
	}
	return dest, nil
}

// validateDownload enforces the download sandbox: HTTPS, allow-listed host,
// video extension, and a destination that cannot escape the download dir.
func (h *HeyGen) validateDownload(videoURL, destName string) (string, error) {
	u, err := url.Parse(videoURL)
	if err != nil {
		return "", NewValidationError("heygen", "video URL is not parseable")
	}
	if u.Scheme != "https" {
		return "", NewValidationError("heygen", "video URL must use https")
	}
	host := strings.ToLower(u.Hostname())
	allowed := false
	for _, d := range h.cfg.AllowedDomains {
		if host == strings.ToLower(d) {
			allowed = true
			break
		}
	}
	if !allowed {
		return "", NewValidationError("heygen", fmt.Sprintf("host %q is not in the allowed domain list", host))
	}

	ext := strings.ToLower(filepath.Ext(destName))
	if !allowedVideoExtensions[ext] {
		return "", NewValidationError("heygen", fmt.Sprintf("extension %q is not an allowed video extension", ext))
	}
	// Join would silently re-root an absolute name inside the download dir.
	if filepath.IsAbs(destName) {
		return "", NewValidationError("heygen", "destination must be a relative path")
	}

	baseDir, err := filepath.Abs(h.cfg.DownloadDir)
	if err != nil {
		return "", fmt.Errorf("resolve download dir: %w", err)
	}
	dest := filepath.Join(baseDir, filepath.Clean(destName))
	if dest != baseDir && !strings.HasPrefix(dest, baseDir+string(filepath.Separator)) {
		return "", NewValidationError("heygen", "destination escapes the download directory")
	}
	return dest, nil
}

// GetCapabilities reports HeyGen's envelope, including generation timing
// hints callers use to size polling loops.
func (h *HeyGen) GetCapabilities() Capabilities {
	return Capabilities{
		Provider:          "heygen",
		Channels:          []domain.Channel{domain.ChannelVideo},
		BatchLimit:        10,
		SupportsWebhooks:  true,
		MaxGenerationTime: 10 * time.Minute,
		PollingInterval:   15 * time.Second,
	}
}

// HealthCheck verifies connectivity and credentials with a cheap read.
func (h *HeyGen) HealthCheck(ctx context.Context) error {
	return h.client.doJSON(ctx, http.MethodGet, "/user/remaining_quota", nil, nil)
}

// VerifyWebhookSignature checks the HMAC over the raw webhook body.
func (h *HeyGen) VerifyWebhookSignature(rawBody []byte, signature string) error {
	if err := events.VerifySignature(rawBody, signature, h.cfg.WebhookSecret); err != nil {
		return NewWebhookVerificationError("heygen", err.Error())
	}
	return nil
}
