package paipu

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/nagabus/internal/common"
)

// Downloader fetches the raw record of a replay.
type Downloader interface {
	Download(ctx context.Context, paipuUUID string) ([]byte, error)
}

// HTTPDownloader fetches records from a mirror. URLTemplate contains "{uuid}".
type HTTPDownloader struct {
	URLTemplate string
	Client      *http.Client
	Logger      *slog.Logger
}

func NewHTTPDownloader(urlTemplate string, timeout time.Duration, logger *slog.Logger) *HTTPDownloader {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &HTTPDownloader{
		URLTemplate: urlTemplate,
		Client:      &http.Client{Timeout: timeout},
		Logger:      logger,
	}
}

func (d *HTTPDownloader) Download(ctx context.Context, paipuUUID string) ([]byte, error) {
	if !strings.Contains(d.URLTemplate, "{uuid}") {
		return nil, common.NewAppError("CONFIG_ERROR", "PAIPU_MIRROR_URL must contain {uuid}", common.ErrUnsupportedInput)
	}
	target := strings.ReplaceAll(d.URLTemplate, "{uuid}", url.PathEscape(paipuUUID))
	reqID := uuid.New().String()
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	d.Logger.Info("paipu.http.request", "req_id", reqID, "paipu_uuid", paipuUUID)
	resp, err := d.Client.Do(req)
	if err != nil {
		d.Logger.Error("paipu.http.send_error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: download paipu: %v", common.ErrTransientNetwork, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	d.Logger.Info("paipu.http.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: read paipu: %v", common.ErrTransientNetwork, err)
	}
	switch {
	case resp.StatusCode == http.StatusOK:
		return raw, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, common.NewAppError("PAIPU_NOT_FOUND", "replay "+paipuUUID+" does not exist", common.ErrNotFound)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: paipu mirror answered %d", common.ErrTransientNetwork, resp.StatusCode)
	default:
		return nil, common.InvalidInputf("paipu mirror answered %d for %s", resp.StatusCode, paipuUUID)
	}
}
