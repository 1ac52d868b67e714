package webhook

import (
	"fmt"
	"net/http"

	"github.com/docker/go-units"

	"github.com/mozilla/appservices-decision/internal/config"
)

// DefaultMaxBodySize applies when max_body_size is empty.
const DefaultMaxBodySize = 1 << 20

// Config holds the resolved webhook endpoint settings.
type Config struct {
	Path            string
	Secret          string
	SignatureHeader string
	MaxBodySize     int64
}

// FromConfig resolves the webhook section of the configuration.
func FromConfig(wc config.WebhookConfig) (Config, error) {
	if wc.Secret == "" {
		return Config{}, fmt.Errorf("webhook endpoint %q: no secret configured", wc.Path)
	}

	maxBodySize, err := parseMaxBodySize(wc.MaxBodySize)
	if err != nil {
		return Config{}, fmt.Errorf("webhook endpoint %q: invalid max_body_size %q: %w", wc.Path, wc.MaxBodySize, err)
	}

	header := wc.SignatureHeader
	if header == "" {
		header = "X-Hub-Signature-256"
	}

	return Config{
		Path:            wc.Path,
		Secret:          wc.Secret,
		SignatureHeader: http.CanonicalHeaderKey(header),
		MaxBodySize:     maxBodySize,
	}, nil
}

// parseMaxBodySize accepts sizes like "1MB", "512KiB" or a plain byte count.
func parseMaxBodySize(size string) (int64, error) {
	if size == "" {
		return DefaultMaxBodySize, nil
	}
	n, err := units.RAMInBytes(size)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("size must be positive")
	}
	return n, nil
}
