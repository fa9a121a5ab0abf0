package config

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// RunDDNSLoop issues an idempotent GET to the configured ddns_url
// every interval, until ctx is cancelled. It never blocks other
// components on the outcome: failures are logged and the loop continues.
func RunDDNSLoop(ctx context.Context, mgr *Manager, logger *logrus.Logger, interval time.Duration) {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	client := &http.Client{Timeout: 30 * time.Second}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			settings, _ := mgr.Current()
			if settings.DdnsURL == "" {
				continue
			}
			pingDDNS(ctx, client, settings.DdnsURL, logger)
		}
	}
}

func pingDDNS(ctx context.Context, client *http.Client, url string, logger *logrus.Logger) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		logger.WithError(err).WithField("ddns_url", url).Warn("could not build ddns request")
		return
	}
	resp, err := client.Do(req)
	if err != nil {
		logger.WithError(err).WithField("ddns_url", url).Warn("ddns update request failed")
		return
	}
	defer resp.Body.Close()
	logger.WithFields(logrus.Fields{
		"ddns_url": url,
		"status":   resp.StatusCode,
	}).Debug("ddns update sent")
}
