package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/csvflow/csvflow/internal/core"
)

// Signature and event type headers attached to every delivery.
const (
	HeaderSignature = "X-Csvflow-Signature"
	HeaderEvent     = "X-Csvflow-Event"
)

// Sender delivers webhook events from the consumer side. It re-reads the
// importer configuration on every delivery: the intake process that queued
// the event may be on another machine, and the config may have changed since.
type Sender struct {
	jobs      core.JobStore
	importers core.ImporterStore
	client    *http.Client
	secret    string
	logger    *slog.Logger
}

// NewSender creates a webhook sender signing payloads with secret.
func NewSender(jobs core.JobStore, importers core.ImporterStore, secret string, timeout time.Duration, logger *slog.Logger) *Sender {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Sender{
		jobs:      jobs,
		importers: importers,
		client:    &http.Client{Timeout: timeout},
		secret:    secret,
		logger:    logger,
	}
}

// Run is the consumer entry point registered as core.WorkWebhookSend.
func (s *Sender) Run(ctx context.Context, args map[string]any) error {
	jobID, _ := args["import_job_id"].(string)
	eventType, _ := args["event_type"].(string)
	if jobID == "" || eventType == "" {
		return fmt.Errorf("webhook work unit missing import_job_id or event_type")
	}
	extra, _ := args["payload"].(map[string]any)

	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job %s for webhook: %w", jobID, err)
	}

	importer, err := s.importers.Get(ctx, job.UserID, job.ImporterID)
	if err != nil {
		return fmt.Errorf("load importer for job %s: %w", jobID, err)
	}

	if !importer.WebhookConfigured() {
		s.logger.Info("webhook not enabled for importer, skipping delivery", "importer_id", importer.ID, "job_id", jobID)
		return nil
	}

	payload := map[string]any{
		"event":          eventType,
		"import_id":      job.ID,
		"importer_id":    job.ImporterID,
		"status":         string(job.Status),
		"row_count":      job.RowCount,
		"processed_rows": job.ProcessedRows,
		"error_count":    job.ErrorCount,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range extra {
		payload[k] = v
	}

	if err := s.deliver(ctx, importer.WebhookURL, eventType, payload); err != nil {
		s.logger.Warn("webhook delivery failed", "job_id", jobID, "url", importer.WebhookURL, "error", err)
		return err
	}

	s.logger.Info("webhook delivered", "job_id", jobID, "event", eventType, "url", importer.WebhookURL)
	return nil
}

func (s *Sender) deliver(ctx context.Context, url, eventType string, payload map[string]any) error {
	url = strings.TrimSpace(url)
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return fmt.Errorf("invalid webhook url %q", url)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSignature, Sign(body, s.secret))
	req.Header.Set(HeaderEvent, eventType)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// Sign computes the hex-encoded HMAC-SHA256 of body. Receivers recompute it
// with the shared secret to authenticate deliveries.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
