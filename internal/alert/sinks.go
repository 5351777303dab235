package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/smtp"

	"github.com/scouter-ml/scouter/internal/drift"
	"go.uber.org/zap"
)

// No pack example wires a Slack/OpsGenie/email client library (none of the
// teacher's or the rest of the pack's go.mod files name one), so these
// sinks speak the underlying webhook/SMTP protocols directly over the
// standard library rather than adopting an unrelated dependency just to
// have one.

// ConsoleSink logs the rendered alert, matching the teacher's structured
// logging style. It is also the dispatcher's fallback for an unknown
// DispatchType.
type ConsoleSink struct {
	log *zap.Logger
}

func NewConsoleSink(log *zap.Logger) *ConsoleSink { return &ConsoleSink{log: log} }

func (s *ConsoleSink) Send(_ context.Context, profileUID string, a drift.Alert) error {
	s.log.Warn("drift alert",
		zap.String("profile_uid", profileUID),
		zap.String("feature_or_metric", a.FeatureOrMetric),
		zap.String("kind", a.Kind),
		zap.String("zone", a.Zone),
		zap.Float64("drift_value", a.DriftValue),
	)
	return nil
}

// SlackSink posts a rendered alert to an incoming webhook URL.
type SlackSink struct {
	webhookURL string
	client     *http.Client
}

func NewSlackSink(webhookURL string, client *http.Client) *SlackSink {
	if client == nil {
		client = http.DefaultClient
	}
	return &SlackSink{webhookURL: webhookURL, client: client}
}

func (s *SlackSink) Send(ctx context.Context, profileUID string, a drift.Alert) error {
	text := fmt.Sprintf("drift alert: profile=%s %s=%s kind=%s zone=%s value=%.6f",
		profileUID, "feature_or_metric", a.FeatureOrMetric, a.Kind, a.Zone, a.DriftValue)
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("alert: rendering slack payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("alert: building slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("alert: posting to slack: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("alert: slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// OpsGenieSink posts a rendered alert to the OpsGenie alerts API.
type OpsGenieSink struct {
	apiKey string
	client *http.Client
}

func NewOpsGenieSink(apiKey string, client *http.Client) *OpsGenieSink {
	if client == nil {
		client = http.DefaultClient
	}
	return &OpsGenieSink{apiKey: apiKey, client: client}
}

func (s *OpsGenieSink) Send(ctx context.Context, profileUID string, a drift.Alert) error {
	payload, err := json.Marshal(map[string]any{
		"message": fmt.Sprintf("%s: %s on %s", profileUID, a.Kind, a.FeatureOrMetric),
		"details": map[string]string{
			"feature_or_metric": a.FeatureOrMetric,
			"zone":              a.Zone,
		},
		"priority": "P3",
	})
	if err != nil {
		return fmt.Errorf("alert: rendering opsgenie payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.opsgenie.com/v2/alerts", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("alert: building opsgenie request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "GenieKey "+s.apiKey)
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("alert: posting to opsgenie: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("alert: opsgenie returned status %d", resp.StatusCode)
	}
	return nil
}

// EmailSink sends a rendered alert via SMTP.
type EmailSink struct {
	smtpAddr string
	auth     smtp.Auth
	from     string
	to       []string
}

func NewEmailSink(smtpAddr, from string, to []string, auth smtp.Auth) *EmailSink {
	return &EmailSink{smtpAddr: smtpAddr, from: from, to: to, auth: auth}
}

func (s *EmailSink) Send(_ context.Context, profileUID string, a drift.Alert) error {
	body := fmt.Sprintf("Subject: Scouter drift alert\r\n\r\nprofile=%s feature_or_metric=%s kind=%s zone=%s value=%.6f\r\n",
		profileUID, a.FeatureOrMetric, a.Kind, a.Zone, a.DriftValue)
	if err := smtp.SendMail(s.smtpAddr, s.auth, s.from, s.to, []byte(body)); err != nil {
		return fmt.Errorf("alert: sending email: %w", err)
	}
	return nil
}
