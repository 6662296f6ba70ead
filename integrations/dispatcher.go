// Package integrations delivers stored submissions to the webhooks, Slack
// and Discord channels configured on a form.
package integrations

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nikhilsahni7/FormX/db"
	"github.com/nikhilsahni7/FormX/forms"
	"github.com/nikhilsahni7/FormX/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

const (
	EventResponseSubmitted = "response_submitted"

	// outbound requests per second across all hooks
	dispatchRate  = 10
	dispatchBurst = 5

	discordContentLimit = 2000
)

// Dispatcher implements forms.Notifier. Each hook gets exactly one attempt;
// failures are logged and dropped.
type Dispatcher struct {
	db      *gorm.DB
	client  *http.Client
	limiter *rate.Limiter
	log     *logrus.Entry
}

func NewDispatcher(gdb *gorm.DB, timeout time.Duration, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		db:      gdb,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(dispatchRate, dispatchBurst),
		log:     logger.WithField("component", "dispatcher"),
	}
}

type genericPayload struct {
	Event        string           `json:"event"`
	FormID       string           `json:"form_id"`
	FormTitle    string           `json:"form_title"`
	SubmissionID string           `json:"submission_id"`
	Submission   forms.Submission `json:"submission"`
}

func (d *Dispatcher) Notify(ctx context.Context, sub forms.Submission, submissionID string) {
	entry := d.log.WithFields(logrus.Fields{"form": sub.FormID, "submission": submissionID})

	formID, err := db.ParseFormID(sub.FormID)
	if err != nil {
		entry.WithError(err).Warn("skipping notification for malformed form id")
		return
	}

	var form models.Form
	if err := d.db.WithContext(ctx).Select("id", "title").First(&form, formID).Error; err != nil {
		entry.WithError(err).Warn("could not load form for notification")
		return
	}

	var hooks []models.Webhook
	if err := d.db.WithContext(ctx).Where("form_id = ? AND active = ?", formID, true).Find(&hooks).Error; err != nil {
		entry.WithError(err).Error("could not load webhooks")
		return
	}

	for _, hook := range hooks {
		if !subscribed(hook.Events, EventResponseSubmitted) {
			continue
		}
		hookEntry := entry.WithFields(logrus.Fields{"webhook": hook.ID, "kind": hook.Kind})

		req, err := buildRequest(ctx, hook, form.Title, sub, submissionID)
		if err != nil {
			hookEntry.WithError(err).Error("could not build webhook request")
			continue
		}
		if err := d.limiter.Wait(ctx); err != nil {
			hookEntry.WithError(err).Warn("webhook dispatch cancelled")
			return
		}

		resp, err := d.client.Do(req)
		if err != nil {
			hookEntry.WithError(err).Warn("webhook delivery failed")
			continue
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 300 {
			hookEntry.WithField("status", resp.StatusCode).Warn("webhook rejected delivery")
			continue
		}
		hookEntry.WithField("status", resp.StatusCode).Debug("webhook delivered")
	}
}

// subscribed reports whether a comma separated event list includes event.
// An empty list subscribes to everything.
func subscribed(events, event string) bool {
	if strings.TrimSpace(events) == "" {
		return true
	}
	for _, e := range strings.Split(events, ",") {
		if strings.TrimSpace(e) == event {
			return true
		}
	}
	return false
}

func buildRequest(ctx context.Context, hook models.Webhook, title string, sub forms.Submission, submissionID string) (*http.Request, error) {
	var body any
	switch hook.Kind {
	case models.WebhookSlack:
		body = map[string]string{"text": summary(title, sub, submissionID, "*%s*: %s")}
	case models.WebhookDiscord:
		body = map[string]string{"content": truncate(summary(title, sub, submissionID, "**%s**: %s"), discordContentLimit)}
	case models.WebhookGeneric, "":
		body = genericPayload{
			Event:        EventResponseSubmitted,
			FormID:       sub.FormID,
			FormTitle:    title,
			SubmissionID: submissionID,
			Submission:   sub,
		}
	default:
		return nil, fmt.Errorf("unknown webhook kind %q", hook.Kind)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if hook.Kind == models.WebhookGeneric || hook.Kind == "" {
		req.Header.Set("X-Webhook-Event", EventResponseSubmitted)
		if hook.Secret != "" {
			req.Header.Set("X-Webhook-Signature", "sha256="+Sign(hook.Secret, payload))
		}
	}
	return req, nil
}

// Sign returns the hex HMAC-SHA256 of payload under secret.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func summary(title string, sub forms.Submission, submissionID, line string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New response #%s to %q", submissionID, title)
	for _, item := range sub.Responses {
		value := item.Value.String()
		if value == "" {
			value = "-"
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, line, item.FieldLabel, value)
	}
	return b.String()
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}
