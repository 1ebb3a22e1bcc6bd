package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"text/template"
	"time"
)

// Webhook payload formats.
const (
	FormatSlack    = "slack"
	FormatFeishu   = "feishu"
	FormatDingtalk = "dingtalk"
	FormatTelegram = "telegram"
	FormatCustom   = "custom"
)

// WebhookNotifier posts notifications to a chat webhook.
type WebhookNotifier struct {
	URL    string
	Format string
	// Extra holds format parameters: chat_id for telegram, template for custom.
	Extra  map[string]string
	client *http.Client
}

// NewWebhookNotifier creates a webhook notifier for the given URL, format,
// and extra parameters.
func NewWebhookNotifier(url, format string, extra map[string]string) *WebhookNotifier {
	return &WebhookNotifier{
		URL:    url,
		Format: format,
		Extra:  extra,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts n in the configured format.
func (w *WebhookNotifier) Send(ctx context.Context, n Notification) error {
	payload, err := w.payload(n)
	if err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("webhook marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook post: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func (w *WebhookNotifier) payload(n Notification) (any, error) {
	text := fmt.Sprintf("%s: %s", n.Title, n.Message)

	switch w.Format {
	case FormatFeishu:
		return map[string]any{
			"msg_type": "text",
			"content":  map[string]string{"text": text},
		}, nil
	case FormatDingtalk:
		return map[string]any{
			"msgtype": "text",
			"text":    map[string]string{"content": text},
		}, nil
	case FormatTelegram:
		return map[string]any{
			"chat_id":    w.Extra["chat_id"],
			"text":       text,
			"parse_mode": "HTML",
		}, nil
	case FormatCustom:
		return w.customPayload(n, text)
	default:
		return map[string]string{"text": text}, nil
	}
}

// customPayload renders the user template with the notification fields
// and requires the result to be JSON.
func (w *WebhookNotifier) customPayload(n Notification, text string) (any, error) {
	src := w.Extra["template"]
	if src == "" {
		return nil, fmt.Errorf("webhook custom format: missing 'template' in extra")
	}
	tmpl, err := template.New("webhook").Parse(src)
	if err != nil {
		return nil, fmt.Errorf("webhook custom template parse: %w", err)
	}

	data := map[string]any{
		"Kind":     string(n.Kind),
		"Title":    n.Title,
		"Message":  n.Message,
		"Text":     text,
		"CrewType": n.CrewType,
		"TaskID":   n.TaskID,
		"TaskName": n.TaskName,
		"Agent":    n.Agent,
		"Progress": n.Progress,
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("webhook custom template execute: %w", err)
	}

	var payload any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		return nil, fmt.Errorf("webhook custom template produced invalid JSON: %w", err)
	}
	return payload, nil
}

func (w *WebhookNotifier) Name() string { return "webhook:" + w.Format }
