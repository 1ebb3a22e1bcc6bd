//go:build windows

package notify

import (
	"context"
	"fmt"
	"log"
	"os/exec"
)

type windowsNotifier struct{}

func newPlatformNotifier() Notifier {
	return &windowsNotifier{}
}

const toastScript = `
[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] > $null
$template = [Windows.UI.Notifications.ToastNotificationManager]::GetTemplateContent([Windows.UI.Notifications.ToastTemplateType]::ToastText02)
$lines = $template.GetElementsByTagName("text")
$lines.Item(0).AppendChild($template.CreateTextNode(%q)) > $null
$lines.Item(1).AppendChild($template.CreateTextNode(%q)) > $null
[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier("crewmon").Show([Windows.UI.Notifications.ToastNotification]::new($template))
`

func (w *windowsNotifier) Send(ctx context.Context, n Notification) error {
	cmd := exec.CommandContext(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command",
		fmt.Sprintf(toastScript, n.Title, n.Message))
	if err := cmd.Run(); err != nil {
		log.Printf("[notify] toast for %s failed, skipping: %v", n.Kind, err)
	}
	return nil
}

func (w *windowsNotifier) Name() string { return "windows" }
