//go:build darwin

package notify

import (
	"context"
	"fmt"
	"os/exec"
)

type darwinNotifier struct{}

func newPlatformNotifier() Notifier {
	return &darwinNotifier{}
}

func (d *darwinNotifier) Send(ctx context.Context, n Notification) error {
	script := fmt.Sprintf(`display notification %q with title "crewmon" subtitle %q`, n.Message, n.Title)
	if n.Sound {
		script += ` sound name "Glass"`
	}
	return exec.CommandContext(ctx, "osascript", "-e", script).Run()
}

func (d *darwinNotifier) Name() string { return "darwin" }
