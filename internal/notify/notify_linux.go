//go:build linux

package notify

import (
	"context"
	"log"
	"os/exec"
)

type linuxNotifier struct{}

func newPlatformNotifier() Notifier {
	return &linuxNotifier{}
}

func (l *linuxNotifier) Send(ctx context.Context, n Notification) error {
	path, err := exec.LookPath("notify-send")
	if err != nil {
		log.Printf("[notify] notify-send not found, skipping %s", n.Kind)
		return nil
	}

	args := []string{"--app-name=crewmon", n.Title, n.Message}
	if n.Sound {
		args = append(args, "--hint=string:sound-name:complete")
	}
	return exec.CommandContext(ctx, path, args...).Run()
}

func (l *linuxNotifier) Name() string { return "linux" }
