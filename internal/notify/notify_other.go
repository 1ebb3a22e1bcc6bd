//go:build !darwin && !linux && !windows

package notify

import "context"

type noopNotifier struct{}

func newPlatformNotifier() Notifier {
	return &noopNotifier{}
}

func (n *noopNotifier) Send(context.Context, Notification) error { return nil }
func (n *noopNotifier) Name() string                              { return "noop" }
