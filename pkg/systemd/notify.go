// Package systemd reports service state to the init system via sd_notify.
// Every call is a no-op when NOTIFY_SOCKET is unset, so running outside a
// Type=notify unit (dev shells, containers) costs nothing.
package systemd

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// NotifyReady signals that startup finished and the service is operational.
func NotifyReady() {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
}

// NotifyStopping signals that a clean shutdown has begun.
func NotifyStopping() {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
}

// RunWatchdog pets the systemd watchdog at half the configured interval
// until ctx is done. Returns immediately when no watchdog is armed, so it
// is safe to launch unconditionally.
func RunWatchdog(ctx context.Context) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return
	}
	t := time.NewTicker(interval / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
		}
	}
}
