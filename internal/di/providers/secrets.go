package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/punkouter26/podropsquare-server/internal/config"
	"github.com/punkouter26/podropsquare-server/internal/logger"
	"github.com/punkouter26/podropsquare-server/internal/validation"
	"github.com/punkouter26/podropsquare-server/internal/watcher"
)

// SecretWatcherHandle wraps the signature secret file watcher for lifecycle
// management. Watcher is nil when no secret file is configured.
type SecretWatcherHandle struct {
	*watcher.Watcher
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SecretWatcherHandle) Shutdown() error {
	if h.Watcher == nil {
		return nil
	}
	h.cancel()
	return h.Stop()
}

// ProvideSecretWatcher reloads the session signing secret whenever its file
// changes, so the secret can be rotated without a restart.
func ProvideSecretWatcher(i do.Injector) (*SecretWatcherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	pipeline := do.MustInvoke[*validation.Pipeline](i)

	path := cfg.Game.SignatureSecretFile
	sig, ok := pipeline.Signature()
	if path == "" || !ok {
		return &SecretWatcherHandle{}, nil
	}

	w, err := watcher.New(log.WithComponent("watcher").Logger, watcher.Options{})
	if err != nil {
		return nil, err
	}
	if err := w.Watch(path); err != nil {
		_ = w.Stop()
		return nil, err
	}

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := w.Start(ctx); err != nil {
			log.Error("Secret watcher stopped", "error", err)
		}
	}()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-w.Errors():
				log.Warn("Secret watcher error", "error", err)
			case event := <-w.Events():
				if event.Type != watcher.EventChanged {
					// Keep the current key until a replacement appears.
					log.Warn("Signature secret file removed, keeping current secret", "path", event.Path)
					continue
				}
				secret, err := config.ReadSecretFile(event.Path)
				if err != nil {
					log.Error("Signature secret reload failed, keeping current secret", "error", err)
					continue
				}
				sig.SetSecret(secret)
				log.Info("Signature secret reloaded", "path", event.Path)
			}
		}
	}()

	log.Info("Watching signature secret file", "path", path)

	return &SecretWatcherHandle{Watcher: w, cancel: cancel}, nil
}
