package providers

import (
	"strconv"

	"github.com/samber/do/v2"

	"github.com/punkouter26/podropsquare-server/internal/config"
	"github.com/punkouter26/podropsquare-server/internal/logger"
	"github.com/punkouter26/podropsquare-server/internal/mdns"
)

// MDNSServiceHandle wraps mdns.Service with Shutdownable.
type MDNSServiceHandle struct {
	*mdns.Service
}

// Shutdown implements do.Shutdownable.
func (h *MDNSServiceHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideMDNSService advertises the server on the LAN when enabled.
// Failure to advertise is logged, never fatal.
func ProvideMDNSService(i do.Injector) (*MDNSServiceHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	// Advertise only once the listener is up.
	_ = do.MustInvoke[*HTTPServerHandle](i)

	svc := mdns.NewService(log.WithComponent("mdns").Logger)
	if !cfg.Server.AdvertiseMDNS {
		return &MDNSServiceHandle{Service: svc}, nil
	}

	port, err := strconv.Atoi(cfg.Server.Port)
	if err != nil {
		log.Warn("mDNS disabled, port is not numeric", "port", cfg.Server.Port)
		return &MDNSServiceHandle{Service: svc}, nil
	}

	if err := svc.Start(mdns.Announcement{Port: port, Stream: true}); err != nil {
		log.Warn("mDNS advertisement unavailable", "error", err)
	}
	return &MDNSServiceHandle{Service: svc}, nil
}
