package providers

import (
	"github.com/samber/do/v2"

	"github.com/punkouter26/podropsquare-server/internal/auth"
	"github.com/punkouter26/podropsquare-server/internal/config"
	"github.com/punkouter26/podropsquare-server/internal/logger"
)

// AuthKey wraps the admin token key bytes.
type AuthKey []byte

// ProvideAuthKey loads or generates the admin token key.
func ProvideAuthKey(i do.Injector) (AuthKey, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	key, err := auth.LoadOrGenerateKey(cfg.Data.BasePath)
	if err != nil {
		return nil, err
	}

	// Update config with the loaded key
	cfg.Auth.AdminTokenKey = key

	log.Info("Admin token key loaded",
		"admin_token_duration", cfg.Auth.AdminTokenDuration,
	)

	return AuthKey(key), nil
}

// ProvideTokenService provides the PASETO admin token service.
func ProvideTokenService(i do.Injector) (*auth.TokenService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	authKey := do.MustInvoke[AuthKey](i)

	return auth.NewTokenService([]byte(authKey), cfg.Auth.AdminTokenDuration)
}
