package main

import (
	"context"

	sdkapp "github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	"github.com/marketloop/storefront/internal/app"
)

func main() {
	sdkapp.Run(func(ctx context.Context, lg *zap.Logger, _ *sdkapp.Telemetry) error {
		cfg, err := app.LoadConfig()
		if err != nil {
			return err
		}
		return app.Run(ctx, lg, cfg)
	})
}
