//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/cory-johannsen/diceodds/internal/config"
)

func initializeApp(ctx context.Context, cfg config.Config, logger *zap.Logger, seed Seed) (*App, func(), error) {
	wire.Build(providerSet)
	return nil, nil, nil
}
