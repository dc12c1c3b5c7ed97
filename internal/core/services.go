package core

import (
	"github.com/rs/zerolog"

	"github.com/autobit/compute/internal/config"
	"github.com/autobit/compute/internal/runtime"
)

type Services struct {
	Server  *ServerService
	Usage   *UsageService
	Billing *BillingService
}

func NewServices(db DB, rt runtime.Runtime, pub EventPublisher, cfg *config.Config, logger zerolog.Logger) *Services {
	return &Services{
		Server:  NewServerService(db, rt, pub, logger),
		Usage:   NewUsageService(db, pub, logger),
		Billing: NewBillingService(db, cfg, pub, logger),
	}
}
