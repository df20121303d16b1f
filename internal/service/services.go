package service

import (
	"log/slog"

	"github.com/kirinyoku/cinehold/internal/event"
	"github.com/kirinyoku/cinehold/internal/service/catalog"
	"github.com/kirinyoku/cinehold/internal/service/query"
	"github.com/kirinyoku/cinehold/internal/service/reservation"
	"github.com/kirinyoku/cinehold/internal/service/settlement"
)

type Services struct {
	Reservation *reservation.Service
	Settlement  *settlement.Service
	Query       *query.Service
	Catalog     *catalog.Service
}

type Config struct {
	Reservation reservation.Config
	Settlement  settlement.Config
	Query       query.Config
}

// Deps are the storage and integration ports the services run on.
type Deps struct {
	Catalog interface {
		catalog.Repository
		query.Catalog
		reservation.Catalog
	}
	Ledger interface {
		reservation.Ledger
		settlement.Ledger
	}
	Query    query.Ledger
	Cache    query.ShowCache
	Limiter  reservation.Limiter
	Gateway  settlement.Gateway
	Verifier settlement.Verifier
	Notifier event.ShowNotifier
	Events   event.Publisher
}

func NewServices(d Deps, logger *slog.Logger, cfg Config) *Services {
	return &Services{
		Reservation: reservation.New(d.Catalog, d.Ledger, d.Limiter, d.Notifier, d.Events, logger, cfg.Reservation),
		Settlement:  settlement.New(d.Ledger, d.Gateway, d.Verifier, d.Notifier, d.Events, logger, cfg.Settlement),
		Query:       query.New(d.Catalog, d.Query, d.Cache, cfg.Query),
		Catalog:     catalog.New(d.Catalog, logger),
	}
}
