package cli

import (
	"errors"

	"github.com/rustyeddy/tradefuse/cost"
	"github.com/rustyeddy/tradefuse/exits"
	"github.com/rustyeddy/tradefuse/features"
	"github.com/rustyeddy/tradefuse/journal"
	"github.com/rustyeddy/tradefuse/pkg/snapshot"
	"github.com/rustyeddy/tradefuse/regime"
)

func (a *app) openFeatures() (*features.Store, error) {
	return features.Open(a.cfg.Paths.Features, features.WithLogger(a.log))
}

func (a *app) openJournal() (*journal.SQLite, error) {
	return journal.NewSQLite(a.cfg.Paths.Journal, journal.WithLogger(a.log))
}

// loadCostModel returns nil when nothing has been calibrated yet; the
// pipeline then prices every trade at the default multiplier.
func (a *app) loadCostModel() (*cost.Model, error) {
	m, err := cost.LoadLatest(a.cfg.Paths.Cost)
	if errors.Is(err, snapshot.ErrNotFound) {
		a.log.Info().Str("dir", a.cfg.Paths.Cost).Msg("no cost snapshots, using default multiplier")
		return nil, nil
	}
	return m, err
}

// loadPlanner returns nil when no policy has been fitted.
func (a *app) loadPlanner() (*exits.Planner, error) {
	pl, err := exits.LoadLatest(a.cfg.Paths.EV)
	if errors.Is(err, snapshot.ErrNotFound) {
		a.log.Info().Str("dir", a.cfg.Paths.EV).Msg("no exit policy, exits are not planned")
		return nil, nil
	}
	return pl, err
}

// loadHazard restores the saved detector or starts a calm one.
func (a *app) loadHazard() (*regime.Hazard, error) {
	h, err := regime.LoadLatest(a.cfg.Paths.Hazard, a.cfg.Hazard)
	if errors.Is(err, snapshot.ErrNotFound) {
		a.log.Info().Str("dir", a.cfg.Paths.Hazard).Msg("no hazard status, starting calm")
		return regime.New(a.cfg.Hazard), nil
	}
	return h, err
}
