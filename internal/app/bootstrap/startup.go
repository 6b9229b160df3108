// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/stratatopics/internal/app/allocation"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built.
//
// A ledger in which a team holds two confirmed topics of one assignment
// aborts startup. The audit worker only starts on a consistent ledger.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			ie, ok := r.(*allocation.InvariantError)
			if !ok {
				panic(r)
			}
			err = ie
		}
	}()

	if err := deps.Engine.CheckSingleClaims(ctx); err != nil {
		return err
	}

	if deps.LedgerAudit != nil {
		deps.LedgerAudit.Start()
		logger.Info("ledger audit worker started", zap.Duration("interval", appCfg.LedgerAuditInterval))
	}
	return nil
}
