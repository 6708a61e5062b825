package calendar

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// ReconcileResult reports what an account switch changed.
type ReconcileResult struct {
	Deactivated int `json:"deactivated"`
	Reactivated int `json:"reactivated"`
	FixedNull   int `json:"fixed_null"`
}

// AccountSwitchReconciler runs once per OAuth re-authorization. When the
// tenant authorizes a different external account, agent configs built against
// the old account are deactivated and any built against the new account are
// restored, so switching back never needs manual re-setup.
type AccountSwitchReconciler struct {
	store ReconcileStore
	log   *zap.SugaredLogger
}

func NewAccountSwitchReconciler(store ReconcileStore, log *zap.SugaredLogger) *AccountSwitchReconciler {
	return &AccountSwitchReconciler{store: store, log: log}
}

// Reconcile applies, in one transaction and in this order: backfill null
// created_with_account to the new account, deactivate every active config
// under the credential, reactivate configs whose created_with_account matches
// the new account case-insensitively. A same-account re-authorization (an
// ordinary token refresh) is a strict no-op.
func (r *AccountSwitchReconciler) Reconcile(ctx context.Context, credentialID, previousAccount, newAccount string) (ReconcileResult, error) {
	prev := strings.TrimSpace(previousAccount)
	next := strings.TrimSpace(newAccount)
	if strings.EqualFold(prev, next) {
		return ReconcileResult{}, nil
	}

	var res ReconcileResult
	err := r.store.InTx(ctx, func(ops ReconcileOps) error {
		n, err := ops.BackfillCreatedWith(ctx, credentialID, next)
		if err != nil {
			return err
		}
		res.FixedNull = n

		n, err = ops.DeactivateConfigs(ctx, credentialID)
		if err != nil {
			return err
		}
		res.Deactivated = n

		n, err = ops.ReactivateConfigs(ctx, credentialID, next)
		if err != nil {
			return err
		}
		res.Reactivated = n
		return nil
	})
	if err != nil {
		return ReconcileResult{}, err
	}

	r.log.Infow("reconciled calendar configs after account switch",
		"credential_id", credentialID,
		"previous_account", prev,
		"new_account", next,
		"deactivated", res.Deactivated,
		"reactivated", res.Reactivated,
		"fixed_null", res.FixedNull)
	return res, nil
}
