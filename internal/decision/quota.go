package decision

import (
	"context"
	"fmt"

	"github.com/regnantlabs/regent/internal/store"
)

// QuotaEvaluator fails commands from actors that exceeded their daily
// dispatch limit. The counter itself is bumped by the bus at dispatch time;
// this layer only reads it.
type QuotaEvaluator struct {
	store      *store.Store
	dailyLimit int
}

func NewQuotaEvaluator(st *store.Store, dailyLimit int) *QuotaEvaluator {
	return &QuotaEvaluator{store: st, dailyLimit: dailyLimit}
}

func (e *QuotaEvaluator) Name() string {
	return "quota"
}

func (e *QuotaEvaluator) Check(ctx context.Context, cmd *store.Command) (LayerResult, error) {
	if e.dailyLimit <= 0 {
		return LayerResult{Status: LayerPass}, nil
	}

	count, err := e.store.DailyCount(cmd.WorkspaceID, cmd.ActorID)
	if err != nil {
		return LayerResult{}, err
	}

	if count > e.dailyLimit {
		return LayerResult{
			Status: LayerFail,
			Reason: fmt.Sprintf("actor %s exceeded daily command limit (%d)", cmd.ActorID, e.dailyLimit),
			Metadata: map[string]interface{}{
				"daily_count": count,
				"daily_limit": e.dailyLimit,
			},
		}, nil
	}
	return LayerResult{Status: LayerPass}, nil
}
