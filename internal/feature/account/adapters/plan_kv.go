package adapters

import (
	"context"
	"errors"

	"studio_backend/internal/feature/account/domain"
	"studio_backend/internal/feature/account/domain/entity"
	"studio_backend/internal/feature/account/usecase"
	"studio_backend/internal/platform/kv"
)

// planKV は plans スロットにクレジットプランを保存します。
type planKV struct {
	store kv.Store
}

var _ usecase.PlanRepository = (*planKV)(nil)

// NewPlanKV は指定されたストアでplanKVの新しいインスタンスを生成します。
func NewPlanKV(store kv.Store) *planKV {
	return &planKV{store: store}
}

func (r *planKV) List(ctx context.Context) ([]entity.Plan, error) {
	plans, err := kv.ReadJSON[[]entity.Plan](ctx, r.store, SlotPlans)
	if err != nil {
		return nil, err
	}
	if plans == nil {
		plans = []entity.Plan{}
	}
	return plans, nil
}

// Replace は同じIDのプランを置き換えます。未知のIDは domain.ErrPlanNotFound になります。
func (r *planKV) Replace(ctx context.Context, plan entity.Plan) error {
	return kv.UpdateJSON(ctx, r.store, SlotPlans, func(plans *[]entity.Plan) error {
		for i := range *plans {
			if (*plans)[i].ID == plan.ID {
				(*plans)[i] = plan
				return nil
			}
		}
		return domain.ErrPlanNotFound
	})
}

var errPlansPresent = errors.New("plans already present")

// SeedIfEmpty は plans スロットが空のときだけ書き込みます。
func (r *planKV) SeedIfEmpty(ctx context.Context, plans []entity.Plan) (bool, error) {
	err := kv.UpdateJSON(ctx, r.store, SlotPlans, func(cur *[]entity.Plan) error {
		if len(*cur) > 0 {
			return errPlansPresent
		}
		*cur = plans
		return nil
	})
	if errors.Is(err, errPlansPresent) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
