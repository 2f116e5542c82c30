package billing

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/wifibill/hotspot-server/internal/config"
)

// ErrUnknownPlan means the requested plan id is not in the catalog
var ErrUnknownPlan = errors.New("unknown plan")

// PlanCatalog is the read-only set of purchasable access tiers, loaded from
// configuration at startup. Vouchers snapshot plan terms at issuance, so a
// catalog change between restarts never rewrites sold access.
type PlanCatalog struct {
	plans []config.PlanConfig
	byID  map[string]config.PlanConfig
}

// NewPlanCatalog builds a catalog from configuration
func NewPlanCatalog(plans []config.PlanConfig) *PlanCatalog {
	ordered := make([]config.PlanConfig, len(plans))
	copy(ordered, plans)

	// Popular plans first, configuration order otherwise
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Popular && !ordered[j].Popular
	})

	byID := make(map[string]config.PlanConfig, len(ordered))
	for _, p := range ordered {
		byID[p.ID] = p
	}

	return &PlanCatalog{plans: ordered, byID: byID}
}

// List returns all plans in display order
func (c *PlanCatalog) List() []config.PlanConfig {
	out := make([]config.PlanConfig, len(c.plans))
	copy(out, c.plans)
	return out
}

// Resolve looks up a plan by id
func (c *PlanCatalog) Resolve(id string) (config.PlanConfig, error) {
	p, ok := c.byID[id]
	if !ok {
		return config.PlanConfig{}, fmt.Errorf("%w: %s", ErrUnknownPlan, id)
	}
	return p, nil
}

// Duration returns the plan's access window as a duration
func Duration(p config.PlanConfig) time.Duration {
	return time.Duration(p.DurationMinutes) * time.Minute
}

// ProfileName maps a plan to the hotspot user profile configured on the
// routers. Profiles carry rate limits and must exist on every zone's router.
func ProfileName(p config.PlanConfig) string {
	return "plan-" + p.ID
}
