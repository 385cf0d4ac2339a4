package registry

import (
	"math"

	"visaflow/models"
)

// urgencyMultipliers must stay strictly increasing by tier.
var urgencyMultipliers = map[models.Urgency]float64{
	models.UrgencyNormal:  1.0,
	models.UrgencyUrgent:  1.5,
	models.UrgencyExpress: 2.0,
}

// UrgencyMultiplier returns the cost multiplier of a tier; unknown tiers
// are charged as normal.
func UrgencyMultiplier(u models.Urgency) float64 {
	if m, ok := urgencyMultipliers[u]; ok {
		return m
	}
	return 1.0
}

// CalculateTotalCost applies the urgency multiplier to a per-transaction cost.
func CalculateTotalCost(baseCost float64, urgency models.Urgency) float64 {
	if baseCost <= 0 {
		return 0
	}
	return math.Round(baseCost*UrgencyMultiplier(urgency)*100) / 100
}

// CostFor prices one booking on the given adapter.
func (r *Registry) CostFor(adapterID string, urgency models.Urgency) float64 {
	d, ok := r.Get(adapterID)
	if !ok {
		return 0
	}
	return CalculateTotalCost(d.Pricing.PerTransaction, urgency)
}
