package service

import (
	"math"

	"github.com/gigstage/settlement_api/internal/config"
	"github.com/gigstage/settlement_api/internal/models"
)

// Distribution is the full breakdown of a booking's gross amount. All values
// are paise. The same struct backs the client-facing estimate and the final
// ledger write, so displayed and settled numbers never diverge.
type Distribution struct {
	Gross            int64  `json:"gross"`
	PlatformFee      int64  `json:"platformFee"`
	GSTOnPlatformFee int64  `json:"gstOnPlatformFee"`
	AdminAmount      int64  `json:"adminAmount"`
	ECOTCSAmount     int64  `json:"ecoTcsAmount"`
	ECOTCSPayer      string `json:"ecoTcsPayer"`
	SupplierGross    int64  `json:"supplierGross"`
	TDSWithheld      int64  `json:"tdsWithheld"`
	SupplierNet      int64  `json:"supplierNet"`
}

// StageShare is one stage's slice of a Distribution. Components are split
// floor-first with the remainder on the final stage, so stage1 + stage2
// reproduce every booking-level total exactly.
type StageShare struct {
	Gross       int64 `json:"gross"`
	PlatformFee int64 `json:"platformFee"`
	GST         int64 `json:"gst"`
	TDS         int64 `json:"tds"`
	TCS         int64 `json:"tcs"`
	Net         int64 `json:"net"`
}

// DistributionCalculator computes fee/tax splits from the injected policy.
// It is pure: no I/O, no clock, deterministic for a given (gross, policy).
type DistributionCalculator struct {
	policy config.PolicyConfig
}

// NewDistributionCalculator constructs a DistributionCalculator.
func NewDistributionCalculator(policy config.PolicyConfig) *DistributionCalculator {
	return &DistributionCalculator{policy: policy}
}

// Distribute maps a gross amount to the platform fee / GST / ECO-TCS /
// supplier breakdown. Platform fee is the greater of the bracket minimum and
// round(gross x feeRate). ECO-TCS is platform-borne by default; when the
// policy shifts it to the supplier it comes out of the supplier net.
func (c *DistributionCalculator) Distribute(gross int64) Distribution {
	if gross < 0 {
		gross = 0
	}
	fee := roundRate(gross, c.policy.FeeRate)
	if min := c.tierMin(gross); fee < min {
		fee = min
	}
	if fee > gross {
		fee = gross
	}
	gst := roundRate(fee, c.policy.GSTRate)
	admin := fee + gst
	if admin > gross {
		admin = gross
		gst = admin - fee
	}
	tcs := roundRate(gross, c.policy.TCSRate)

	supplierGross := gross - admin
	tds := roundRate(supplierGross, c.policy.TDSRate)
	net := supplierGross - tds
	if c.policy.TCSPayer == "supplier" {
		net -= tcs
	}
	if net < 0 {
		net = 0
	}

	return Distribution{
		Gross:            gross,
		PlatformFee:      fee,
		GSTOnPlatformFee: gst,
		AdminAmount:      admin,
		ECOTCSAmount:     tcs,
		ECOTCSPayer:      c.policy.TCSPayer,
		SupplierGross:    supplierGross,
		TDSWithheld:      tds,
		SupplierNet:      net,
	}
}

// SplitStages slices a distribution into the two release tranches. Stage 1
// takes floor(component x fraction) of every component; stage 2 takes the
// remainder, so no paisa leaks regardless of rounding.
func (c *DistributionCalculator) SplitStages(d Distribution, fraction float64) [2]StageShare {
	first := StageShare{
		Gross:       floorFrac(d.Gross, fraction),
		PlatformFee: floorFrac(d.PlatformFee, fraction),
		GST:         floorFrac(d.GSTOnPlatformFee, fraction),
		TDS:         floorFrac(d.TDSWithheld, fraction),
		TCS:         floorFrac(d.ECOTCSAmount, fraction),
		Net:         floorFrac(d.SupplierNet, fraction),
	}
	second := StageShare{
		Gross:       d.Gross - first.Gross,
		PlatformFee: d.PlatformFee - first.PlatformFee,
		GST:         d.GSTOnPlatformFee - first.GST,
		TDS:         d.TDSWithheld - first.TDS,
		TCS:         d.ECOTCSAmount - first.TCS,
		Net:         d.SupplierNet - first.Net,
	}
	return [2]StageShare{first, second}
}

// StageShareFor returns the share for a stage key using the policy fraction.
func (c *DistributionCalculator) StageShareFor(d Distribution, stageKey string) StageShare {
	shares := c.SplitStages(d, c.policy.Stage1Fraction)
	if stageKey == models.StageKey1 {
		return shares[0]
	}
	return shares[1]
}

// Allocate splits one stage share across the booking's supplier lines,
// proportional to the line amounts. Each component is floored per recipient
// with the remainder assigned to the last line, so the allocations sum back
// to the stage share exactly.
func (c *DistributionCalculator) Allocate(share StageShare, items []models.ServiceItem) []models.StageAllocation {
	if len(items) == 0 {
		return nil
	}
	var total int64
	for _, it := range items {
		total += it.Amount
	}
	if total <= 0 {
		return nil
	}

	allocs := make([]models.StageAllocation, len(items))
	var usedGross, usedTDS, usedTCS, usedNet int64
	for i, it := range items {
		last := i == len(items)-1
		a := models.StageAllocation{RecipientID: it.SupplierID, Type: it.Type}
		if last {
			a.Gross = share.Gross - usedGross
			a.TDS = share.TDS - usedTDS
			a.TCS = share.TCS - usedTCS
			a.Net = share.Net - usedNet
		} else {
			ratio := float64(it.Amount) / float64(total)
			a.Gross = floorFrac(share.Gross, ratio)
			a.TDS = floorFrac(share.TDS, ratio)
			a.TCS = floorFrac(share.TCS, ratio)
			a.Net = floorFrac(share.Net, ratio)
			usedGross += a.Gross
			usedTDS += a.TDS
			usedTCS += a.TCS
			usedNet += a.Net
		}
		allocs[i] = a
	}
	return allocs
}

// tierMin returns the minimum platform fee for the gross bracket.
func (c *DistributionCalculator) tierMin(gross int64) int64 {
	for _, t := range c.policy.FeeTiers {
		if t.UpTo == 0 || gross <= t.UpTo {
			return t.Min
		}
	}
	return 0
}

func roundRate(amount int64, rate float64) int64 {
	return int64(math.Round(float64(amount) * rate))
}

func floorFrac(amount int64, fraction float64) int64 {
	return int64(math.Floor(float64(amount) * fraction))
}
