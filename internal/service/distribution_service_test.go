package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigstage/settlement_api/internal/config"
	"github.com/gigstage/settlement_api/internal/models"
)

func testPolicy() config.PolicyConfig {
	return config.PolicyConfig{
		Version: "test",
		FeeRate: 0.10,
		FeeTiers: []config.FeeTier{
			{UpTo: 100_000, Min: 5_000},
			{UpTo: 1_000_000, Min: 10_000},
			{UpTo: 0, Min: 20_000},
		},
		GSTRate:            0.18,
		TCSRate:            0.005,
		TDSRate:            0.01,
		TCSPayer:           "platform",
		RequirePAN:         true,
		NameMatchThreshold: 0.70,
		Stage1Fraction:     0.5,
	}
}

func TestDistribute_StandardBooking(t *testing.T) {
	calc := NewDistributionCalculator(testPolicy())

	// Rs 5,000 booking
	d := calc.Distribute(500_000)

	assert.Equal(t, int64(50_000), d.PlatformFee)
	assert.Equal(t, int64(9_000), d.GSTOnPlatformFee)
	assert.Equal(t, int64(59_000), d.AdminAmount)
	assert.Equal(t, int64(2_500), d.ECOTCSAmount)
	assert.Equal(t, "platform", d.ECOTCSPayer)
	assert.Equal(t, int64(441_000), d.SupplierGross)
	assert.Equal(t, int64(4_410), d.TDSWithheld)
	assert.Equal(t, int64(436_590), d.SupplierNet)
}

func TestDistribute_TierMinimumApplies(t *testing.T) {
	calc := NewDistributionCalculator(testPolicy())

	// Rs 300 booking: 10% would be Rs 30, below the Rs 50 bracket minimum.
	d := calc.Distribute(30_000)

	assert.Equal(t, int64(5_000), d.PlatformFee)
	assert.Equal(t, int64(900), d.GSTOnPlatformFee)
	assert.Equal(t, int64(24_100), d.SupplierGross)
	assert.Equal(t, int64(241), d.TDSWithheld)
	assert.Equal(t, int64(23_859), d.SupplierNet)
}

func TestDistribute_TinyBookingCapsAtGross(t *testing.T) {
	calc := NewDistributionCalculator(testPolicy())

	// Rs 40 booking: the tier minimum exceeds gross, so fee and admin cap
	// at gross and the supplier gets nothing.
	d := calc.Distribute(4_000)

	assert.Equal(t, int64(4_000), d.PlatformFee)
	assert.Equal(t, int64(4_000), d.AdminAmount)
	assert.Equal(t, int64(0), d.GSTOnPlatformFee)
	assert.Equal(t, int64(0), d.SupplierGross)
	assert.Equal(t, int64(0), d.TDSWithheld)
	assert.Equal(t, int64(0), d.SupplierNet)
}

func TestDistribute_ZeroAndNegativeGross(t *testing.T) {
	calc := NewDistributionCalculator(testPolicy())

	for _, gross := range []int64{0, -100} {
		d := calc.Distribute(gross)
		assert.Equal(t, int64(0), d.Gross)
		assert.Equal(t, int64(0), d.PlatformFee)
		assert.Equal(t, int64(0), d.SupplierNet)
	}
}

func TestDistribute_SupplierBorneTCS(t *testing.T) {
	policy := testPolicy()
	policy.TCSPayer = "supplier"
	calc := NewDistributionCalculator(policy)

	d := calc.Distribute(500_000)

	assert.Equal(t, "supplier", d.ECOTCSPayer)
	assert.Equal(t, int64(2_500), d.ECOTCSAmount)
	// Same booking as the platform-borne case, minus the TCS.
	assert.Equal(t, int64(434_090), d.SupplierNet)
}

func TestDistribute_ConservationAcrossRange(t *testing.T) {
	calc := NewDistributionCalculator(testPolicy())

	for gross := int64(1_000); gross <= 2_000_000; gross += 37_777 {
		d := calc.Distribute(gross)
		assert.Equal(t, d.Gross, d.AdminAmount+d.SupplierGross,
			"admin + supplier gross must reproduce gross for %d", gross)
		assert.Equal(t, d.SupplierGross, d.TDSWithheld+d.SupplierNet,
			"TDS + net must reproduce supplier gross for %d", gross)
		assert.GreaterOrEqual(t, d.SupplierNet, int64(0))
	}
}

func TestSplitStages_OddAmounts(t *testing.T) {
	calc := NewDistributionCalculator(testPolicy())

	d := Distribution{Gross: 101, PlatformFee: 11, GSTOnPlatformFee: 3, TDSWithheld: 1, ECOTCSAmount: 1, SupplierNet: 85}
	shares := calc.SplitStages(d, 0.5)

	assert.Equal(t, int64(50), shares[0].Gross)
	assert.Equal(t, int64(51), shares[1].Gross)
	assert.Equal(t, int64(42), shares[0].Net)
	assert.Equal(t, int64(43), shares[1].Net)
	// The remainder paisa always lands on stage 2.
	assert.Equal(t, int64(0), shares[0].TDS)
	assert.Equal(t, int64(1), shares[1].TDS)
}

func TestSplitStages_SumsBackExactly(t *testing.T) {
	calc := NewDistributionCalculator(testPolicy())

	for gross := int64(999); gross <= 1_500_000; gross += 98_765 {
		d := calc.Distribute(gross)
		shares := calc.SplitStages(d, 0.5)

		assert.Equal(t, d.Gross, shares[0].Gross+shares[1].Gross)
		assert.Equal(t, d.PlatformFee, shares[0].PlatformFee+shares[1].PlatformFee)
		assert.Equal(t, d.GSTOnPlatformFee, shares[0].GST+shares[1].GST)
		assert.Equal(t, d.TDSWithheld, shares[0].TDS+shares[1].TDS)
		assert.Equal(t, d.ECOTCSAmount, shares[0].TCS+shares[1].TCS)
		assert.Equal(t, d.SupplierNet, shares[0].Net+shares[1].Net)
	}
}

func TestStageShareFor(t *testing.T) {
	calc := NewDistributionCalculator(testPolicy())
	d := calc.Distribute(500_000)

	s1 := calc.StageShareFor(d, models.StageKey1)
	s2 := calc.StageShareFor(d, models.StageKey2)

	assert.Equal(t, d.SupplierNet, s1.Net+s2.Net)
	assert.LessOrEqual(t, s1.Net, s2.Net)
}

func TestAllocate_ProportionalWithRemainderOnLast(t *testing.T) {
	calc := NewDistributionCalculator(testPolicy())

	share := StageShare{Gross: 1_000, TDS: 10, TCS: 5, Net: 985}
	items := []models.ServiceItem{
		{SupplierID: "art_1", Type: models.SupplierArtist, Amount: 100},
		{SupplierID: "ven_1", Type: models.SupplierVendor, Amount: 100},
		{SupplierID: "ven_2", Type: models.SupplierVendor, Amount: 100},
	}

	allocs := calc.Allocate(share, items)
	require.Len(t, allocs, 3)

	var gross, tds, tcs, net int64
	for _, a := range allocs {
		gross += a.Gross
		tds += a.TDS
		tcs += a.TCS
		net += a.Net
	}
	assert.Equal(t, share.Gross, gross)
	assert.Equal(t, share.TDS, tds)
	assert.Equal(t, share.TCS, tcs)
	assert.Equal(t, share.Net, net)

	assert.Equal(t, int64(333), allocs[0].Gross)
	assert.Equal(t, int64(333), allocs[1].Gross)
	assert.Equal(t, int64(334), allocs[2].Gross)
}

func TestAllocate_SingleItemGetsEverything(t *testing.T) {
	calc := NewDistributionCalculator(testPolicy())

	share := StageShare{Gross: 777, TDS: 7, TCS: 3, Net: 767}
	allocs := calc.Allocate(share, []models.ServiceItem{
		{SupplierID: "art_1", Type: models.SupplierArtist, Amount: 777},
	})

	require.Len(t, allocs, 1)
	assert.Equal(t, share.Gross, allocs[0].Gross)
	assert.Equal(t, share.Net, allocs[0].Net)
}

func TestAllocate_EmptyOrZeroItems(t *testing.T) {
	calc := NewDistributionCalculator(testPolicy())
	share := StageShare{Gross: 100, Net: 90}

	assert.Nil(t, calc.Allocate(share, nil))
	assert.Nil(t, calc.Allocate(share, []models.ServiceItem{{SupplierID: "a", Amount: 0}}))
}
