package funding_test

import (
	"testing"

	"github.com/carelink/funding-engine/funding"
	"github.com/stretchr/testify/assert"
)

func testBudget() funding.Budget {
	return funding.Budget{
		ClientID: "client-1",
		SIL: funding.CategoryBudget{
			Total:         dec("50000"),
			Remaining:     dec("1000.00"),
			AllowedRatios: []funding.StaffRatio{funding.Ratio1to1, funding.Ratio1to2},
		},
		CommunityAccess: funding.CategoryBudget{
			Total:         dec("8000"),
			Remaining:     dec("100.00"),
			AllowedRatios: []funding.StaffRatio{funding.Ratio1to3},
		},
		CapacityBuilding: funding.CategoryBudget{
			Total:     dec("2000"),
			Remaining: dec("2000"),
		},
	}
}

func TestValidate_Sufficient(t *testing.T) {
	res := funding.Validate(testBudget(), funding.Deduction{Category: funding.CategorySIL, Amount: dec("520.00")})

	assert.True(t, res.IsValid)
	assertDecimal(t, "1000.00", res.Remaining)
	assert.Empty(t, res.Message)
}

func TestValidate_ExactlyRemaining_IsValid(t *testing.T) {
	res := funding.Validate(testBudget(), funding.Deduction{Category: funding.CategorySIL, Amount: dec("1000")})
	assert.True(t, res.IsValid)
}

func TestValidate_Insufficient_MessageHasBothFigures(t *testing.T) {
	// GIVEN: CommunityAccess has $100.00 left
	// WHEN: validating a $1,234.50 deduction
	// THEN: invalid, message carries both formatted amounts
	res := funding.Validate(testBudget(), funding.Deduction{Category: funding.CategoryCommunityAccess, Amount: dec("1234.5")})

	assert.False(t, res.IsValid)
	assertDecimal(t, "100", res.Remaining)
	assert.Contains(t, res.Message, "$100.00")
	assert.Contains(t, res.Message, "$1,234.50")
	assert.Contains(t, res.Message, "CommunityAccess")
}

func TestValidate_InvalidCategory(t *testing.T) {
	res := funding.Validate(testBudget(), funding.Deduction{Category: "Transport", Amount: dec("1")})

	assert.False(t, res.IsValid)
	assert.Equal(t, funding.MsgInvalidCategory, res.Message)
	assert.True(t, res.Remaining.IsZero())
}

func TestValidate_DoesNotMutateBudget(t *testing.T) {
	b := testBudget()
	funding.Validate(b, funding.Deduction{Category: funding.CategorySIL, Amount: dec("10")})
	assertDecimal(t, "1000.00", b.SIL.Remaining)
}

func TestIsRatioAllowed(t *testing.T) {
	b := testBudget()

	assert.True(t, funding.IsRatioAllowed(b, funding.CategorySIL, funding.Ratio1to1))
	assert.True(t, funding.IsRatioAllowed(b, funding.CategorySIL, funding.Ratio1to2))
	assert.False(t, funding.IsRatioAllowed(b, funding.CategorySIL, funding.Ratio1to3))
	assert.True(t, funding.IsRatioAllowed(b, funding.CategoryCommunityAccess, funding.Ratio1to3))

	// Missing list allows nothing
	assert.False(t, funding.IsRatioAllowed(b, funding.CategoryCapacityBuilding, funding.Ratio1to1))
	// Unknown category allows nothing
	assert.False(t, funding.IsRatioAllowed(b, "Transport", funding.Ratio1to1))
}

func TestBudget_With(t *testing.T) {
	b := testBudget()
	updated := b.With(funding.CategoryCapacityBuilding, funding.CategoryBudget{Remaining: dec("5")})

	cb, ok := updated.For(funding.CategoryCapacityBuilding)
	assert.True(t, ok)
	assertDecimal(t, "5", cb.Remaining)
	assertDecimal(t, "2000", b.CapacityBuilding.Remaining)

	assert.Equal(t, b, b.With("Transport", funding.CategoryBudget{}))
}
