// Package money holds integer minor-unit arithmetic for VND amounts.
package money

import (
	"sort"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Percent returns amount × pct / 100 truncated toward zero. VND has no
// minor unit below the dong, so fractions are dropped.
func Percent(amount, pct int64) int64 {
	if amount <= 0 || pct <= 0 {
		return 0
	}
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(pct)).
		Div(hundred).
		Truncate(0).
		IntPart()
}

// Allocate splits total across weights proportionally. Shares are floored and
// the remainder goes one unit at a time to the largest weights first, so the
// result always sums to total. Non-positive weights receive nothing.
func Allocate(total int64, weights []int64) []int64 {
	shares := make([]int64, len(weights))
	if total <= 0 {
		return shares
	}

	sum := decimal.Zero
	positive := make([]int, 0, len(weights))
	for i, w := range weights {
		if w > 0 {
			sum = sum.Add(decimal.NewFromInt(w))
			positive = append(positive, i)
		}
	}
	if len(positive) == 0 {
		return shares
	}

	t := decimal.NewFromInt(total)
	allocated := int64(0)
	for _, i := range positive {
		shares[i] = t.Mul(decimal.NewFromInt(weights[i])).Div(sum).Truncate(0).IntPart()
		allocated += shares[i]
	}

	sort.SliceStable(positive, func(a, b int) bool {
		return weights[positive[a]] > weights[positive[b]]
	})
	// each floor drops less than one unit, so remainder < len(positive)
	for k := int64(0); k < total-allocated; k++ {
		shares[positive[k]]++
	}
	return shares
}

// Sum adds amounts.
func Sum(amounts []int64) int64 {
	var total int64
	for _, a := range amounts {
		total += a
	}
	return total
}
