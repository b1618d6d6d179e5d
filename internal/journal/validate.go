package journal

import (
	"github.com/shopspring/decimal"

	"github.com/tallyhq/tally/internal/fault"
)

// Epsilon is the fixed balance tolerance. It absorbs floating rounding
// from callers, nothing more; it is not a business allowance.
var Epsilon = decimal.New(1, -2) // 0.01

// LineInput is one requested entry line.
type LineInput struct {
	AccountID    string
	Description  string
	DebitAmount  decimal.Decimal
	CreditAmount decimal.Decimal
}

// ValidateLines enforces the per-line invariants: at least two lines,
// a resolvable account on each, and exactly one positive side per line.
// Returns the debit and credit totals.
func ValidateLines(lines []LineInput) (totalDebit, totalCredit decimal.Decimal, err error) {
	if len(lines) < 2 {
		return decimal.Zero, decimal.Zero, fault.Validation("a journal entry requires at least 2 lines")
	}

	totalDebit = decimal.Zero
	totalCredit = decimal.Zero
	for i, line := range lines {
		if line.AccountID == "" {
			return decimal.Zero, decimal.Zero, fault.Validation("line %d: account is required", i+1)
		}
		if line.DebitAmount.IsNegative() || line.CreditAmount.IsNegative() {
			return decimal.Zero, decimal.Zero, fault.Validation("line %d: amounts cannot be negative", i+1)
		}
		hasDebit := line.DebitAmount.IsPositive()
		hasCredit := line.CreditAmount.IsPositive()
		if hasDebit == hasCredit {
			return decimal.Zero, decimal.Zero, fault.Validation("line %d: exactly one of debit or credit must be set", i+1)
		}
		totalDebit = totalDebit.Add(line.DebitAmount)
		totalCredit = totalCredit.Add(line.CreditAmount)
	}
	return totalDebit, totalCredit, nil
}

// Balanced reports whether the totals agree within Epsilon.
func Balanced(totalDebit, totalCredit decimal.Decimal) bool {
	return totalDebit.Sub(totalCredit).Abs().LessThan(Epsilon)
}
