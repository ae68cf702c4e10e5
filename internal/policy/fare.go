/**
 * @description
 * Fare policy for ticket cancellation. Maps the number of whole calendar days
 * left before the journey onto the share of the fare that is retained as a
 * cancellation charge, and splits the fare into charge and refund.
 *
 * @dependencies
 * - github.com/shopspring/decimal: exact currency arithmetic.
 */

package policy

import (
	"github.com/shopspring/decimal"

	"github.com/skyconnect/booking-web/internal/domain"
)

// Tier is one band of the cancellation policy. A tier applies when the days
// left before the journey are strictly greater than AfterDays.
type Tier struct {
	AfterDays int             `json:"after_days"`
	Rate      decimal.Decimal `json:"rate"`
	Label     string          `json:"label"`
	Summary   string          `json:"summary"`
}

// tiers is ordered from the most generous band to the least.
var tiers = []Tier{
	{AfterDays: 10, Rate: decimal.RequireFromString("0.10"), Label: "Before 10+ days", Summary: "10% of the total fare will be deducted."},
	{AfterDays: 5, Rate: decimal.RequireFromString("0.20"), Label: "Before 5-9 days", Summary: "20% of the total fare will be deducted."},
	{AfterDays: 1, Rate: decimal.RequireFromString("0.50"), Label: "Before 1-4 days", Summary: "50% of the total fare will be deducted."},
}

// FullForfeitRate applies on the day before the journey, the day itself and
// after the journey has passed.
var FullForfeitRate = decimal.NewFromInt(1)

// Tiers returns a copy of the policy table for display.
func Tiers() []Tier {
	out := make([]Tier, len(tiers))
	copy(out, tiers)
	return out
}

// RateFor returns the cancellation charge rate for the given number of whole
// days before the journey.
func RateFor(daysUntilJourney int) decimal.Decimal {
	for _, tier := range tiers {
		if daysUntilJourney > tier.AfterDays {
			return tier.Rate
		}
	}
	return FullForfeitRate
}

// Quote computes the cancellation quote for a ticket cancelled on today.
// A negative fare is treated as zero.
func Quote(journeyDate, today domain.Date, totalFare decimal.Decimal) domain.CancellationQuote {
	if totalFare.IsNegative() {
		totalFare = decimal.Zero
	}

	days := today.DaysUntil(journeyDate)
	rate := RateFor(days)

	// Fares are non-negative, so rounding half away from zero is half-up.
	charge := totalFare.Mul(rate).Round(0)
	refund := totalFare.Sub(charge)
	if refund.IsNegative() {
		refund = decimal.Zero
	}

	return domain.CancellationQuote{
		DaysUntilJourney: days,
		Rate:             rate,
		Charge:           charge,
		Refund:           refund,
	}
}

// QuoteTicket is Quote applied to a ticket snapshot.
func QuoteTicket(ticket domain.Ticket, today domain.Date) domain.CancellationQuote {
	return Quote(ticket.JourneyDate, today, ticket.TotalFare)
}
