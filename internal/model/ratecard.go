package model

// RateCard carries the pricing inputs for one vehicle.  Rates are
// totals for their tier in the currency's minor unit: DailyRateCents
// buys one day, ThreeDayRateCents buys three days, WeeklyRateCents
// buys seven.  Only the daily rate is mandatory; absent tiers fall
// back to a fixed discount on the daily rate.  The catalog owns these
// values, the engine treats them as trusted input.
type RateCard struct {
	DailyRateCents    int64  `json:"daily_rate_cents"`
	ThreeDayRateCents *int64 `json:"three_day_rate_cents,omitempty"`
	WeeklyRateCents   *int64 `json:"weekly_rate_cents,omitempty"`
	Currency          string `json:"currency"`
}

// Vehicle mirrors the columns of the vehicles table that the
// reservation engine needs: ownership for authorization checks and
// the rate card for pricing.  Catalog management itself lives
// elsewhere.
//
// Fields:
//
//	ID        – primary key identifier.
//	PartnerID – user (role PARTNER) who owns the vehicle.
//	Plate     – registration plate, display only.
//	Model     – make/model label, display only.
//	RateCard  – pricing inputs, see RateCard.
type Vehicle struct {
	ID        uint64   `json:"id"`
	PartnerID uint64   `json:"partner_id"`
	Plate     string   `json:"plate"`
	Model     string   `json:"model"`
	RateCard  RateCard `json:"rate_card"`
}
