package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/drivoro/vehicle-rental/internal/model"
)

// VehicleRepo reads the vehicle catalog tables.  The reservation
// engine only ever needs two things from the catalog: the rate card
// to price a booking and the owning partner for authorization checks.
// Catalog management (creating and editing vehicles) happens in a
// different part of the platform and is not exposed here.
type VehicleRepo struct {
	db *sql.DB
}

// NewVehicleRepo returns a VehicleRepo bound to the given database.
func NewVehicleRepo(db *sql.DB) *VehicleRepo { return &VehicleRepo{db: db} }

// RateCard returns the vehicle's pricing inputs.
func (r *VehicleRepo) RateCard(ctx context.Context, vehicleID uint64) (model.RateCard, error) {
	var (
		rc       model.RateCard
		threeDay sql.NullInt64
		weekly   sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT daily_rate_cents, three_day_rate_cents, weekly_rate_cents, currency
		 FROM vehicles WHERE id = ?`, vehicleID).
		Scan(&rc.DailyRateCents, &threeDay, &weekly, &rc.Currency)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RateCard{}, ErrVehicleNotFound
		}
		return model.RateCard{}, err
	}
	if threeDay.Valid {
		v := threeDay.Int64
		rc.ThreeDayRateCents = &v
	}
	if weekly.Valid {
		v := weekly.Int64
		rc.WeeklyRateCents = &v
	}
	return rc, nil
}

// OwnerOf returns the id of the partner owning the vehicle.
func (r *VehicleRepo) OwnerOf(ctx context.Context, vehicleID uint64) (uint64, error) {
	var partnerID uint64
	err := r.db.QueryRowContext(ctx,
		`SELECT partner_id FROM vehicles WHERE id = ?`, vehicleID).Scan(&partnerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrVehicleNotFound
		}
		return 0, err
	}
	return partnerID, nil
}

// GetByID loads a vehicle with its rate card for the read-only
// vehicle lookup endpoint.
func (r *VehicleRepo) GetByID(ctx context.Context, vehicleID uint64) (*model.Vehicle, error) {
	var (
		v        model.Vehicle
		threeDay sql.NullInt64
		weekly   sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, partner_id, plate, model, daily_rate_cents, three_day_rate_cents, weekly_rate_cents, currency
		 FROM vehicles WHERE id = ?`, vehicleID).
		Scan(&v.ID, &v.PartnerID, &v.Plate, &v.Model,
			&v.RateCard.DailyRateCents, &threeDay, &weekly, &v.RateCard.Currency)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVehicleNotFound
		}
		return nil, err
	}
	if threeDay.Valid {
		n := threeDay.Int64
		v.RateCard.ThreeDayRateCents = &n
	}
	if weekly.Valid {
		n := weekly.Int64
		v.RateCard.WeeklyRateCents = &n
	}
	return &v, nil
}
