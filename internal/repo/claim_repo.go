// Package repo – moderation claim persistence.
//
// Claim acquisition is the one place a TOCTOU race would hand the same
// report to two moderators, so it is written as a single atomic conditional
// upsert: the claims table keys on report_id, and the ON CONFLICT branch
// only fires when the existing claim has lapsed. Zero rows affected means
// someone else holds an active claim.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cultivarhq/go-moderation-backend/internal/domain"
)

// TryClaim attempts to acquire (or take over a lapsed) claim on reportID in
// one conditional write. On success the stored claim is returned. When an
// active claim by another moderator exists, (nil, nil) is returned and the
// caller reads the holder via GetClaim for its conflict diagnostics.
func TryClaim(ctx context.Context, db *gorm.DB, reportID, moderatorID string, ttl time.Duration) (*domain.ModerationClaim, error) {
	now := time.Now().UTC()
	c := &domain.ModerationClaim{
		ReportID:    reportID,
		ModeratorID: moderatorID,
		ClaimedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
	res := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "report_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"moderator_id": moderatorID,
			"claimed_at":   now,
			"expires_at":   now.Add(ttl),
		}),
		// Supersede only lapsed claims; an active claim wins the conflict.
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Lte{Column: clause.Column{Table: "moderation_claims", Name: "expires_at"}, Value: now},
		}},
	}).Create(c)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return c, nil
}

// GetClaim fetches the claim row for a report, or ErrNotFound. Callers
// decide activity via ModerationClaim.Active.
func GetClaim(ctx context.Context, db *gorm.DB, reportID string) (*domain.ModerationClaim, error) {
	var c domain.ModerationClaim
	if err := db.WithContext(ctx).Where("report_id = ?", reportID).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ClearClaim drops whatever claim exists on a report, holder regardless.
// Called when the report leaves the review queue for good.
func ClearClaim(ctx context.Context, db *gorm.DB, reportID string) error {
	return db.WithContext(ctx).
		Where("report_id = ?", reportID).
		Delete(&domain.ModerationClaim{}).Error
}

// ReleaseClaim drops a moderator's own claim early. Releasing a claim held
// by someone else is a no-op (zero rows), not an error.
func ReleaseClaim(ctx context.Context, db *gorm.DB, reportID, moderatorID string) error {
	return db.WithContext(ctx).
		Where("report_id = ? AND moderator_id = ?", reportID, moderatorID).
		Delete(&domain.ModerationClaim{}).Error
}
