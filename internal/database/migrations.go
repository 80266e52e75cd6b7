package database

import (
	"github.com/chachabrian/propnest-backend/internal/models"
	"gorm.io/gorm"
)

func RunMigrations(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Property{},
		&models.Booking{},
		&models.Payment{},
		&models.Chat{},
		&models.ChatMessage{},
		&models.DirectMessage{},
		&models.OTP{},
	)
	if err != nil {
		return err
	}

	statements := []string{
		// Enum-like columns
		`ALTER TABLE users DROP CONSTRAINT IF EXISTS users_role_check`,
		`ALTER TABLE users ADD CONSTRAINT users_role_check CHECK (role IN ('owner', 'seeker'))`,
		`ALTER TABLE properties DROP CONSTRAINT IF EXISTS properties_type_check`,
		`ALTER TABLE properties ADD CONSTRAINT properties_type_check CHECK (type IN ('flat', 'house', 'pg'))`,
		`ALTER TABLE bookings DROP CONSTRAINT IF EXISTS bookings_status_check`,
		`ALTER TABLE bookings ADD CONSTRAINT bookings_status_check CHECK (status IN ('pending', 'accepted', 'rejected'))`,
		`ALTER TABLE bookings DROP CONSTRAINT IF EXISTS bookings_dates_check`,
		`ALTER TABLE bookings ADD CONSTRAINT bookings_dates_check CHECK (check_in < check_out)`,
		`ALTER TABLE payments DROP CONSTRAINT IF EXISTS payments_status_check`,
		`ALTER TABLE payments ADD CONSTRAINT payments_status_check CHECK (status IN ('pending', 'completed'))`,

		// No two live bookings of a property may share a day. The ranges are
		// closed to match the inclusive overlap test used by the service.
		`CREATE EXTENSION IF NOT EXISTS btree_gist`,
		`ALTER TABLE bookings DROP CONSTRAINT IF EXISTS bookings_no_overlap`,
		`ALTER TABLE bookings ADD CONSTRAINT bookings_no_overlap EXCLUDE USING gist (
			property_id WITH =,
			tstzrange(check_in, check_out, '[]') WITH &&
		) WHERE (status IN ('pending', 'accepted') AND deleted_at IS NULL)`,
	}

	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}

	return nil
}
