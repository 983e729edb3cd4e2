package sqlite

import (
	"database/sql"
	"time"

	"lanwatch/internal/domain"
)

// ============================================================================
// Null Type Conversion Helpers
// ============================================================================

// nullToFloatPtr safely converts sql.NullFloat64 to *float64
func nullToFloatPtr(nf sql.NullFloat64) *float64 {
	if nf.Valid {
		v := nf.Float64
		return &v
	}
	return nil
}

// floatPtrToNull safely converts *float64 to sql.NullFloat64
func floatPtrToNull(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// boolToInt stores booleans as 0/1
func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// timeToUnix stores timestamps as unix nanoseconds so MAX() compares them
// numerically
func timeToUnix(t time.Time) int64 {
	return t.UnixNano()
}

// unixToTime is the inverse of timeToUnix
func unixToTime(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// ============================================================================
// Device Row Scanner
// ============================================================================
//
// Column order must match between deviceColumns, scanArgs() and
// deviceInsertArgs().

// deviceRow holds all columns from a device query for scanning
type deviceRow struct {
	Address     string
	DisplayName string
	Location    string
	LinkedArea  string
	Status      string
	LastSeenAt  int64
	Latitude    sql.NullFloat64
	Longitude   sql.NullFloat64
	Pinned      int64
	CreatedAt   int64
}

// deviceColumns returns the column list for device queries
const deviceColumns = `address, display_name, location, linked_area, status,
	last_seen_at, latitude, longitude, pinned, created_at`

// scanArgs returns pointers to all fields for sql.Scan()
func (r *deviceRow) scanArgs() []interface{} {
	return []interface{}{
		&r.Address,     // 1
		&r.DisplayName, // 2
		&r.Location,    // 3
		&r.LinkedArea,  // 4
		&r.Status,      // 5
		&r.LastSeenAt,  // 6
		&r.Latitude,    // 7
		&r.Longitude,   // 8
		&r.Pinned,      // 9
		&r.CreatedAt,   // 10
	}
}

// toDomain converts the scanned row to a domain.Device
func (r *deviceRow) toDomain() *domain.Device {
	return &domain.Device{
		Address:     r.Address,
		DisplayName: r.DisplayName,
		Location:    r.Location,
		LinkedArea:  r.LinkedArea,
		Status:      domain.Status(r.Status),
		LastSeenAt:  unixToTime(r.LastSeenAt),
		Latitude:    nullToFloatPtr(r.Latitude),
		Longitude:   nullToFloatPtr(r.Longitude),
		Pinned:      r.Pinned != 0,
		CreatedAt:   unixToTime(r.CreatedAt),
	}
}

// deviceInsertArgs returns the values for an INSERT in deviceColumns order
func deviceInsertArgs(d *domain.Device) []interface{} {
	return []interface{}{
		d.Address,
		d.DisplayName,
		d.Location,
		d.LinkedArea,
		string(d.Status),
		timeToUnix(d.LastSeenAt),
		floatPtrToNull(d.Latitude),
		floatPtrToNull(d.Longitude),
		boolToInt(d.Pinned),
		timeToUnix(d.CreatedAt),
	}
}
