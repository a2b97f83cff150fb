package workorders

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FormatOrderNumber renders WO-DDMMYYYY-N for day in its own location.
func FormatOrderNumber(day time.Time, seq int64) string {
	return fmt.Sprintf("WO-%02d%02d%04d-%d", day.Day(), int(day.Month()), day.Year(), seq)
}

// DayBounds returns [start, end) of the calendar day containing t, in t's location.
func DayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}

func orderNumberLockKey(organizationID uuid.UUID, day time.Time) string {
	return fmt.Sprintf("order-number:%s:%s", organizationID, day.Format("20060102"))
}
