package sweeper

import (
	"errors"
	"log"
	"time"
	"tix/src/booking"
	"tix/src/db"
	"tix/src/lib"
	"tix/src/models"
	"tix/src/types"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

// DefaultBatchSize caps how many overdue orders one sweep pass handles.
// Anything left over is picked up by the next tick.
const DefaultBatchSize = 100

// DueOrderIDs lists pending orders whose hold deadline passed before now,
// oldest deadline first.
func DueOrderIDs(tx *gorm.DB, now time.Time, limit int) ([]uint, error) {
	var ids []uint
	err := tx.
		Model(&models.Order{}).
		Where("status = ?", types.ORDER_PENDING).
		Where("reserved_until < ?", now).
		Order("reserved_until ASC").
		Limit(limit).
		Pluck("id", &ids).
		Error
	return ids, err
}

// Sweep runs one expiry pass. Each order is expired independently so one
// failure never blocks the rest of the batch; races lost to concurrent
// payments or extensions are skipped silently.
func Sweep() {
	now := time.Now()
	ids, err := DueOrderIDs(db.GetDb(), now, DefaultBatchSize)
	if err != nil {
		log.Printf("[Sweep] listing overdue orders failed: %s\n", err.Error())
		return
	}
	if len(ids) == 0 {
		return
	}
	expired := 0
	for _, id := range ids {
		if err := booking.MarkExpired(id, now); err != nil {
			if errors.Is(err, booking.ErrExpiryRaceLost) {
				continue
			}
			log.Printf("[Sweep] expiring order %d failed: %s\n", id, err.Error())
			continue
		}
		expired++
	}
	log.Printf("[Sweep] expired %d of %d overdue order(s)\n", expired, len(ids))
}

// Start schedules the periodic sweep on the shared scheduler.
func Start(interval time.Duration) error {
	s, err := lib.GetScheduler()
	if err != nil {
		return err
	}
	if _, err := s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(Sweep),
	); err != nil {
		return err
	}
	s.Start()
	log.Printf("[Sweeper] running every %s\n", interval)
	return nil
}
