package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path"
	"time"
	"tix/src/db"
	"tix/src/lib"
	"tix/src/models"
	"tix/src/types"
	"tix/src/utils"

	"github.com/gin-gonic/gin"
	"github.com/yeqown/go-qrcode"
	"gorm.io/gorm"
)

func attendeeHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/orders/:id/attendees", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			userId := ctx.GetUint("id")
			if !ownsOrder(params.ID, userId) {
				ctx.Status(http.StatusNotFound)
				return
			}
			var attendees []models.Attendee
			db := db.GetDb()
			if err := db.
				Where(&models.Attendee{OrderID: params.ID}).
				Preload("TicketType").
				Order("seat_number asc").
				Find(&attendees).
				Error; err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": attendees})
		}).
		GET("/orders/:id/attendees/:attendeeId/ticket", func(ctx *gin.Context) {
			var params types.AttendeeCodeURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			userId := ctx.GetUint("id")
			if !ownsOrder(params.OrderID, userId) {
				ctx.Status(http.StatusNotFound)
				return
			}
			var attendee models.Attendee
			db := db.GetDb()
			if err := db.
				Where(&models.Attendee{ID: params.AttendeeID, OrderID: params.OrderID}).
				First(&attendee).
				Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.Status(http.StatusNotFound)
					return
				}
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			cacheKey := fmt.Sprintf("eticket:%d:%d", attendee.OrderID, attendee.ID)
			rd := lib.GetRedisClient()
			var code string
			if rd != nil {
				code, _ = rd.Get(context.Background(), cacheKey).Result()
			}
			if code == "" {
				generated, err := utils.TicketCode(attendee.OrderID, attendee.ID)
				if err != nil {
					log.Printf("Error encrypting admission code: %s\n", err.Error())
					ctx.Status(http.StatusInternalServerError)
					return
				}
				code = generated
				if rd != nil {
					rd.SetEx(context.Background(), cacheKey, code, 2*time.Hour)
				}
			}
			qrc, err := qrcode.New(code)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			tempdir := os.Getenv("TEMP_DIR")
			filename := fmt.Sprintf("eticket_%d_%d.jpeg", attendee.OrderID, attendee.ID)
			filepath := path.Join(tempdir, filename)
			if err := qrc.Save(filepath); err != nil {
				log.Printf("Could not save qrcode to file [%s]: %s\n", filepath, err.Error())
				ctx.Status(http.StatusInternalServerError)
				return
			}
			ctx.FileAttachment(filepath, "eticket.jpeg")
		}).
		POST("/check-in", func(ctx *gin.Context) {
			var body types.CheckInRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				log.Printf("Error in validating request: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			orderId, attendeeId, err := utils.ParseTicketCode(body.Code)
			if err != nil {
				log.Printf("Error decrypting admission code: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid code"})
				return
			}
			staffId := ctx.GetUint("id")
			var attendee models.Attendee
			db := db.GetDb()
			if err := db.Transaction(func(tx *gorm.DB) error {
				if err := tx.
					Where(&models.Attendee{ID: attendeeId, OrderID: orderId}).
					Preload("Order").
					First(&attendee).
					Error; err != nil {
					return err
				}
				if attendee.Order.Status != types.ORDER_PAID {
					return errors.New("order is not paid")
				}
				if attendee.CheckedInAt != nil {
					return errors.New("attendee already checked in")
				}
				now := time.Now()
				// The read above is unlocked; the null guard here is what
				// serializes two gates scanning the same code.
				res := tx.
					Model(&models.Attendee{}).
					Where("id = ? AND checked_in_at IS NULL", attendee.ID).
					Updates(&models.Attendee{CheckedInAt: &now, CheckedInBy: &staffId})
				if res.Error != nil {
					return res.Error
				}
				if res.RowsAffected == 0 {
					return errors.New("attendee already checked in")
				}
				attendee.CheckedInAt = &now
				attendee.CheckedInBy = &staffId
				return nil
			}); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.Status(http.StatusNotFound)
					return
				}
				ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": attendee})
		})
	return g
}
