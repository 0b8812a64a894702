package main

import (
	"errors"
	"log"
	"net/http"
	"time"
	"tix/src/booking"
	"tix/src/config"
	"tix/src/db"
	"tix/src/ledger"
	"tix/src/models"
	"tix/src/types"
	"tix/src/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// statusForError maps domain errors onto HTTP statuses. Contention errors
// are conflicts the client can retry; broken counters are server faults.
func statusForError(err error) int {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInsufficientInventory):
		return http.StatusConflict
	case errors.Is(err, booking.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrInventoryExhausted):
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}

func orderHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/orders", func(ctx *gin.Context) {
			var body types.CreateOrderRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				log.Printf("Error in validating request: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			hold := config.HoldDuration()
			if body.HoldMinutes > 0 {
				hold = time.Duration(body.HoldMinutes) * time.Minute
			}
			order, err := booking.CreateReservation(userId, &body, hold)
			if err != nil {
				log.Printf("[CreateReservation] error: %s\n", err.Error())
				ctx.JSON(statusForError(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": order})
		}).
		GET("/orders", func(ctx *gin.Context) {
			userId := ctx.GetUint("id")
			var orders []models.Order
			db := db.GetDb()
			if err := db.
				Model(&models.Order{}).
				Where(&models.Order{UserID: userId}).
				Preload("Event").
				Preload("Items").
				Preload("Transaction").
				Order("created_at DESC").
				Limit(20).
				Find(&orders).
				Error; err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": orders})
		}).
		GET("/orders/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			userId := ctx.GetUint("id")
			var order models.Order
			db := db.GetDb()
			if err := db.
				Where(&models.Order{ID: params.ID, UserID: userId}).
				Preload("Event").
				Preload("Items.TicketType").
				Preload("Transaction").
				First(&order).
				Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.Status(http.StatusNotFound)
					return
				}
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": order})
		}).
		PUT("/orders/:id/extend", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var body types.ExtendOrderRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				log.Printf("Error in validating request: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			until, err := time.Parse(config.TIME_PARSE_FORMAT, body.ReservedUntil)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			if !ownsOrder(params.ID, userId) {
				ctx.Status(http.StatusNotFound)
				return
			}
			order, err := booking.ExtendReservation(params.ID, until)
			if err != nil {
				log.Printf("[ExtendReservation] error: %s\n", err.Error())
				ctx.JSON(statusForError(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": order})
		}).
		PUT("/orders/:id/cancel", func(ctx *gin.Context) {
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
			order, err := booking.Cancel(params.ID)
			if err != nil {
				log.Printf("[Cancel] error: %s\n", err.Error())
				ctx.JSON(statusForError(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": order})
		}).
		POST("/orders/:id/checkout", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			userId := ctx.GetUint("id")
			var order models.Order
			db := db.GetDb()
			if err := db.
				Where(&models.Order{ID: params.ID, UserID: userId}).
				Preload("Items.TicketType").
				First(&order).
				Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.Status(http.StatusNotFound)
					return
				}
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if order.Status != types.ORDER_PENDING {
				ctx.JSON(http.StatusConflict, gin.H{"error": booking.ErrInvalidState.Error()})
				return
			}
			url, sessionId, err := utils.CreateStripeCheckout(&order)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"url": url, "session_id": sessionId})
		})
	return g
}

func ownsOrder(orderId, userId uint) bool {
	var count int64
	db := db.GetDb()
	if err := db.
		Model(&models.Order{}).
		Where(&models.Order{ID: orderId, UserID: userId}).
		Count(&count).
		Error; err != nil {
		log.Printf("Error checking order owner: %s\n", err.Error())
		return false
	}
	return count > 0
}
