package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"
	"tix/src/booking"
	"tix/src/db"
	"tix/src/lib"
	"tix/src/models"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"gorm.io/gorm"
)

func stripeWebhookRoute(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	apiv1.POST("/webhook/stripe", func(ctx *gin.Context) {
		payload, err := io.ReadAll(ctx.Request.Body)
		if err != nil {
			log.Printf("Error reading request body: %s\n", err.Error())
			ctx.Status(http.StatusServiceUnavailable)
			return
		}
		whsecret := os.Getenv("STRIPE_WEBHOOK_SECRET")
		event, err := webhook.ConstructEvent(payload, ctx.GetHeader("Stripe-Signature"), whsecret)
		if err != nil {
			log.Printf("Error verifying webhook signature: %s\n", err.Error())
			ctx.Status(http.StatusBadRequest)
			return
		}
		log.Printf("[StripeEvent] %s\n", event.Type)
		if seenStripeEvent(event.ID) {
			log.Printf("[StripeEvent] %s already processed, skipping\n", event.ID)
			ctx.Status(http.StatusNoContent)
			return
		}
		handled := true
		switch event.Type {
		case "customer.created":
			var cus stripe.Customer
			err := json.Unmarshal(event.Data.Raw, &cus)
			if err != nil {
				log.Printf("[Stripe] Error parsing Customer: %s\n", err.Error())
				break
			}
			id := cus.Metadata["id"]
			atoi, err := strconv.Atoi(id)
			if err != nil {
				log.Printf("Could not retrieve user id for customer %s: %s\n", cus.ID, err.Error())
				break
			}
			userId := uint(atoi)
			db := db.GetDb()
			err = db.Transaction(func(tx *gorm.DB) error {
				return tx.
					Model(&models.User{}).
					Where("id = ?", userId).
					Updates(&models.User{StripeCustomerId: &cus.ID}).
					Error
			})
			if err != nil {
				log.Printf("Error updating user %d: %s\n", userId, err.Error())
				handled = false
			}
		case "payment_intent.succeeded":
			var pi stripe.PaymentIntent
			err := json.Unmarshal(event.Data.Raw, &pi)
			if err != nil {
				log.Printf("[Stripe] Error parsing PaymentIntent: %s\n", err.Error())
				break
			}
			log.Printf("[PaymentIntent] ID: %s %s\n", pi.ID, pi.Status)
			orderId, ok := orderIdFromMetadata(pi.Metadata)
			if !ok {
				log.Printf("[%s] no orderId in metadata, skipping\n", pi.ID)
				break
			}
			if _, err := booking.ConfirmPayment(orderId, pi.ID); err != nil {
				if errors.Is(err, booking.ErrInvalidState) {
					log.Printf("[%s] order %d is not payable: %s\n", pi.ID, orderId, err.Error())
					break
				}
				log.Printf("Error confirming payment for order %d: %s\n", orderId, err.Error())
				handled = false
				break
			}
			log.Printf("[%s] order %d confirmed\n", pi.ID, orderId)
		case "checkout.session.completed":
			var cs stripe.CheckoutSession
			err := json.Unmarshal(event.Data.Raw, &cs)
			if err != nil {
				log.Printf("[Stripe] Error parsing CheckoutSession: %s\n", err.Error())
				break
			}
			log.Printf("[CheckoutSession] ID: %s %s\n", cs.ID, cs.Status)
			orderId, ok := orderIdFromMetadata(cs.Metadata)
			if !ok {
				log.Printf("[%s] no orderId in metadata, skipping\n", cs.ID)
				break
			}
			db := db.GetDb()
			err = db.Transaction(func(tx *gorm.DB) error {
				if err := tx.
					Model(&models.Order{}).
					Where("id = ?", orderId).
					Updates(&models.Order{CheckoutSessionId: &cs.ID}).
					Error; err != nil {
					return err
				}
				return tx.
					Model(&models.Transaction{}).
					Where(&models.Transaction{OrderID: orderId}).
					Updates(&models.Transaction{
						SourceName:  "CheckoutSession",
						SourceValue: cs.ID,
					}).
					Error
			})
			if err != nil {
				log.Printf("Error updating order %d: %s\n", orderId, err.Error())
				handled = false
			}
		case "checkout.session.expired":
			var cs stripe.CheckoutSession
			err := json.Unmarshal(event.Data.Raw, &cs)
			if err != nil {
				log.Printf("[Stripe] Error parsing CheckoutSession: %s\n", err.Error())
				break
			}
			// The sweeper reclaims the hold on its own schedule; the expired
			// session only needs a log trail.
			log.Printf("[CheckoutSession] ID: %s expired\n", cs.ID)
		}
		if !handled {
			// The provider redelivers on 5xx; the dedupe key must not survive
			// a failed attempt.
			forgetStripeEvent(event.ID)
			ctx.Status(http.StatusInternalServerError)
			return
		}
		ctx.Status(http.StatusNoContent)
	})
	return apiv1
}

// seenStripeEvent reports whether this event id was already handled by any
// replica. SetNX makes the check atomic across instances; without redis we
// fall back to the state machine's own idempotency.
func seenStripeEvent(eventId string) bool {
	rd := lib.GetRedisClient()
	if rd == nil {
		return false
	}
	ok, err := rd.SetNX(context.Background(), "stripe:event:"+eventId, 1, 24*time.Hour).Result()
	if err != nil {
		log.Printf("Error deduplicating event [%s]: %s\n", eventId, err.Error())
		return false
	}
	return !ok
}

func forgetStripeEvent(eventId string) {
	rd := lib.GetRedisClient()
	if rd == nil {
		return
	}
	if err := rd.Del(context.Background(), "stripe:event:"+eventId).Err(); err != nil {
		log.Printf("Error releasing event [%s]: %s\n", eventId, err.Error())
	}
}

func orderIdFromMetadata(md map[string]string) (uint, bool) {
	raw, ok := md["orderId"]
	if !ok {
		return 0, false
	}
	atoi, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return uint(atoi), true
}
