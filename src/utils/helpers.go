package utils

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"
	"tix/src/config"
	"tix/src/db"
	"tix/src/ledger"
	"tix/src/lib"
	"tix/src/models"
	"tix/src/types"

	"github.com/go-co-op/gocron/v2"
	"github.com/gosimple/slug"
	"github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"
)

// WithSuffix appends the app environment to a queue or topic name so that
// local, test and production traffic never share a channel.
func WithSuffix(name string) string {
	env := os.Getenv("API_ENV")
	if env == "" {
		return name
	}
	return fmt.Sprintf("%s-%s", name, env)
}

func CreateNewEvent(params *types.CreateEventRequestBody, creatorId uint) (uint, error) {
	dateTime, err := time.Parse(config.TIME_PARSE_FORMAT, params.DateTime)
	if err != nil {
		log.Printf("Error parsing date_time: %s\n", err.Error())
		return 0, err
	}
	dateTime = time.Date(
		dateTime.Year(),
		dateTime.Month(),
		dateTime.Day(),
		dateTime.Hour(),
		dateTime.Minute(),
		0,
		0,
		dateTime.Location(),
	)
	event := models.Event{
		Title:     params.Title,
		Name:      params.Name,
		Slug:      slug.Make(params.Name),
		About:     &params.Description,
		Location:  params.Location,
		DateTime:  &dateTime,
		Status:    types.EVENT_DRAFT,
		CreatedBy: creatorId,
	}

	db := db.GetDb()
	if err := db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&event).Error
	}); err != nil {
		return 0, err
	}
	if params.Publish {
		if err := PublishEvent(event.ID); err != nil {
			log.Printf("Failed to publish event: %s\n", err.Error())
			return 0, err
		}
	}
	return event.ID, nil
}

func PublishEvent(id uint) error {
	db := db.GetDb()
	return db.Transaction(func(tx *gorm.DB) error {
		return tx.
			Model(&models.Event{}).
			Where("id = ? AND status = ?", id, types.EVENT_DRAFT).
			Update("status", types.EVENT_OPEN).
			Error
	})
}

// CreateNewTicketType creates the inventory record and its matching stripe
// product so checkout sessions can reference a stable price.
func CreateNewTicketType(params *types.CreateTicketTypeRequestBody) (uint, error) {
	ticketType := models.TicketType{
		Name:     params.Name,
		Currency: params.Currency,
		Price:    params.Price,
		EventID:  params.EventID,
		ShowID:   params.ShowID,
		Quantity: params.Quantity,
	}
	if params.MinPurchase > 0 {
		ticketType.MinTicketPurchase = params.MinPurchase
	}
	if params.MaxPurchase > 0 {
		ticketType.MaxTicketPurchase = params.MaxPurchase
	}
	if params.StartTime != nil {
		startTime, err := time.Parse(config.TIME_PARSE_FORMAT, *params.StartTime)
		if err != nil {
			return 0, err
		}
		ticketType.StartTime = &startTime
	}
	if params.EndTime != nil {
		endTime, err := time.Parse(config.TIME_PARSE_FORMAT, *params.EndTime)
		if err != nil {
			return 0, err
		}
		ticketType.EndTime = &endTime
	}

	db := db.GetDb()
	err := db.Transaction(func(tx *gorm.DB) error {
		var event models.Event
		if err := tx.
			Model(&models.Event{}).
			Where(&models.Event{ID: params.EventID}).
			First(&event).
			Error; err != nil {
			return fmt.Errorf("event %d does not exist", params.EventID)
		}
		if err := tx.Create(&ticketType).Error; err != nil {
			return err
		}
		const MINIMUM_UNITS float32 = 100
		unitAmount := ticketType.Price
		if strings.ToLower(ticketType.Currency) == "usd" {
			unitAmount = unitAmount * MINIMUM_UNITS
		}
		createParams := &stripe.ProductCreateParams{
			Name: stripe.String(ticketType.Name),
			DefaultPriceData: &stripe.ProductCreateDefaultPriceDataParams{
				Currency:          stripe.String(strings.ToLower(ticketType.Currency)),
				UnitAmountDecimal: stripe.Float64(float64(unitAmount)),
			},
			Metadata: map[string]string{
				"ticket_type_id": fmt.Sprint(ticketType.ID),
				"event_id":       fmt.Sprint(event.ID),
			},
		}
		sc := lib.GetStripeClient()
		product, err := sc.V1Products.Create(context.Background(), createParams)
		if err != nil {
			return err
		}
		return tx.
			Model(&models.TicketType{}).
			Where(&models.TicketType{ID: ticketType.ID}).
			Update("stripe_price_id", product.DefaultPrice.ID).
			Error
	})
	if err != nil {
		log.Println("Error: ", err.Error())
		return 0, err
	}
	if ticketType.StartTime != nil && ticketType.StartTime.After(time.Now()) {
		task := gocron.NewTask(announceSaleOpen, ticketType.ID)
		if _, err := lib.CreateOneTimeCronJob(*ticketType.StartTime, task); err != nil {
			log.Printf("Could not schedule sale opening for ticket type %d: %s\n", ticketType.ID, err.Error())
		}
	}
	return ticketType.ID, nil
}

// announceSaleOpen logs availability the moment a sale window opens.
func announceSaleOpen(ticketTypeId uint) {
	var tt models.TicketType
	if err := db.GetDb().Where(&models.TicketType{ID: ticketTypeId}).First(&tt).Error; err != nil {
		log.Printf("[Sales] ticket type %d not found: %s\n", ticketTypeId, err.Error())
		return
	}
	log.Printf("[Sales] ticket type %d (%s) on sale: %d available\n", tt.ID, tt.Name, ledger.Available(&tt))
}

// GetTicketTypeStats reports availability from the maintained counters and
// recomputes the held count from pending orders as a cross-check.
func GetTicketTypeStats(tx *gorm.DB, tt *models.TicketType) (*models.TicketTypeStats, error) {
	activeHeld, err := ledger.ActiveHeldQuantity(tx, tt.ID)
	if err != nil {
		return nil, err
	}
	if activeHeld != int64(tt.HeldQuantity) {
		log.Printf("[stats] ticket type %d: held counter=%d recomputed=%d\n", tt.ID, tt.HeldQuantity, activeHeld)
	}
	stats := &models.TicketTypeStats{
		TicketTypeID: tt.ID,
		Available:    ledger.Available(tt),
		Sold:         tt.SoldQuantity,
		Held:         tt.HeldQuantity,
	}
	return stats, nil
}

func GetTicketTypesForEvent(id uint, includeHidden bool) ([]*models.TicketType, error) {
	var ticketTypes []*models.TicketType
	cond := models.TicketType{EventID: id}
	db := db.GetDb()
	tx := db.Session(&gorm.Session{PrepareStmt: true})
	q := tx.Where(&cond).Order("created_at desc")
	if !includeHidden {
		q = q.Where("is_disabled = ?", false)
	}
	if err := q.Find(&ticketTypes).Error; err != nil {
		return nil, err
	}
	for _, v := range ticketTypes {
		stats, err := GetTicketTypeStats(db, v)
		if err != nil {
			return nil, err
		}
		v.Stats = stats
	}
	return ticketTypes, nil
}

// CreateStripeCheckout opens a hosted checkout session for a pending order.
// The order id and booking code travel in the session and payment intent
// metadata so the webhook can route the confirmation back.
func CreateStripeCheckout(order *models.Order) (*string, *string, error) {
	sc := lib.GetStripeClient()
	successUrl := fmt.Sprintf("%s/checkout/callback/success", os.Getenv("APP_HOST"))
	metadata := map[string]string{
		"orderId":     fmt.Sprint(order.ID),
		"bookingCode": order.BookingCode.String(),
	}
	piParams := &stripe.CheckoutSessionCreatePaymentIntentDataParams{}
	for k, v := range metadata {
		piParams.AddMetadata(k, v)
	}
	lineItems := []*stripe.CheckoutSessionCreateLineItemParams{}
	for _, item := range order.Items {
		if item.TicketType.StripePriceId != nil {
			lineItems = append(lineItems, &stripe.CheckoutSessionCreateLineItemParams{
				Price:    item.TicketType.StripePriceId,
				Quantity: stripe.Int64(int64(item.Qty)),
			})
			continue
		}
		const MINIMUM_UNITS float32 = 100
		lineItems = append(lineItems, &stripe.CheckoutSessionCreateLineItemParams{
			PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
				Currency:          stripe.String(strings.ToLower(order.Currency)),
				UnitAmountDecimal: stripe.Float64(float64(item.UnitPrice * MINIMUM_UNITS)),
				ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
					Name: stripe.String(item.TicketType.Name),
				},
			},
			Quantity: stripe.Int64(int64(item.Qty)),
		})
	}
	var expiresAt *int64
	if order.ReservedUntil != nil {
		// Stripe enforces a minimum session lifetime of 30 minutes.
		min := time.Now().Add(30 * time.Minute)
		exp := order.ReservedUntil
		if exp.Before(min) {
			exp = &min
		}
		unix := exp.Unix()
		expiresAt = &unix
	}
	createParams := stripe.CheckoutSessionCreateParams{
		SuccessURL:        stripe.String(successUrl),
		UIMode:            stripe.String("hosted"),
		Mode:              stripe.String("payment"),
		PaymentIntentData: piParams,
		LineItems:         lineItems,
		ExpiresAt:         expiresAt,
		Metadata:          metadata,
	}
	checkoutSession, err := sc.V1CheckoutSessions.Create(context.Background(), &createParams)
	if err != nil {
		log.Printf("CreateStripeCheckout failed: %s\n", err.Error())
		return nil, nil, err
	}
	log.Printf("CheckoutSessionID: %s\n", checkoutSession.ID)
	rd := lib.GetRedisClient()
	if rd != nil {
		if _, err := rd.SetEx(context.Background(), order.BookingCode.String(), checkoutSession.ID, 30*time.Minute).Result(); err != nil {
			log.Printf("Error caching value [%s]: %s\n", checkoutSession.ID, err.Error())
		}
	}
	return &checkoutSession.URL, &checkoutSession.ID, nil
}

func EncryptMessage(key []byte, message string) (string, error) {
	plaintext := []byte(message)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	cipherText := gcm.Seal(nonce, nonce, plaintext, nil)
	encodedString := hex.EncodeToString(cipherText)

	return encodedString, nil
}

func DecryptMessage(key []byte, message string) (*string, error) {
	cipherText, err := hex.DecodeString(message)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	decryptedData, err := gcm.Open(nil, cipherText[:gcm.NonceSize()], cipherText[gcm.NonceSize():], nil)
	if err != nil {
		return nil, err
	}
	decodedString := string(decryptedData)

	return &decodedString, nil
}

// TicketCode returns the opaque admission code embedded in an attendee's QR
// image. The code decrypts back to "orderId:attendeeId" at the gate.
func TicketCode(orderId, attendeeId uint) (string, error) {
	key := []byte(os.Getenv("TICKET_CODE_KEY"))
	return EncryptMessage(key, fmt.Sprintf("%d:%d", orderId, attendeeId))
}

// ParseTicketCode decrypts an admission code back into its ids.
func ParseTicketCode(code string) (orderId uint, attendeeId uint, err error) {
	key := []byte(os.Getenv("TICKET_CODE_KEY"))
	decoded, err := DecryptMessage(key, code)
	if err != nil {
		return 0, 0, err
	}
	if _, err := fmt.Sscanf(*decoded, "%d:%d", &orderId, &attendeeId); err != nil {
		return 0, 0, err
	}
	return orderId, attendeeId, nil
}
