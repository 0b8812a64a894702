package mailer

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"tix/src/lib"
	"tix/src/models"
	"tix/src/types"
	"tix/src/utils"
)

// NewMailerMessage enqueues an email for the background mailer. Local
// environments publish to the kafka emails topic; everywhere else the
// message goes through SQS.
func NewMailerMessage(input *lib.SendMailInput) error {
	emailQueue := os.Getenv("EMAIL_QUEUE")
	apiEnv := os.Getenv("API_ENV")
	emailBody := &types.JSONB{
		"from":      input.From,
		"from-name": input.FromName,
		"to":        input.To,
		"cc":        input.Cc,
		"bcc":       input.Bcc,
		"reply-to":  input.ReplyTo,
		"body":      input.Body,
		"html":      input.Html,
		"subject":   input.Subject,
	}
	body, err := json.Marshal(&emailBody)
	if err != nil {
		return err
	}
	if apiEnv == string(types.Local) {
		if err := lib.KafkaProduceMessage("emails", utils.WithSuffix(emailQueue), body); err != nil {
			return fmt.Errorf("error sending message to queue: %s", err.Error())
		}
		return nil
	}
	if err := lib.SQSProduceMessage(utils.WithSuffix(emailQueue), string(body)); err != nil {
		return fmt.Errorf("error sending message to queue: %s", err.Error())
	}
	return nil
}

// SendOrderConfirmation emails the buyer once their order is paid.
func SendOrderConfirmation(order *models.Order) {
	if order.User == nil || order.User.Email == "" {
		log.Printf("[mailer] order %d has no recipient, skipping confirmation\n", order.ID)
		return
	}
	from := os.Getenv("MAILER_FROM")
	body := fmt.Sprintf(
		"Your order %s is confirmed. Your tickets are ready under your account.",
		order.BookingCode.String(),
	)
	err := NewMailerMessage(&lib.SendMailInput{
		From:     from,
		FromName: "Tix",
		To:       []string{order.User.Email},
		Subject:  fmt.Sprintf("Order confirmed: %s", order.BookingCode.String()),
		Body:     body,
	})
	if err != nil {
		log.Printf("[mailer] could not enqueue confirmation for order %d: %s\n", order.ID, err.Error())
	}
}
