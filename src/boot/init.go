package boot

import (
	"encoding/json"
	"log"
	"tix/src/config"
	"tix/src/db"
	"tix/src/lib"
	awsq "tix/src/lib/aws"
	"tix/src/models"
	"tix/src/sweeper"
	"tix/src/types"
	"tix/src/utils"

	"gorm.io/gorm"
)

func InitDb() *gorm.DB {
	db := db.GetDb()

	err := db.AutoMigrate(
		&models.User{},
		&models.Event{},
		&models.Show{},
		&models.TicketType{},
		&models.Order{},
		&models.OrderItem{},
		&models.Attendee{},
		&models.Transaction{},
	)
	if err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}

	return db
}

// InitBroker creates the lifecycle topics and starts the email consumers.
// Local environments read the emails topic from kafka; deployed ones drain
// the SQS email queue instead.
func InitBroker() {
	go lib.KafkaCreateTopics("orders-paid", "orders-expired", "emails")
	if config.API_ENV == string(types.Local) {
		if err := lib.KafkaConsumeHandler("mailer", []string{"emails"}, func(value []byte) {
			handleEmailMessage(string(value))
		}); err != nil {
			log.Printf("Error starting email consumer: %s\n", err.Error())
		}
		return
	}
	consumer := awsq.NewSQSConsumer(utils.WithSuffix("emails"), handleEmailMessage)
	consumer.Listen()
}

func handleEmailMessage(body string) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		log.Printf("[mailer] could not decode message: %s\n", err.Error())
		return
	}
	input := lib.SendMailInput{
		From:     stringValue(payload, "from"),
		FromName: stringValue(payload, "from-name"),
		To:       stringSlice(payload, "to"),
		Cc:       stringSlice(payload, "cc"),
		Bcc:      stringSlice(payload, "bcc"),
		ReplyTo:  stringValue(payload, "reply-to"),
		Subject:  stringValue(payload, "subject"),
		Body:     stringValue(payload, "body"),
	}
	if html, ok := payload["html"].(bool); ok {
		input.Html = html
	}
	if err := lib.SendMail(&input); err != nil {
		log.Printf("[mailer] delivery failed: %s\n", err.Error())
	}
}

func stringValue(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func stringSlice(m map[string]any, key string) []string {
	raw, ok := m[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// InitScheduler starts the expiry sweeper on the shared scheduler.
func InitScheduler() {
	if err := sweeper.Start(config.SweepInterval()); err != nil {
		log.Printf("Error starting sweeper: %s\n", err.Error())
	}
}

func StopScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("Error retrieving Scheduler. Check logs for info")
		return
	}
	err = sched.Shutdown()
	if err != nil {
		log.Println("An error has occurred while stopping Scheduler. Check logs for info")
		return
	}
}
