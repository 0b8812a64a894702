package lib

import (
	"context"
	"log"
	"os"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

var kafkaProducer *kafka.Producer

func GetKafkaProducer() (*kafka.Producer, error) {
	if kafkaProducer != nil {
		return kafkaProducer, nil
	}
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": os.Getenv("KAFKA_BROKER"),
		"client.id":         "tix-api",
		"acks":              "all",
	})
	if err != nil {
		log.Printf("Error initializing kafka producer: %s\n", err.Error())
		return nil, err
	}
	kafkaProducer = p
	return p, nil
}

// NewKafkaProducer Replace producer instance with custom implementation
func NewKafkaProducer(p *kafka.Producer) {
	kafkaProducer = p
}

// KafkaProduceMessage publishes a keyed message. Delivery is fire and forget;
// order lifecycle consumers tolerate the occasional miss because state lives
// in the database.
func KafkaProduceMessage(topic string, key string, value []byte) error {
	p, err := GetKafkaProducer()
	if err != nil {
		return err
	}
	err = p.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(key),
		Value:          value,
	}, nil)
	if err != nil {
		log.Printf("Error producing to [%s]: %s\n", topic, err.Error())
		return err
	}
	return nil
}

// KafkaConsumeHandler polls the given topics and hands every message body to
// handler on its own goroutine.
func KafkaConsumeHandler(groupId string, topics []string, handler func(value []byte)) error {
	master, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers": os.Getenv("KAFKA_BROKER"),
		"group.id":          groupId,
		"auto.offset.reset": "smallest",
		"retry.backoff.ms":  100,
	})
	if err != nil {
		log.Printf("Error on consumer: %s\n", err.Error())
		return err
	}
	if err := master.SubscribeTopics(topics, nil); err != nil {
		log.Printf("Error subscribing to topics: %s\n", err.Error())
		return err
	}
	go func() {
		log.Printf("[BACKGROUND]: waiting for messages on %v...\n", topics)
		run := true
		for run {
			ev := master.Poll(100)
			switch e := ev.(type) {
			case *kafka.Message:
				go handler(e.Value)
			case kafka.Error:
				log.Printf("[kafka] consumer error: %v\n", e)
				run = false
			}
		}
		master.Close()
	}()
	return nil
}

func KafkaCreateTopics(topics ...string) ([]kafka.TopicResult, error) {
	a, err := kafka.NewAdminClient(&kafka.ConfigMap{
		"bootstrap.servers": os.Getenv("KAFKA_BROKER"),
	})
	if err != nil {
		log.Printf("Error on AdminClient: %s\n", err.Error())
		return nil, err
	}
	topicsDef := []kafka.TopicSpecification{}
	for _, topic := range topics {
		topicsDef = append(topicsDef, kafka.TopicSpecification{
			Topic:         topic,
			NumPartitions: 10,
		})
	}
	result, err := a.CreateTopics(context.Background(), topicsDef)
	if err != nil {
		log.Printf("Error creating topics: %s\n", err.Error())
		return nil, err
	}
	return result, nil
}
