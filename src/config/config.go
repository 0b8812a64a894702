package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

func GetDSN() string {
	DATABASE_HOST := os.Getenv("DATABASE_HOST")
	DATABASE_PORT := os.Getenv("DATABASE_PORT")
	DATABASE_SSLMODE := os.Getenv("DATABASE_SSLMODE")
	DATABASE_TIMEZONE := os.Getenv("DATABASE_TIMEZONE")
	DATABASE_USER := os.Getenv("DATABASE_USER")
	DATABASE_PASSWORD := os.Getenv("DATABASE_PASSWORD")
	DATABASE_NAME := os.Getenv("DATABASE_NAME")
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s", DATABASE_HOST, DATABASE_USER, DATABASE_PASSWORD, DATABASE_NAME, DATABASE_PORT, DATABASE_SSLMODE, DATABASE_TIMEZONE)
	return dsn
}

const TIME_PARSE_FORMAT = "2006-01-02 15:04:05 -07:00"

var API_ENV = os.Getenv("API_ENV")

// HoldDuration is how long a new order keeps its inventory hold before the
// sweeper may reclaim it.
func HoldDuration() time.Duration {
	env := os.Getenv("ORDER_HOLD_MINUTES")
	mins, err := strconv.Atoi(env)
	if err != nil || mins < 1 {
		mins = 15
	}
	return time.Duration(mins) * time.Minute
}

func SweepInterval() time.Duration {
	env := os.Getenv("SWEEP_INTERVAL_SECONDS")
	secs, err := strconv.Atoi(env)
	if err != nil || secs < 1 {
		secs = 30
	}
	return time.Duration(secs) * time.Second
}
