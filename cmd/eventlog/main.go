// cmd/eventlog/main.go is an asynchronous worker that pops lobby events
// from a Redis queue and persists them to PostgreSQL for later analysis.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"

	"github.com/dungeonbuilder/backend/internal/database"
	"github.com/dungeonbuilder/backend/internal/notify"
)

// insertLobbyEventQuery must name columns defined by the lobby_events
// table in schema.sql.
const insertLobbyEventQuery = `
	INSERT INTO lobby_events (lobby_id, event_type, status, member_count, version, occurred_at)
	VALUES ($1, $2, $3, $4, $5, to_timestamp($6))
`

// EventLogService drains the lobby event queue into the lobby_events table.
type EventLogService struct {
	redisClient *redis.Client
	queueName   string
	batchSize   int
	flushDelay  time.Duration

	batchMu  sync.Mutex
	batch    []notify.LobbyEventRecord
	ctx      context.Context
	cancelFn context.CancelFunc
}

// NewEventLogService constructs the service from environment variables or defaults.
func NewEventLogService() *EventLogService {
	batchSize := getEnvInt("EVENTLOG_BATCH_SIZE", 20)
	flushMs := getEnvInt("EVENTLOG_FLUSH_MS", 500)

	rdb := redis.NewClient(&redis.Options{
		Addr: getEnv("REDIS_ADDR", "localhost:6379"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	return &EventLogService{
		redisClient: rdb,
		queueName:   getEnv("LOBBY_EVENT_QUEUE", notify.DefaultEventQueue),
		batchSize:   batchSize,
		flushDelay:  time.Duration(flushMs) * time.Millisecond,
		batch:       make([]notify.LobbyEventRecord, 0, batchSize),
		ctx:         ctx,
		cancelFn:    cancel,
	}
}

// Run connects to the database and drains the queue until Stop is called.
func (s *EventLogService) Run() {
	database.ConnectDB()
	go s.readRedisLoop()

	log.Println("eventlog service started.")
	<-s.ctx.Done()
	s.flushBatchToDB()
	log.Println("eventlog shutting down.")
}

// readRedisLoop continuously uses BLPop to retrieve events from the queue.
func (s *EventLogService) readRedisLoop() {
	ticker := time.NewTicker(s.flushDelay)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return

		case <-ticker.C:
			s.flushBatchToDB()

		default:
			// BLPop with a short timeout so context cancellation is handled.
			res, err := s.redisClient.BLPop(s.ctx, 3*time.Second, s.queueName).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				if s.ctx.Err() != nil {
					return
				}
				log.Printf("[ERROR] BLPop: %v\n", err)
				continue
			}
			if len(res) < 2 {
				continue
			}

			var record notify.LobbyEventRecord
			if err := json.Unmarshal([]byte(res[1]), &record); err != nil {
				log.Printf("invalid lobby event record: %v\n", err)
				continue
			}
			s.appendToBatch(record)
		}
	}
}

// appendToBatch adds a record to the in-memory batch and flushes if the threshold is reached.
func (s *EventLogService) appendToBatch(record notify.LobbyEventRecord) {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()

	s.batch = append(s.batch, record)
	if len(s.batch) >= s.batchSize {
		s.flushLocked()
	}
}

// flushBatchToDB flushes the current batch to the database in a single transaction.
func (s *EventLogService) flushBatchToDB() {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	s.flushLocked()
}

func (s *EventLogService) flushLocked() {
	if len(s.batch) == 0 {
		return
	}
	batchCopy := make([]notify.LobbyEventRecord, len(s.batch))
	copy(batchCopy, s.batch)
	s.batch = s.batch[:0]

	ctx := context.Background()
	err := pgx.BeginTxFunc(ctx, database.DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range batchCopy {
			if _, err := tx.Exec(ctx, insertLobbyEventQuery,
				rec.LobbyID, rec.Type, rec.Status, rec.MemberCount, rec.Version, rec.Timestamp,
			); err != nil {
				return fmt.Errorf("insert lobby event: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		log.Printf("[ERROR] flush: %v\n", err)
	} else {
		log.Printf("Flushed %d lobby events to DB.\n", len(batchCopy))
	}
}

// Stop gracefully stops the service.
func (s *EventLogService) Stop() {
	s.cancelFn()
}

func main() {
	s := NewEventLogService()
	go s.Run()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	s.Stop()
	log.Println("Eventlog shutdown complete.")
}

// getEnv retrieves an environment variable's value or returns a default.
func getEnv(key, defVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defVal
}

// getEnvInt retrieves an integer value from an environment variable or returns a default value.
func getEnvInt(key string, defVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defVal
	}
	return i
}
