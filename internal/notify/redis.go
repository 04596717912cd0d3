// internal/notify/redis.go
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/dungeonbuilder/backend/internal/models"
)

// Rdb is the global Redis client. Connect it once at application startup.
var Rdb *redis.Client

// DefaultEventQueue is the Redis list the event log worker drains.
var DefaultEventQueue = "lobby_events"

// LobbyEventRecord is the projection of a lobby change pushed to the
// event queue and published on the lobby's pub/sub channel.
type LobbyEventRecord struct {
	Type        string             `json:"type"`
	LobbyID     uuid.UUID          `json:"lobby_id"`
	Status      models.LobbyStatus `json:"status"`
	MemberCount int                `json:"member_count"`
	Version     int64              `json:"version"`
	Timestamp   int64              `json:"timestamp"`
}

// ChannelFor names the pub/sub channel carrying events for one lobby.
func ChannelFor(lobbyID uuid.UUID) string {
	return "lobby:" + lobbyID.String()
}

// ConnectRedis initializes the global Redis client with environment
// variables REDIS_ADDR (default "localhost:6379") and REDIS_DB.
func ConnectRedis() error {
	addr := getEnv("REDIS_ADDR", "localhost:6379")
	dbIdx := getEnvInt("REDIS_DB", 0)

	Rdb = redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := Rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return nil
}

// Publisher fans lobby changes out to the per-lobby pub/sub channel and
// onto the durable event queue. It implements the lobby core's
// NotificationSink: publish failures are logged and swallowed, never
// surfaced to the mutating operation.
type Publisher struct {
	Client *redis.Client
	Queue  string
	Logger *logrus.Logger
}

// NewPublisher builds a Publisher over the given client.
func NewPublisher(client *redis.Client, logger *logrus.Logger) *Publisher {
	return &Publisher{
		Client: client,
		Queue:  getEnv("LOBBY_EVENT_QUEUE", DefaultEventQueue),
		Logger: logger,
	}
}

// LobbyChanged publishes the lobby's new state.
func (p *Publisher) LobbyChanged(ctx context.Context, l *models.Lobby) {
	record := LobbyEventRecord{
		Type:        "lobby_changed",
		LobbyID:     l.ID,
		Status:      l.Status,
		MemberCount: len(l.Members),
		Version:     l.Version,
		Timestamp:   time.Now().Unix(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		p.Logger.Warnf("notify: failed to marshal lobby event: %v", err)
		return
	}

	if err := p.Client.Publish(ctx, ChannelFor(l.ID), data).Err(); err != nil {
		p.Logger.Warnf("notify: publish to %s failed: %v", ChannelFor(l.ID), err)
	}
	if err := p.Client.RPush(ctx, p.Queue, data).Err(); err != nil {
		p.Logger.Warnf("notify: RPush to %s failed: %v", p.Queue, err)
	}
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
