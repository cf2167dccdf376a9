package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.uber.org/zap"

	"github.com/frankbria/auto-author-sub001/internal/infra/config"
)

// Mongo wraps the document database client with lifecycle management.
type Mongo struct {
	client   *mongo.Client
	database *mongo.Database
	logger   *zap.Logger
}

// NewMongo connects to the document database and verifies reachability.
func NewMongo(ctx context.Context, cfg config.MongoSettings, logger *zap.Logger) (*Mongo, error) {
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 5 * time.Second
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(connectTimeout).
		SetServerSelectionTimeout(connectTimeout)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping failed: %w", err)
	}

	logger.Info("mongo connection established",
		zap.String("database", cfg.Database),
	)

	return &Mongo{
		client:   client,
		database: client.Database(cfg.Database),
		logger:   logger,
	}, nil
}

// Database returns the configured database handle.
func (m *Mongo) Database() *mongo.Database {
	return m.database
}

// Ping verifies connectivity for readiness probes.
func (m *Mongo) Ping(ctx context.Context) error {
	if err := m.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongo health check failed: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (m *Mongo) Close(ctx context.Context) error {
	m.logger.Info("closing mongo connection")
	if err := m.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect mongo: %w", err)
	}
	return nil
}
