package main

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/mongo"

	"permit-watch/internal/config"
	"permit-watch/internal/domain/entity"
	"permit-watch/internal/infra/adapter/persistence/mongodb"
	"permit-watch/internal/infra/adapter/persistence/postgres"
	"permit-watch/internal/infra/db"
	"permit-watch/internal/repository"
	"permit-watch/internal/resilience/circuitbreaker"
)

// stores holds one record store per source kind over a shared backend.
type stores struct {
	feed    repository.RecordStore[*entity.FeedRecord]
	listing repository.RecordStore[*entity.ListingRecord]
	portal  repository.RecordStore[*entity.PortalRecord]
	breaker *circuitbreaker.DBCircuitBreaker // nil for MongoDB
	close   func() error
}

func newFeedRecord() *entity.FeedRecord       { return &entity.FeedRecord{} }
func newListingRecord() *entity.ListingRecord { return &entity.ListingRecord{} }
func newPortalRecord() *entity.PortalRecord   { return &entity.PortalRecord{} }

// openStores connects the backend selected by the STORE_URL scheme and
// prepares its collections or tables.
func openStores(ctx context.Context, logger *slog.Logger, cfg config.StoreConfig) (*stores, error) {
	backend, err := cfg.Backend()
	if err != nil {
		return nil, err
	}
	logger.Info("opening store", slog.String("backend", backend))

	switch backend {
	case config.BackendMongo:
		return openMongo(ctx, cfg)
	default:
		return openPostgres(ctx, cfg)
	}
}

func openMongo(ctx context.Context, cfg config.StoreConfig) (*stores, error) {
	client, err := mongodb.Connect(ctx, cfg.URL)
	if err != nil {
		return nil, err
	}
	database := client.Database(cfg.Database)

	st := &stores{close: func() error { return mongodb.Disconnect(client) }}
	if st.feed, err = mongoStore(ctx, database, cfg.FeedCollection, newFeedRecord); err != nil {
		return nil, closeOnErr(st, err)
	}
	if st.listing, err = mongoStore(ctx, database, cfg.ListingCollection, newListingRecord); err != nil {
		return nil, closeOnErr(st, err)
	}
	if st.portal, err = mongoStore(ctx, database, cfg.PortalCollection, newPortalRecord); err != nil {
		return nil, closeOnErr(st, err)
	}
	return st, nil
}

func mongoStore[T entity.Record](ctx context.Context, database *mongo.Database, name string, newRecord func() T) (repository.RecordStore[T], error) {
	coll := database.Collection(name)
	if err := mongodb.EnsureIndexes(ctx, coll); err != nil {
		return nil, err
	}
	return mongodb.NewRecordRepo(coll, newRecord), nil
}

func openPostgres(ctx context.Context, cfg config.StoreConfig) (*stores, error) {
	database, err := db.Open(ctx, cfg.URL)
	if err != nil {
		return nil, err
	}
	st := &stores{close: database.Close}

	tables := []string{cfg.FeedCollection, cfg.ListingCollection, cfg.PortalCollection}
	if err := db.MigrateUp(ctx, database, tables...); err != nil {
		return nil, closeOnErr(st, err)
	}

	conn := circuitbreaker.NewDBCircuitBreaker(database)
	st.breaker = conn
	if st.feed, err = postgres.NewRecordRepo(conn, cfg.FeedCollection, newFeedRecord); err != nil {
		return nil, closeOnErr(st, err)
	}
	if st.listing, err = postgres.NewRecordRepo(conn, cfg.ListingCollection, newListingRecord); err != nil {
		return nil, closeOnErr(st, err)
	}
	if st.portal, err = postgres.NewRecordRepo(conn, cfg.PortalCollection, newPortalRecord); err != nil {
		return nil, closeOnErr(st, err)
	}
	return st, nil
}

func closeOnErr(st *stores, err error) error {
	if cerr := st.close(); cerr != nil {
		return fmt.Errorf("%w (close: %v)", err, cerr)
	}
	return err
}
