package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"permit-watch/internal/domain/entity"
	"permit-watch/internal/repository"
)

// RecordRepo stores one record kind in a collection with a unique index on id.
type RecordRepo[T entity.Record] struct {
	coll      *mongo.Collection
	newRecord func() T
}

// NewRecordRepo returns a repo over coll. newRecord must return a fresh,
// non-nil value that FindByID can decode into.
func NewRecordRepo[T entity.Record](coll *mongo.Collection, newRecord func() T) repository.RecordStore[T] {
	return &RecordRepo[T]{coll: coll, newRecord: newRecord}
}

func (r *RecordRepo[T]) FindByID(ctx context.Context, id string) (T, bool, error) {
	var zero T
	rec := r.newRecord()
	err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("FindByID: %w", err)
	}
	return rec, true, nil
}

func (r *RecordRepo[T]) Save(ctx context.Context, record T) error {
	if _, err := r.coll.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	return nil
}

// InsertIfAbsent upserts with $setOnInsert so an existing document is never
// modified. A duplicate key error means a concurrent writer won the race.
func (r *RecordRepo[T]) InsertIfAbsent(ctx context.Context, record T) (bool, error) {
	fields, err := toSetOnInsert(record)
	if err != nil {
		return false, fmt.Errorf("InsertIfAbsent: %w", err)
	}

	res, err := r.coll.UpdateOne(ctx,
		bson.M{"id": record.RecordID()},
		bson.M{"$setOnInsert": fields},
		options.Update().SetUpsert(true),
	)
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("InsertIfAbsent: %w", err)
	}
	return res.UpsertedCount == 1, nil
}

// toSetOnInsert encodes record and drops the keys the upsert filter already sets.
func toSetOnInsert(record any) (bson.M, error) {
	raw, err := bson.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	var fields bson.M
	if err := bson.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	delete(fields, "id")
	delete(fields, "_id")
	return fields, nil
}
