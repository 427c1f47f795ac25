package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// Operation is a single write attempt. It must generate fresh ids on every call.
type Operation func() error

// RetryPredicate decides whether a failed attempt may be repeated.
type RetryPredicate func(err error) bool

const DefaultMaxRetries = 3

// Try runs op, retrying only when a freshly generated _id collided with an existing one.
// Violations of any other unique index are returned immediately.
func Try(ctx context.Context, op Operation) error {
	return WithRetries(ctx, op, DefaultMaxRetries, IsIDCollision)
}

// WithRetries runs op up to maxRetries+1 times while shouldRetry accepts the error,
// backing off 50ms per attempt. It gives up early when ctx is done.
func WithRetries(ctx context.Context, op Operation, maxRetries int, shouldRetry RetryPredicate) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if attempt == maxRetries || !shouldRetry(err) {
			return err
		}

		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(time.Duration(50*(attempt+1)) * time.Millisecond):
		}
	}
	return err
}

// IsMongoDuplicateKeyError checks if an error from MongoDB is a duplicate key error (code 11000).
func IsMongoDuplicateKeyError(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}

// IsIDCollision reports a duplicate key error raised by the primary key index.
func IsIDCollision(err error) bool {
	return duplicateKeyOnIndex(err, "_id_")
}

// IsDuplicateOnIndex reports a duplicate key error raised by the named unique index.
func IsDuplicateOnIndex(err error, index string) bool {
	return duplicateKeyOnIndex(err, index)
}

func duplicateKeyOnIndex(err error, index string) bool {
	needle := "index: " + index + " "
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 && strings.Contains(e.Message, needle) {
				return true
			}
		}
	}
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, e := range bwe.WriteErrors {
			if e.Code == 11000 && strings.Contains(e.Message, needle) {
				return true
			}
		}
	}
	return false
}
