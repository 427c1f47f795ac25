package services

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"soomhub/market/internal/utils"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page requests up to Limit documents after Cursor, newest first.
type Page struct {
	Limit  int
	Cursor string
}

func (p Page) limit() int64 {
	switch {
	case p.Limit <= 0:
		return DefaultPageSize
	case p.Limit > MaxPageSize:
		return MaxPageSize
	}
	return int64(p.Limit)
}

// findOptions sorts by created_at then _id, both descending, and fetches one extra
// document to detect whether another page exists.
func (p Page) findOptions() *options.FindOptions {
	return options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(p.limit() + 1)
}

// apply narrows filter to documents strictly after the cursor position.
// A malformed cursor is ignored and the first page is returned.
func (p Page) apply(filter bson.M) bson.M {
	if p.Cursor == "" {
		return filter
	}
	at, id, err := decodeCursor(p.Cursor)
	if err != nil {
		log.Printf("Warning: ignoring invalid cursor %q: %v", p.Cursor, err)
		return filter
	}
	filter["$or"] = bson.A{
		bson.M{"created_at": bson.M{"$lt": at}},
		bson.M{"created_at": at, "_id": bson.M{"$lt": id}},
	}
	return filter
}

// mongoNow is the current UTC time at the millisecond precision Mongo stores, so
// stamped values can be matched again in later filters.
func mongoNow() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// encodeCursor uses millisecond precision, which is what Mongo stores.
func encodeCursor(at time.Time, id utils.SixID) string {
	return fmt.Sprintf("%d_%s", at.UnixMilli(), id.String())
}

func decodeCursor(cursor string) (time.Time, utils.SixID, error) {
	ms, idStr, ok := strings.Cut(cursor, "_")
	if !ok {
		return time.Time{}, utils.SixID{}, fmt.Errorf("missing separator")
	}
	n, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return time.Time{}, utils.SixID{}, fmt.Errorf("bad timestamp: %w", err)
	}
	id, err := utils.ParseSixID(idStr)
	if err != nil {
		return time.Time{}, utils.SixID{}, fmt.Errorf("bad id: %w", err)
	}
	return time.UnixMilli(n).UTC(), id, nil
}

// trimPage cuts the look-ahead document and returns the cursor for the next page, or "".
func trimPage[T any](items []T, p Page, key func(T) (time.Time, utils.SixID)) ([]T, string) {
	limit := int(p.limit())
	if len(items) <= limit {
		return items, ""
	}
	items = items[:limit]
	at, id := key(items[len(items)-1])
	return items, encodeCursor(at, id)
}
