package store

import (
	"context"
	"fmt"
	"time"

	"github.com/cropscan/apiserver/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type scanDocument struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	FileName   string             `bson:"fileName"`
	Disease    string             `bson:"disease"`
	Confidence string             `bson:"confidence"`
	Severity   string             `bson:"severity"`
	Treatment  string             `bson:"treatment"`
	CreatedAt  time.Time          `bson:"createdAt"`
}

func (d scanDocument) toScan() types.ScanHistory {
	return types.ScanHistory{
		ID:         d.ID.Hex(),
		FileName:   d.FileName,
		Disease:    d.Disease,
		Confidence: d.Confidence,
		Severity:   d.Severity,
		Treatment:  d.Treatment,
		CreatedAt:  d.CreatedAt.UTC(),
	}
}

// MongoScanRepository handles persistence for scan history in a MongoDB collection.
type MongoScanRepository struct {
	coll *mongo.Collection
}

func NewMongoScanRepository(coll *mongo.Collection) *MongoScanRepository {
	return &MongoScanRepository{coll: coll}
}

// EnsureIndexes creates the index backing the most-recent listing.
func (r *MongoScanRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "createdAt", Value: -1}},
		Options: options.Index().SetName("createdAt_desc"),
	})
	if err != nil {
		return fmt.Errorf("create scan indexes: %w", err)
	}
	return nil
}

func (r *MongoScanRepository) ListRecent(ctx context.Context, limit int) ([]types.ScanHistory, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer cursor.Close(ctx)

	scans := make([]types.ScanHistory, 0, limit)
	for cursor.Next(ctx) {
		var doc scanDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode scan: %w", err)
		}
		scans = append(scans, doc.toScan())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	return scans, nil
}

func (r *MongoScanRepository) Create(ctx context.Context, scan types.ScanHistory) (types.ScanHistory, error) {
	// BSON dates carry millisecond precision.
	scan.CreatedAt = scan.CreatedAt.UTC().Truncate(time.Millisecond)

	doc := scanDocument{
		FileName:   scan.FileName,
		Disease:    scan.Disease,
		Confidence: scan.Confidence,
		Severity:   scan.Severity,
		Treatment:  scan.Treatment,
		CreatedAt:  scan.CreatedAt,
	}
	result, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		return types.ScanHistory{}, fmt.Errorf("create scan: %w", err)
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		scan.ID = oid.Hex()
	}
	return scan, nil
}

func (r *MongoScanRepository) Count(ctx context.Context) (int64, error) {
	total, err := r.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count scans: %w", err)
	}
	return total, nil
}

func (r *MongoScanRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.coll.DeleteMany(ctx, bson.D{}); err != nil {
		return fmt.Errorf("delete scans: %w", err)
	}
	return nil
}
