package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/b3datalake/datalake-api/internal/models"
)

// MongoHistoryRepo stores UploadRecords in the history collection.
type MongoHistoryRepo struct {
	col *mongo.Collection
}

// NewMongoHistoryRepo wraps col. Filename uniqueness relies on the unique
// index created by database.Initialize.
func NewMongoHistoryRepo(col *mongo.Collection) *MongoHistoryRepo {
	return &MongoHistoryRepo{col: col}
}

// ExistsByFilename reports whether an upload with this exact name is recorded.
func (m *MongoHistoryRepo) ExistsByFilename(ctx context.Context, filename string) (bool, error) {
	err := m.col.FindOne(ctx, bson.M{"filename": filename}, options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Insert records rec and fills in its ID. A unique-index violation maps to
// ErrDuplicate.
func (m *MongoHistoryRepo) Insert(ctx context.Context, rec *models.UploadRecord) error {
	res, err := m.col.InsertOne(ctx, rec)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		rec.ID = oid.Hex()
	}
	return nil
}

// Delete removes the record for filename. A missing record is not an error.
func (m *MongoHistoryRepo) Delete(ctx context.Context, filename string) error {
	_, err := m.col.DeleteOne(ctx, bson.M{"filename": filename})
	return err
}

// List returns matching uploads in insertion order.
func (m *MongoHistoryRepo) List(ctx context.Context, f HistoryFilter, skip, limit int64) ([]*models.UploadRecord, error) {
	filter := bson.M{}
	if f.Filename != "" {
		filter["filename"] = f.Filename
	}
	if !f.From.IsZero() {
		filter["upload_date"] = bson.M{"$gte": f.From, "$lt": f.To}
	}
	opts := options.Find().SetSkip(skip).SetLimit(limit).SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := m.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*models.UploadRecord{}
	for cur.Next(ctx) {
		var rec models.UploadRecord
		if err := cur.Decode(&rec); err != nil {
			return nil, err
		}
		out = append(out, &rec)
	}
	return out, cur.Err()
}

// MongoRecordRepo stores DataRecords in the datalake collection.
type MongoRecordRepo struct {
	col *mongo.Collection
}

// NewMongoRecordRepo wraps col.
func NewMongoRecordRepo(col *mongo.Collection) *MongoRecordRepo {
	return &MongoRecordRepo{col: col}
}

// InsertMany writes all rows in one ordered bulk insert. An empty batch is a no-op.
func (m *MongoRecordRepo) InsertMany(ctx context.Context, recs []models.DataRecord) error {
	if len(recs) == 0 {
		return nil
	}
	docs := make([]interface{}, len(recs))
	for i := range recs {
		docs[i] = recs[i]
	}
	_, err := m.col.InsertMany(ctx, docs)
	return err
}

var recordProjection = bson.M{
	"_id":                   0,
	models.ColReportDate:    1,
	models.ColTicker:        1,
	models.ColMarketName:    1,
	models.ColSecurityCat:   1,
	models.ColISIN:          1,
	models.ColCorporateName: 1,
}

// Search matches f exactly and projects the six stored columns without _id.
func (m *MongoRecordRepo) Search(ctx context.Context, f RecordFilter, skip, limit int64) ([]models.DataRecord, error) {
	filter := bson.M{}
	if f.Ticker != "" {
		filter[models.ColTicker] = f.Ticker
	}
	if f.ReportDate != "" {
		filter[models.ColReportDate] = f.ReportDate
	}
	opts := options.Find().SetSkip(skip).SetLimit(limit).SetProjection(recordProjection)
	cur, err := m.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []models.DataRecord{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
