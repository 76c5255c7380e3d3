package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/marketpulse/marketpulse/internal/config"
	"github.com/marketpulse/marketpulse/internal/types"
)

const (
	collInArticles   = "in_articles"
	collProcArticles = "proc_articles"
	collCalcMetrics  = "calc_metrics"
	collRcmdResults  = "rcmd_results"
	collPriceBars    = "price_bars"
)

// MongoStore persists pipeline records in MongoDB.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	logger *slog.Logger
}

// NewMongoStore connects to MongoDB and ensures indexes.
func NewMongoStore(ctx context.Context, cfg *config.StorageConfig, logger *slog.Logger) (*MongoStore, error) {
	opts := options.Client().
		ApplyURI(cfg.MongoURI).
		SetConnectTimeout(10 * time.Second).
		SetMaxPoolSize(50)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, &types.StoreError{Backend: "mongo", Op: "connect", Err: err}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, &types.StoreError{Backend: "mongo", Op: "ping", Err: err}
	}

	s := &MongoStore{
		client: client,
		db:     client.Database(cfg.MongoDB),
		logger: logger.With("component", "mongo_store"),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	s.logger.Info("connected", "database", cfg.MongoDB)
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	specs := map[string][]mongo.IndexModel{
		collInArticles: {
			{Keys: bson.D{{Key: "news_id", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "base_ymd", Value: 1}}},
		},
		collProcArticles: {
			{Keys: bson.D{{Key: "news_id", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "proc_id", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "base_ymd", Value: 1}}},
		},
		collCalcMetrics: {
			{Keys: bson.D{{Key: "source_proc_id", Value: 1}}},
			{Keys: bson.D{{Key: "base_ymd", Value: 1}, {Key: "stk_cd", Value: 1}}},
		},
		collRcmdResults: {
			{Keys: bson.D{{Key: "base_ymd", Value: 1}, {Key: "rcmd_type", Value: 1}}},
		},
		collPriceBars: {
			{Keys: bson.D{{Key: "stk_cd", Value: 1}, {Key: "base_ymd", Value: 1}}, Options: unique},
		},
	}
	for coll, models := range specs {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return &types.StoreError{Backend: "mongo", Op: "create_indexes", Err: fmt.Errorf("%s: %w", coll, err)}
		}
	}
	return nil
}

func (s *MongoStore) InsertInArticle(ctx context.Context, art *types.InArticle) error {
	_, err := s.db.Collection(collInArticles).InsertOne(ctx, art)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return types.ErrDuplicate
		}
		return &types.StoreError{Backend: "mongo", Op: "insert_in_article", Err: err}
	}
	return nil
}

func (s *MongoStore) InArticleByNewsID(ctx context.Context, newsID string) (*types.InArticle, error) {
	var art types.InArticle
	err := s.db.Collection(collInArticles).FindOne(ctx, bson.M{"news_id": newsID}).Decode(&art)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, &types.StoreError{Backend: "mongo", Op: "find_in_article", Err: err}
	}
	return &art, nil
}

// UnprocessedInArticles anti-joins in_articles against proc_articles on
// news_id and returns rows with no processed counterpart.
func (s *MongoStore) UnprocessedInArticles(ctx context.Context, limit int) ([]*types.InArticle, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$lookup", Value: bson.M{
			"from":         collProcArticles,
			"localField":   "news_id",
			"foreignField": "news_id",
			"as":           "proc",
		}}},
		{{Key: "$match", Value: bson.M{"proc": bson.M{"$size": 0}}}},
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: limit}})
	}
	return aggregateInto[types.InArticle](ctx, s.db.Collection(collInArticles), pipeline, "unprocessed_in_articles")
}

func (s *MongoStore) InsertProcArticle(ctx context.Context, rec *types.ProcArticle) error {
	_, err := s.db.Collection(collProcArticles).InsertOne(ctx, rec)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return types.ErrDuplicate
		}
		return &types.StoreError{Backend: "mongo", Op: "insert_proc_article", Err: err}
	}
	return nil
}

func (s *MongoStore) ProcByNewsID(ctx context.Context, newsID string) (*types.ProcArticle, error) {
	return s.findProc(ctx, bson.M{"news_id": newsID})
}

func (s *MongoStore) ProcByID(ctx context.Context, procID string) (*types.ProcArticle, error) {
	return s.findProc(ctx, bson.M{"proc_id": procID})
}

func (s *MongoStore) findProc(ctx context.Context, filter bson.M) (*types.ProcArticle, error) {
	var rec types.ProcArticle
	err := s.db.Collection(collProcArticles).FindOne(ctx, filter).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, &types.StoreError{Backend: "mongo", Op: "find_proc_article", Err: err}
	}
	return &rec, nil
}

// UncalcedProcArticles anti-joins proc_articles against calc_metrics on
// proc_id and returns rows with no metric rows yet. SKIP marker rows
// count, so skipped articles are not re-selected.
func (s *MongoStore) UncalcedProcArticles(ctx context.Context, limit int) ([]*types.ProcArticle, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$lookup", Value: bson.M{
			"from":         collCalcMetrics,
			"localField":   "proc_id",
			"foreignField": "source_proc_id",
			"as":           "calced",
		}}},
		{{Key: "$match", Value: bson.M{"calced": bson.M{"$size": 0}}}},
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: limit}})
	}
	return aggregateInto[types.ProcArticle](ctx, s.db.Collection(collProcArticles), pipeline, "uncalced_proc_articles")
}

func (s *MongoStore) InsertCalcMetrics(ctx context.Context, metrics []*types.CalcMetric) error {
	if len(metrics) == 0 {
		return nil
	}
	docs := make([]interface{}, len(metrics))
	for i, m := range metrics {
		docs[i] = m
	}
	if _, err := s.db.Collection(collCalcMetrics).InsertMany(ctx, docs); err != nil {
		return &types.StoreError{Backend: "mongo", Op: "insert_calc_metrics", Err: err}
	}
	return nil
}

func (s *MongoStore) MetricsByDate(ctx context.Context, baseYmd string) ([]*types.CalcMetric, error) {
	return findAll[types.CalcMetric](ctx, s.db.Collection(collCalcMetrics), bson.M{"base_ymd": baseYmd}, "metrics_by_date")
}

func (s *MongoStore) InsertRcmdResults(ctx context.Context, results []*types.RcmdResult) error {
	if len(results) == 0 {
		return nil
	}
	docs := make([]interface{}, len(results))
	for i, r := range results {
		docs[i] = r
	}
	if _, err := s.db.Collection(collRcmdResults).InsertMany(ctx, docs); err != nil {
		return &types.StoreError{Backend: "mongo", Op: "insert_rcmd_results", Err: err}
	}
	return nil
}

func (s *MongoStore) RcmdsByDate(ctx context.Context, baseYmd string) ([]*types.RcmdResult, error) {
	return findAll[types.RcmdResult](ctx, s.db.Collection(collRcmdResults), bson.M{"base_ymd": baseYmd}, "rcmds_by_date")
}

func (s *MongoStore) InsertPriceBars(ctx context.Context, bars []*types.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}
	// Upsert so re-ingesting a day's prices is idempotent
	models := make([]mongo.WriteModel, len(bars))
	for i, b := range bars {
		models[i] = mongo.NewReplaceOneModel().
			SetFilter(bson.M{"stk_cd": b.StkCd, "base_ymd": b.BaseYmd}).
			SetReplacement(b).
			SetUpsert(true)
	}
	if _, err := s.db.Collection(collPriceBars).BulkWrite(ctx, models); err != nil {
		return &types.StoreError{Backend: "mongo", Op: "insert_price_bars", Err: err}
	}
	return nil
}

func (s *MongoStore) ChangeRates(ctx context.Context, stkCd, fromYmd, toYmd string) ([]float64, error) {
	filter := bson.M{
		"stk_cd":      stkCd,
		"base_ymd":    bson.M{"$gte": fromYmd, "$lte": toYmd},
		"change_rate": bson.M{"$ne": nil},
	}
	opts := options.Find().SetSort(bson.D{{Key: "base_ymd", Value: 1}})
	cursor, err := s.db.Collection(collPriceBars).Find(ctx, filter, opts)
	if err != nil {
		return nil, &types.StoreError{Backend: "mongo", Op: "change_rates", Err: err}
	}
	defer cursor.Close(ctx)

	var rates []float64
	for cursor.Next(ctx) {
		var bar types.PriceBar
		if err := cursor.Decode(&bar); err != nil {
			return nil, &types.StoreError{Backend: "mongo", Op: "change_rates", Err: err}
		}
		if bar.ChangeRate != nil {
			rates = append(rates, *bar.ChangeRate)
		}
	}
	return rates, cursor.Err()
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func aggregateInto[T any](ctx context.Context, coll *mongo.Collection, pipeline mongo.Pipeline, op string) ([]*T, error) {
	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, &types.StoreError{Backend: "mongo", Op: op, Err: err}
	}
	defer cursor.Close(ctx)
	return decodeAll[T](ctx, cursor, op)
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter bson.M, op string) ([]*T, error) {
	cursor, err := coll.Find(ctx, filter)
	if err != nil {
		return nil, &types.StoreError{Backend: "mongo", Op: op, Err: err}
	}
	defer cursor.Close(ctx)
	return decodeAll[T](ctx, cursor, op)
}

func decodeAll[T any](ctx context.Context, cursor *mongo.Cursor, op string) ([]*T, error) {
	var out []*T
	for cursor.Next(ctx) {
		rec := new(T)
		if err := cursor.Decode(rec); err != nil {
			return nil, &types.StoreError{Backend: "mongo", Op: op, Err: err}
		}
		out = append(out, rec)
	}
	if err := cursor.Err(); err != nil {
		return nil, &types.StoreError{Backend: "mongo", Op: op, Err: err}
	}
	return out, nil
}
