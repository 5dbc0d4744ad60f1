package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/andrewchart/final-rendezvous-game/internal/game"
)

const (
	gamesCollection     = "games"
	citiesCollection    = "cities"
	codewordsCollection = "codewords"
)

// Mongo backs the store with a MongoDB database. One document per session in
// the games collection; cities and codewords hold the reference data loaded
// out of band.
type Mongo struct {
	client    *mongo.Client
	games     *mongo.Collection
	cities    *mongo.Collection
	codewords *mongo.Collection
}

// NewMongo connects to the instance at uri and pings it before returning.
func NewMongo(ctx context.Context, uri, dbName string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	db := client.Database(dbName)
	return &Mongo{
		client:    client,
		games:     db.Collection(gamesCollection),
		cities:    db.Collection(citiesCollection),
		codewords: db.Collection(codewordsCollection),
	}, nil
}

// Close disconnects the underlying client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *Mongo) InsertGame(ctx context.Context, s *game.Session) error {
	_, err := m.games.InsertOne(ctx, s)
	return err
}

func (m *Mongo) GetGame(ctx context.Context, id string) (*game.Session, error) {
	var s game.Session
	err := m.games.FindOne(ctx, bson.M{"_id": id}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (m *Mongo) GetGameFields(ctx context.Context, id string, fields []string) (map[string]any, error) {
	proj := bson.M{"_id": 0}
	for _, f := range fields {
		proj[f] = 1
	}

	// Decode through the session struct so projected values come back as the
	// same Go types every implementation returns.
	var s game.Session
	err := m.games.FindOne(ctx, bson.M{"_id": id}, options.FindOne().SetProjection(proj)).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return Projection(&s, fields), nil
}

func (m *Mongo) UpdateGameFields(ctx context.Context, id string, set map[string]any) (int64, int64, error) {
	res, err := m.games.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return 0, 0, err
	}
	return res.MatchedCount, res.ModifiedCount, nil
}

func (m *Mongo) AddPlayer(ctx context.Context, id string, p game.Player) error {
	res, err := m.games.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$push": bson.M{"players": p}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) RemovePlayer(ctx context.Context, id string, playerID int) (bool, error) {
	res, err := m.games.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$pull": bson.M{"players": bson.M{"_id": playerID}}},
	)
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 0 {
		return false, ErrNotFound
	}
	return res.ModifiedCount > 0, nil
}

func (m *Mongo) RandomCity(ctx context.Context) (int, error) {
	var doc struct {
		ID int `bson:"_id"`
	}
	if err := m.sampleOne(ctx, m.cities, &doc); err != nil {
		return 0, err
	}
	return doc.ID, nil
}

func (m *Mongo) RandomCodeword(ctx context.Context) (string, error) {
	var doc struct {
		Word string `bson:"word"`
	}
	if err := m.sampleOne(ctx, m.codewords, &doc); err != nil {
		return "", err
	}
	return doc.Word, nil
}

// sampleOne decodes a single $sample result into out. ErrNotFound when the
// collection is empty.
func (m *Mongo) sampleOne(ctx context.Context, coll *mongo.Collection, out any) error {
	cur, err := coll.Aggregate(ctx, mongo.Pipeline{
		bson.D{{Key: "$sample", Value: bson.D{{Key: "size", Value: 1}}}},
	})
	if err != nil {
		return err
	}
	defer cur.Close(ctx)

	if !cur.Next(ctx) {
		if err := cur.Err(); err != nil {
			return err
		}
		return ErrNotFound
	}
	return cur.Decode(out)
}
