package database

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var Client *mongo.Client
var DB *mongo.Database

// RetailerRegistrations is the collection holding retailer onboarding documents.
const RetailerRegistrations = "retailer_registrations"

func Connect(mongoURI string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(mongoURI)
	clientOptions.SetServerSelectionTimeout(10 * time.Second)

	log.Info().Msg("attempting to connect to MongoDB")
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return err
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer pingCancel()

	if err = client.Ping(pingCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return err
	}

	Client = client
	DB = client.Database(databaseName(mongoURI))

	if err := ensureIndexes(ctx, DB); err != nil {
		return err
	}

	log.Info().Str("database", DB.Name()).Msg("connected to MongoDB")
	return nil
}

// databaseName extracts the database from mongodb://host/<name>?opts,
// defaulting to "freshcart".
func databaseName(mongoURI string) string {
	name := "freshcart"
	rest := mongoURI
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	if i := strings.Index(rest, "/"); i >= 0 {
		dbPart := strings.Split(rest[i+1:], "?")[0]
		if dbPart != "" {
			name = dbPart
		}
	}
	return name
}

func ensureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(RetailerRegistrations).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "verification_status", Value: 1}, {Key: "submitted_at", Value: 1}},
		},
	})
	return err
}

func Disconnect() error {
	if Client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return Client.Disconnect(ctx)
}
