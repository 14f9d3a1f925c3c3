// Seeds the fashion model roster from a JSON file.
//
// Usage: go run ./cmd/seed_models models.json
//
// The file is an array of objects with name, gender, body_type,
// ethnicity, category, image_key, tags and featured. Models already in
// the roster (matched by name) are skipped.
package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/threadswap/threadswap/catalog"
	"github.com/threadswap/threadswap/config"
	"github.com/threadswap/threadswap/models"
	"github.com/threadswap/threadswap/utils"
)

func main() {
	config.LoadConfig()
	logger := utils.NewLogger(config.LogLevel, true)

	if len(os.Args) < 2 {
		logger.Fatal().Msg("usage: seed_models <models.json>")
	}

	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		logger.Fatal().Err(err).Msg("could not read seed file")
	}
	var seeds []models.FashionModel
	if err := json.Unmarshal(data, &seeds); err != nil {
		logger.Fatal().Err(err).Msg("could not parse seed file")
	}

	if err := utils.ConnectMongo(config.MongoURI); err != nil {
		logger.Fatal().Err(err).Msg("mongo connection failed")
	}

	col := utils.GetCollection(config.MongoDBName, "fashion_models")
	roster := catalog.New(col, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	var created, skipped int
	for _, m := range seeds {
		if m.Name == "" || m.ImageKey == "" {
			logger.Warn().Str("name", m.Name).Msg("skipping entry without name or image_key")
			skipped++
			continue
		}

		count, err := col.CountDocuments(ctx, bson.M{"name": m.Name, "is_deleted": false})
		if err != nil {
			logger.Fatal().Err(err).Msg("roster lookup failed")
		}
		if count > 0 {
			logger.Debug().Str("name", m.Name).Msg("already in roster")
			skipped++
			continue
		}

		if _, err := roster.Create(ctx, m); err != nil {
			logger.Fatal().Err(err).Str("name", m.Name).Msg("create failed")
		}
		created++
	}

	logger.Info().Int("created", created).Int("skipped", skipped).Msg("seed finished")
}
