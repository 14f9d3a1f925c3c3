// Manual smoke check for the processing pipeline against the real
// background removal and try-on services.
//
// Usage: go run ./cmd/pipeline_check <image_url> [category]
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/threadswap/threadswap/config"
	"github.com/threadswap/threadswap/pipeline"
	"github.com/threadswap/threadswap/utils"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: pipeline_check <image_url> [category]")
		os.Exit(1)
	}
	imageURL := os.Args[1]
	category := "auto"
	if len(os.Args) > 2 {
		category = os.Args[2]
	}

	config.LoadConfig()
	logger := utils.NewLogger("debug", true)

	httpClient := utils.NewHTTPClient(120 * time.Second)
	pipe := pipeline.New(pipeline.Options{
		Cutout: pipeline.NewCutoutClient(pipeline.CutoutOptions{
			BaseURL:    config.CutoutAPIURL,
			APIKey:     config.CutoutAPIKey,
			HTTPClient: httpClient,
			Logger:     logger,
		}),
		Overlay: pipeline.NewTryOnClient(pipeline.TryOnOptions{
			BaseURL:    config.TryOnAPIURL,
			APIKey:     config.TryOnAPIKey,
			HTTPClient: httpClient,
			Logger:     logger,
		}),
		Logger: logger,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	start := time.Now()
	res := pipe.Process(ctx, pipeline.Request{
		Source:   pipeline.ImageFromURL(imageURL),
		Category: category,
	})

	out, _ := json.MarshalIndent(res, "", "  ")
	fmt.Println(string(out))
	fmt.Printf("took %s\n", time.Since(start).Round(time.Millisecond))

	if !res.Succeeded {
		os.Exit(1)
	}
}
