// Command ingest loads a local instrument file through the same pipeline as
// POST /upload/. It writes to MongoDB when MONGODB_URI is set and to an
// in-memory store otherwise (a dry run).
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"os"
	"path/filepath"

	"github.com/b3datalake/datalake-api/internal/config"
	"github.com/b3datalake/datalake-api/internal/database"
	"github.com/b3datalake/datalake-api/internal/datalake/repository"
	"github.com/b3datalake/datalake-api/internal/datalake/service"
	"github.com/b3datalake/datalake-api/pkg/logger"
)

func main() {
	path := flag.String("file", "", "path of the csv/xls/xlsx file to ingest")
	name := flag.String("name", "", "filename recorded in the upload history (default: base name of -file)")
	flag.Parse()

	logger.Init(os.Getenv("LOG_LEVEL"))
	if *path == "" {
		logger.Fatalf("-file is required")
	}
	filename := *name
	if filename == "" {
		filename = filepath.Base(*path)
	}

	ctx := context.Background()
	var (
		history repository.HistoryRepository = repository.NewMemoryHistoryRepo()
		records repository.RecordRepository  = repository.NewMemoryRecordRepo()
	)
	if mcfg := config.LoadMongoConfig(); mcfg.URI != "" {
		client, err := database.ConnectMongo(ctx, mcfg.URI, mcfg.Timeout)
		if err != nil {
			logger.Fatalf("mongo: %v", err)
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		cols := database.OpenCollections(client, mcfg)
		if err := database.Initialize(ctx, cols); err != nil {
			logger.Fatalf("initialize collections: %v", err)
		}
		history = repository.NewMongoHistoryRepo(cols.History)
		records = repository.NewMongoRecordRepo(cols.Datalake)
	} else {
		logger.Warnf("MONGODB_URI not set: dry run against an in-memory store")
	}

	f, err := os.Open(*path)
	if err != nil {
		logger.Fatalf("open %s: %v", *path, err)
	}
	defer f.Close()

	res, err := service.NewIngestService(history, records).Upload(ctx, filename, f, "cli")
	if err != nil {
		var mc *service.MissingColumnsError
		if errors.As(err, &mc) {
			logger.Errorf("missing columns: %v", mc.Columns)
		}
		logger.Fatalf("ingest %s: %v", filename, err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(map[string]interface{}{
		"filename":        res.Filename,
		"total_registers": res.TotalRecords,
	})
}
