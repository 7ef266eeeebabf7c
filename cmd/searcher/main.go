// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/mailqa"
	"github.com/poiesic/mailqa/config"
	"github.com/poiesic/mailqa/core"
	"github.com/poiesic/mailqa/index"
	"github.com/poiesic/mailqa/normalize"
	"github.com/poiesic/mailqa/storage"
)

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
}

// searcher ranks stored documents without calling the model. With no
// persistent store configured, it indexes the staged attachments first.
func main() {
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		panic(err)
	}

	db, err := mailqa.NewDatabase(cfg.Store.Path)
	if err != nil {
		panic(err)
	}
	defer db.Close()

	ctx := context.Background()
	repo := db.DocumentRepository()
	if cfg.Store.Path == "" {
		normalizer, err := normalize.New(normalize.WithChunking(cfg.Normalize.ChunkSize, cfg.Normalize.ChunkOverlap))
		if err != nil {
			panic(err)
		}
		if err := indexStaged(ctx, repo, normalizer, cfg.Staging.Dir); err != nil {
			panic(err)
		}
	}

	query := "invoice"
	if len(os.Args) > 1 {
		query = strings.Join(os.Args[1:], " ")
	}
	results, err := repo.Query(ctx, query, cfg.QA.TopK)
	if err != nil {
		panic(err)
	}

	fmt.Printf("Found %d hits\n", len(results))
	for i, hit := range results {
		marker := " "
		if index.ContainsAllTerms(hit.Document.Content, query) {
			marker = "*"
		}
		fmt.Printf("%d:%s '%s' (%s)[%0.3f]\n", i, marker, preview(hit.Document), hit.Document.ID, hit.Score)
	}
}

func indexStaged(ctx context.Context, repo storage.DocumentRepository, normalizer *normalize.Normalizer, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || !normalizer.Supports(entry.Name()) {
			continue
		}
		docs, err := normalizer.FromFile(ctx, filepath.Join(dir, entry.Name()), nil)
		if err != nil {
			slog.Warn("skipping staged file", "file", entry.Name(), "err", err)
			continue
		}
		if err := repo.WriteDocuments(ctx, docs...); err != nil {
			return err
		}
	}
	return nil
}

func preview(doc *core.Document) string {
	text := strings.Join(strings.Fields(doc.Content), " ")
	runes := []rune(text)
	if len(runes) > 60 {
		return string(runes[:60]) + "..."
	}
	return text
}
