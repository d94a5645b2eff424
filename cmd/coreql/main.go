// Copyright 2025 TSBot authors
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

// Command coreql is the reference CLI driver for the admissions-advisory
// question answering system. Document ingestion is out of scope (it
// reads an already-produced chunk file); an external ingestion tool
// produces that file and commits it via chunkstore.Validate.
//
// Usage:
//
//	coreql ask --config config.yaml --chunks legal_chunks.json "Điểm chuẩn Học viện Kỹ thuật Quân sự năm 2024?"
//	coreql serve --config config.yaml --chunks legal_chunks.json --port 8080
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/nhdandz/tsbot/internal/chunkstore"
	"github.com/nhdandz/tsbot/internal/config"
	"github.com/nhdandz/tsbot/internal/model"
	"github.com/nhdandz/tsbot/internal/registry"
)

// CLI defines the command-line interface.
type CLI struct {
	Ask     AskCmd     `cmd:"" help:"Answer a single question and exit."`
	Serve   ServeCmd   `cmd:"" help:"Start the HTTP API server."`
	Version VersionCmd `cmd:"" help:"Show version information."`

	Config string `short:"c" help:"Path to config file." type:"path" default:"config.yaml"`
	Chunks string `help:"Path to the JSON ingestion file ({\"chunks\": [...]})." type:"path" required:""`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		version = info.Main.Version
	}
	fmt.Printf("coreql version %s\n", version)
	return nil
}

// AskCmd answers one question from the command line.
type AskCmd struct {
	Query          string `arg:"" help:"The question to ask."`
	ConversationID string `name:"conversation" help:"Conversation ID to append this turn to (omit to start a new conversation with a freshly minted ID)."`
}

func (c *AskCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	svc, err := buildServices(ctx, cli.Config, cli.Chunks)
	if err != nil {
		return err
	}
	defer svc.DB.Close()
	defer svc.TracerShutdown(context.Background())

	answerText, conversationID, sources, err := svc.Answer(ctx, c.ConversationID, c.Query)
	if err != nil {
		return err
	}

	fmt.Println(answerText)
	for _, s := range sources {
		fmt.Printf("  - %s %s\n", s.Document, s.LegalPath)
	}
	if c.ConversationID == "" {
		fmt.Printf("(conversation: %s)\n", conversationID)
	}
	return nil
}

// ServeCmd starts the HTTP API server.
type ServeCmd struct {
	Port int `help:"Port to listen on." default:"8080"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("coreql: shutting down")
		cancel()
	}()

	svc, err := buildServices(ctx, cli.Config, cli.Chunks)
	if err != nil {
		return err
	}
	defer svc.DB.Close()
	defer svc.TracerShutdown(context.Background())

	mux := http.NewServeMux()
	mux.Handle("/metrics", svc.Metrics.Handler())
	mux.HandleFunc("/ask", askHandler(svc))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", c.Port), Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("coreql: listening", "port", c.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

type askRequest struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversation_id"`
}

type askResponse struct {
	Answer         string `json:"answer"`
	ConversationID string `json:"conversation_id"`
	Sources        []any  `json:"sources"`
}

func askHandler(svc *registry.Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req askRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		answerText, conversationID, sources, err := svc.Answer(r.Context(), req.ConversationID, req.Query)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		anySources := make([]any, len(sources))
		for i, s := range sources {
			anySources[i] = s
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(askResponse{Answer: answerText, ConversationID: conversationID, Sources: anySources})
	}
}

func buildServices(ctx context.Context, configPath, chunksPath string) (*registry.Services, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	chunks, err := loadChunks(chunksPath)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName(cfg.Database.Driver), cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	svc, err := registry.Build(ctx, cfg, db, registry.Options{
		Backend: registry.BackendChromem,
		Chunks:  chunks,
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return svc, nil
}

func loadChunks(path string) ([]*model.Chunk, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chunks file: %w", err)
	}
	chunks, err := chunkstore.ParseIngestionFile(raw)
	if err != nil {
		return nil, fmt.Errorf("parse chunks file: %w", err)
	}
	if err := chunkstore.Validate(chunks); err != nil {
		return nil, fmt.Errorf("validate chunks: %w", err)
	}
	return chunks, nil
}

func driverName(dialect string) string {
	switch dialect {
	case "sqlite":
		return "sqlite3"
	default:
		return dialect
	}
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("coreql"),
		kong.Description("Vietnamese military-admissions advisory assistant"),
		kong.UsageOnError(),
	)

	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
