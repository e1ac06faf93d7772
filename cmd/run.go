// Copyright 2026 CleverData
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

package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/cleverdata/photo-uploader/internal/api"
	"github.com/cleverdata/photo-uploader/internal/config"
	"github.com/cleverdata/photo-uploader/internal/core"
	"github.com/cleverdata/photo-uploader/internal/db"
	"github.com/kardianos/service"
)

// program implements the service.Interface
type program struct {
	dispatcher *core.Dispatcher
	logger     service.Logger
	cancel     context.CancelFunc
	done       chan struct{}
}

func (p *program) Start(s service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(ctx)
	return nil
}

// Stop cancels the watch loop and waits for the in-flight file to finish.
func (p *program) Stop(s service.Service) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	<-p.done
	return nil
}

func (p *program) run(ctx context.Context) {
	defer close(p.done)
	if err := p.dispatcher.Watch(ctx); err != nil {
		p.logger.Errorf("Watcher stopped: %v", err)
	}
}

// RunAgent blocks until the process receives an interrupt or terminate signal.
func RunAgent(cfg config.Config) error {
	if service.Interactive() {
		fmt.Println("Photo Uploader Starting...")
	} else {
		log.Println("Photo Uploader Starting as Service...")
	}

	var history core.History
	if cfg.HistoryDB != "" {
		store, err := db.Open(cfg.HistoryDB)
		if err != nil {
			return err
		}
		defer store.Close()
		history = store
		log.Printf("Recording upload history in %s", cfg.HistoryDB)

		if forgetFile != "" {
			if err := store.Reset(forgetFile); err != nil {
				return err
			}
			log.Printf("Cleared upload history for %s", forgetFile)
		}
	} else if forgetFile != "" {
		return fmt.Errorf("%w: --forget needs HISTORY_DB", config.ErrInvalid)
	}

	prg := &program{}
	s, err := service.New(prg, &service.Config{
		Name:        "PhotoUploader",
		DisplayName: "Photo Uploader",
		Description: "Watches an export folder and uploads new photos to the gallery.",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize service: %w", err)
	}

	logger, err := s.Logger(nil)
	if err != nil {
		return fmt.Errorf("failed to open service logger: %w", err)
	}

	client := api.NewClient(cfg.APIBaseURL, cfg.APIToken)
	prg.dispatcher = core.NewDispatcher(cfg, client, history, logger)
	prg.logger = logger

	// Subscribe up front so a bad watch folder fails here, not in the service goroutine.
	if err := prg.dispatcher.Subscribe(); err != nil {
		return err
	}

	log.Printf("Album: %s | Uploaded folder: %s", cfg.AlbumSlug, cfg.UploadedFolder)
	return s.Run()
}
