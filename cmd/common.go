/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/valpere/bhasha/internal/config"
	"github.com/valpere/bhasha/internal/generator"
	"github.com/valpere/bhasha/internal/logger"
	"github.com/valpere/bhasha/internal/orchestrator"
	"github.com/valpere/bhasha/internal/store"
	"github.com/valpere/bhasha/internal/translator"
	"github.com/valpere/bhasha/internal/validator"
)

// app holds the components a command needs. Fields that the command did
// not ask for stay nil.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
	cache  *translator.Cache
	orch   *orchestrator.Orchestrator
}

type buildOptions struct {
	generator bool
	noMemory  bool
}

func buildApp(opts buildOptions) (*app, error) {
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Log.Debug)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: log}

	useMemory := cfg.Store.Memory && !opts.noMemory
	if cfg.Store.Enabled || useMemory {
		a.store, err = openStore(cfg.Store.Path)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	factory, err := translator.NewFactory(cfg.Translator)
	if err != nil {
		a.Close()
		return nil, err
	}

	cacheOpts := []translator.Option{
		translator.WithMaxLength(cfg.Translator.MaxLength),
		translator.WithChunking(cfg.Translator.ChunkChars),
		translator.WithLogger(log.Named("translator")),
	}
	if useMemory {
		cacheOpts = append(cacheOpts, translator.WithMemory(a.store))
	}
	if cfg.Translator.Validate {
		cacheOpts = append(cacheOpts, translator.WithValidator(validator.New()))
	}
	a.cache = translator.NewCache(factory, cacheOpts...)

	if opts.generator {
		gen, err := generator.New(cfg.LLM)
		if err != nil {
			a.Close()
			return nil, err
		}
		log.Info("generator ready", zap.String("engine", gen.Name()), zap.Bool("device_auto", cfg.LLM.DeviceAuto))

		orchCfg := orchestrator.DefaultConfig()
		orchCfg.Timeout = cfg.Server.AttemptTimeout
		a.orch = orchestrator.New(a.cache, gen,
			orchestrator.WithConfig(orchCfg),
			orchestrator.WithLogger(log.Named("orchestrator")))
	}

	return a, nil
}

// history returns the exchange log when recording is enabled.
func (a *app) history() (*store.Store, bool) {
	if a.store == nil || !a.cfg.Store.Enabled {
		return nil, false
	}
	return a.store, true
}

func (a *app) Close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("failed to close translators", zap.Error(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("failed to close database", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

func openStore(path string) (*store.Store, error) {
	if path == "" {
		return nil, errors.New("database path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	return store.New(path)
}

// dbPathOr returns flagValue, or the configured store path when unset.
func dbPathOr(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return "", err
	}
	return cfg.Store.Path, nil
}
