package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/yumeno-dev/musingd/config"
	"github.com/yumeno-dev/musingd/internal/audio/facade"
	"github.com/yumeno-dev/musingd/internal/library"
	"github.com/yumeno-dev/musingd/internal/player"
	"github.com/yumeno-dev/musingd/internal/queue"
	"github.com/yumeno-dev/musingd/internal/server"
	"github.com/yumeno-dev/musingd/internal/snapshot"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.Load()
	slog.Info("starting musingd",
		"bind_addr", cfg.BindAddr,
		"port", cfg.Port,
		"music_dir", cfg.MusicDir,
	)

	if err := portaudio.Initialize(); err != nil {
		slog.Error("portaudio init failed", "error", err)
		os.Exit(1)
	}
	defer portaudio.Terminate()

	audio := facade.New()
	if err := registerDevices(audio, cfg.DefaultDevice); err != nil {
		slog.Error("no output devices available", "error", err)
		os.Exit(1)
	}

	lib := library.New(cfg.MusicDir, cfg.Extensions)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := lib.Build(ctx, time.Unix(0, 0)); err != nil {
		slog.Error("initial library scan failed", "error", err)
		os.Exit(1)
	}
	slog.Info("library scan complete", "tracks", lib.Count())

	q := queue.New()

	snapStore, err := snapshot.NewStore(cfg.SnapshotFile)
	if err != nil {
		slog.Error("snapshot store init failed", "error", err)
		os.Exit(1)
	}
	if snapStore.Exists() {
		st, err := snapStore.Load()
		if err != nil {
			slog.Warn("failed to load snapshot, starting fresh", "error", err)
		} else {
			q.Restore(st.Queue)
			audio.Restore(st.Facade)
			slog.Info("restored snapshot", "path", cfg.SnapshotFile, "queued", q.Len())
		}
	}

	actor := player.New(lib, q, audio)
	go actor.Run(ctx)

	srv := server.New(cfg.BindAddr+":"+cfg.Port, actor)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		slog.Info("shutdown signal received")
		cancel()
	}()

	if err := srv.Start(ctx); err != nil {
		slog.Error("server error", "error", err)
	}

	slog.Info("shutting down, saving snapshot")
	if err := snapStore.Save(snapshot.State{Queue: q.Snapshot(), Facade: audio.Snapshot()}); err != nil {
		slog.Error("failed to save snapshot", "error", err)
	}
	slog.Info("musingd stopped")
}

// registerDevices enumerates portaudio output devices, registers one
// device.Device per host device with the facade, and enables defaultName
// (or the first device found, if defaultName is empty or not present).
func registerDevices(audio *facade.Facade, defaultName string) error {
	devices, err := portaudio.Devices()
	if err != nil {
		return err
	}

	var fallback string
	found := false
	hasDefault := false
	for _, info := range devices {
		if info.MaxOutputChannels <= 0 {
			continue
		}
		audio.NewDevice(info.Name, info)
		found = true
		if fallback == "" {
			fallback = info.Name
		}
		if defaultName != "" && info.Name == defaultName {
			hasDefault = true
		}
	}
	if !found {
		return errNoDevices
	}

	name := defaultName
	if !hasDefault {
		name = fallback
	}
	return audio.EnableDevice(name)
}

var errNoDevices = errors.New("no output devices found")
