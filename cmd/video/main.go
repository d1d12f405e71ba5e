package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bibble/internal/bootstrap"
	"bibble/internal/domain"
	"bibble/internal/infra"
)

func main() {
	var (
		promptFlag  string
		secondsFlag int
		widthFlag   int
		heightFlag  int
	)
	flag.StringVar(&promptFlag, "prompt", "", "description of the video to generate")
	flag.IntVar(&secondsFlag, "seconds", domain.DefaultVideoSeconds, "clip length in seconds")
	flag.IntVar(&widthFlag, "width", domain.DefaultVideoWidth, "frame width in pixels")
	flag.IntVar(&heightFlag, "height", domain.DefaultVideoHeight, "frame height in pixels")
	flag.Parse()

	if promptFlag == "" && flag.NArg() > 0 {
		promptFlag = flag.Arg(0)
	}
	if promptFlag == "" {
		fmt.Fprintln(os.Stderr, "usage: video -prompt \"a cat playing piano\" [-seconds 10]")
		os.Exit(2)
	}

	infra.LoadDotEnv()
	cfg, err := infra.LoadConfig(infra.ServiceVideo)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := infra.NewLoggerWithFile(cfg.AppEnv, cfg.LogFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := bootstrap.VideoClient(cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("video: client setup failed")
	}
	store, err := bootstrap.FileStore(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("video: output directory setup failed")
	}

	start := time.Now()
	handle, artifact, err := client.Generate(ctx, domain.VideoRequest{
		Prompt:  promptFlag,
		Width:   widthFlag,
		Height:  heightFlag,
		Seconds: secondsFlag,
	})
	if err != nil {
		event := logger.Error().Err(err).Str("job_id", handle.ID).Str("status", string(handle.Status))
		if errors.Is(err, domain.ErrJobFailed) && handle.FailureReason != "" {
			event = event.Str("reason", handle.FailureReason)
		}
		event.Msg("video: generation failed")
		os.Exit(1)
	}
	path, err := store.Write(ctx, *artifact)
	if err != nil {
		logger.Fatal().Err(err).Msg("video: write failed")
	}
	logger.Info().Str("job_id", handle.ID).Dur("elapsed", time.Since(start)).Msg("video: done")
	fmt.Println(path)
}
