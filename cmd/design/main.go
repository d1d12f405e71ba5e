package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"bibble/internal/bootstrap"
	"bibble/internal/domain"
	"bibble/internal/infra"
)

type fileList []string

func (f *fileList) String() string { return strings.Join(*f, ",") }

func (f *fileList) Set(v string) error {
	*f = append(*f, v)
	return nil
}

func main() {
	var (
		promptFlag  string
		dirFlag     string
		maskFlag    string
		sizeFlag    string
		qualityFlag string
		imageFlags  fileList
	)
	flag.StringVar(&promptFlag, "prompt", "", "edit instructions")
	flag.Var(&imageFlags, "image", "source image (repeatable)")
	flag.StringVar(&dirFlag, "dir", "", "use every image in this directory as a source, skipping names starting with _")
	flag.StringVar(&maskFlag, "mask", "", "optional PNG mask; transparent areas are edited")
	flag.StringVar(&sizeFlag, "size", domain.DefaultEditSize, "output size")
	flag.StringVar(&qualityFlag, "quality", domain.DefaultEditQuality, "rendering quality")
	flag.Parse()

	sources := append([]string(nil), imageFlags...)
	if dirFlag != "" {
		found, err := listImages(dirFlag)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		sources = append(sources, found...)
	}
	if promptFlag == "" || len(sources) == 0 {
		fmt.Fprintln(os.Stderr, "usage: design -prompt \"make it futuristic\" (-image a.png ... | -dir images) [-mask mask.png]")
		os.Exit(2)
	}

	infra.LoadDotEnv()
	cfg, err := infra.LoadConfig(infra.ServiceImage)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := infra.NewLoggerWithFile(cfg.AppEnv, cfg.LogFile)

	images := make([][]byte, 0, len(sources))
	for _, path := range sources {
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Fatal().Err(err).Str("path", path).Msg("design: read image failed")
		}
		images = append(images, data)
	}
	var mask []byte
	if maskFlag != "" {
		if mask, err = os.ReadFile(maskFlag); err != nil {
			logger.Fatal().Err(err).Str("path", maskFlag).Msg("design: read mask failed")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := bootstrap.ImageClient(cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("design: client setup failed")
	}
	store, err := bootstrap.FileStore(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("design: output directory setup failed")
	}

	start := time.Now()
	artifact, err := client.Edit(ctx, domain.EditRequest{
		Prompt:  promptFlag,
		Images:  images,
		Mask:    mask,
		Size:    sizeFlag,
		Quality: qualityFlag,
	})
	if err != nil {
		logger.Error().Err(err).Msg("design: edit failed")
		os.Exit(1)
	}
	path, err := store.Write(ctx, *artifact)
	if err != nil {
		logger.Fatal().Err(err).Msg("design: write failed")
	}
	logger.Info().Int("images", len(images)).Bool("mask", mask != nil).Dur("elapsed", time.Since(start)).Msg("design: done")
	fmt.Println(path)
}

func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("design: list %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), "_") || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}
