package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"bibble/internal/infra"
)

type check struct {
	name string
	run  func() error
}

func main() {
	var dirsFlag bool
	flag.BoolVar(&dirsFlag, "skip-dirs", false, "skip the output directory check")
	flag.Parse()

	os.Exit(run(os.Stdout, !dirsFlag))
}

func run(out io.Writer, checkDirs bool) int {
	loaded := infra.LoadDotEnv()

	checks := []check{
		{"environment file", func() error {
			if len(loaded) == 0 {
				return errors.New(".env not found; copy .env.example to .env and fill in the Azure credentials")
			}
			return nil
		}},
		{"configuration", func() error {
			_, err := infra.LoadConfig(infra.ServiceVideo, infra.ServiceImage)
			return err
		}},
	}
	if checkDirs {
		checks = append(checks, check{"output directory", checkOutputDir})
	}

	failed := 0
	for _, c := range checks {
		if err := c.run(); err != nil {
			failed++
			fmt.Fprintf(out, "FAIL %s: %v\n", c.name, err)
			continue
		}
		fmt.Fprintf(out, "ok   %s\n", c.name)
	}
	if failed > 0 {
		fmt.Fprintf(out, "\nsetup incomplete: %d check(s) failed\n", failed)
		return 1
	}
	fmt.Fprintln(out, "\nsetup complete. next: go run ./cmd/video -prompt ... or go run ./cmd/design -prompt ...")
	return 0
}

func checkOutputDir() error {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", cfg.OutputDir, err)
	}
	probe, err := os.CreateTemp(cfg.OutputDir, ".probe-*")
	if err != nil {
		return fmt.Errorf("%s is not writable: %w", filepath.Clean(cfg.OutputDir), err)
	}
	name := probe.Name()
	_ = probe.Close()
	return os.Remove(name)
}
