package infra

import (
	"os"

	"github.com/joho/godotenv"
)

// LoadDotEnv seeds the process environment from the given files, skipping
// any that do not exist. Variables already set in the environment win.
func LoadDotEnv(paths ...string) []string {
	if len(paths) == 0 {
		paths = []string{".env", ".env.local"}
	}
	var loaded []string
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err == nil {
			loaded = append(loaded, p)
		}
	}
	return loaded
}
