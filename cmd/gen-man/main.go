package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/suykerbuyk/focusbot/internal/help"
)

func main() {
	dir := "man"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "gen-man: %v\n", err)
		os.Exit(1)
	}

	date := os.Getenv("SOURCE_DATE_EPOCH")
	if date != "" {
		date = epochDate(date)
	}
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}

	if err := write(dir, help.TopLevel.ManName()+".1", help.FormatRoffTopLevel(help.TopLevel, help.Subcommands, date)); err != nil {
		fmt.Fprintf(os.Stderr, "gen-man: %v\n", err)
		os.Exit(1)
	}

	for _, cmd := range help.Subcommands {
		if err := write(dir, cmd.ManName()+".1", help.FormatRoff(cmd, date)); err != nil {
			fmt.Fprintf(os.Stderr, "gen-man: %v\n", err)
			os.Exit(1)
		}
	}
}

// epochDate formats a SOURCE_DATE_EPOCH value for reproducible pages.
func epochDate(v string) string {
	var secs int64
	if _, err := fmt.Sscan(v, &secs); err != nil {
		return ""
	}
	return time.Unix(secs, 0).UTC().Format("2006-01-02")
}

func write(dir, name, content string) error {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Printf("  %s\n", path)
	return nil
}
