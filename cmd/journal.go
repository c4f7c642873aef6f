package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/papapumpkin/buildgraph/internal/config"
	"github.com/papapumpkin/buildgraph/internal/journal"
	"github.com/papapumpkin/buildgraph/internal/ui"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Show the journal of applied, undone and redone steps",
	Long: `Reads and formats the JSONL journal.

With --follow (-f), watches the file for new events (like tail -f).`,
	Args: cobra.NoArgs,
	RunE: runJournal,
}

func init() {
	journalCmd.Flags().BoolP("follow", "f", false, "follow the file for new events")
	rootCmd.AddCommand(journalCmd)
}

func runJournal(cmd *cobra.Command, _ []string) error {
	follow, _ := cmd.Flags().GetBool("follow")
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	p := ui.New()

	f, err := os.Open(cfg.Journal)
	if os.IsNotExist(err) && !follow {
		p.Info("journal is empty")
		return nil
	}
	if err != nil {
		return fmt.Errorf("journal: open %s: %w", cfg.Journal, err)
	}
	defer f.Close()

	events, err := journal.Decode(f)
	if err != nil {
		return err
	}
	for _, evt := range events {
		p.Event(evt)
	}
	if !follow {
		return nil
	}
	return tailFollow(p, f, cfg.Journal)
}

// tailFollow watches the journal for new data using fsnotify and prints new
// events.
func tailFollow(p *ui.Printer, f *os.File, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("journal: create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("journal: watch %s: %w", path, err)
	}

	reader := bufio.NewReader(f)
	var pending string
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Write == 0 {
				continue
			}
			for {
				chunk, err := reader.ReadString('\n')
				pending += chunk
				if err != nil {
					// Incomplete line; wait for the rest.
					break
				}
				line := strings.TrimSpace(pending)
				pending = ""
				if line == "" {
					continue
				}
				var evt journal.Event
				if err := json.Unmarshal([]byte(line), &evt); err != nil {
					p.Error(fmt.Sprintf("bad journal line: %s", line))
					continue
				}
				p.Event(evt)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("journal: watch %s: %w", path, err)
		}
	}
}
