package overlay

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/hazyhaar/adrpg/overlay/event"
	"github.com/hazyhaar/adrpg/overlay/internal/config"
	"github.com/hazyhaar/adrpg/overlay/internal/page"
	"github.com/hazyhaar/adrpg/overlay/internal/sink"
)

// Config is the overlay configuration.
type Config = config.Config

// PageConfig is a page to overlay.
type PageConfig = config.PageConfig

// SinkConfig is an event output.
type SinkConfig = config.SinkConfig

// LoadConfig reads a YAML file (optional) with ADRPG_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// Document is a host page the overlay can scan and mutate.
type Document = page.Document

// StaticDocument is a parsed HTML page.
type StaticDocument = page.StaticDocument

// ParseHTML parses a static HTML page for a dry run.
func ParseHTML(r io.Reader) (*StaticDocument, error) {
	return page.ParseHTML(r)
}

// Sink is an event output.
type Sink = sink.Sink

// NewStdoutSink writes events as JSON lines.
func NewStdoutSink(w io.Writer) Sink {
	return sink.NewStdout(w)
}

// NewWebhookSink POSTs events with retry.
func NewWebhookSink(url string, logger *slog.Logger) Sink {
	return sink.NewWebhook(url, sink.WithWebhookLogger(logger))
}

// NewCallbackSink delivers events to fn in-process.
func NewCallbackSink(fn func(ctx context.Context, e event.Event) error) Sink {
	return sink.NewCallback(fn)
}

// OpenJournalSink appends events to an SQLite database at path.
func OpenJournalSink(path string) (Sink, error) {
	return sink.OpenJournal(path)
}

func buildSinks(cfgs []config.SinkConfig, logger *slog.Logger) ([]Sink, error) {
	var out []Sink
	for _, sc := range cfgs {
		switch sc.Type {
		case "stdout":
			out = append(out, NewStdoutSink(nil))
		case "webhook":
			out = append(out, NewWebhookSink(sc.URL, logger))
		case "journal":
			j, err := OpenJournalSink(sc.Path)
			if err != nil {
				for _, s := range out {
					s.Close()
				}
				return nil, fmt.Errorf("overlay: %w", err)
			}
			out = append(out, j)
		default:
			return nil, fmt.Errorf("overlay: unknown sink type %q", sc.Type)
		}
	}
	return out, nil
}
