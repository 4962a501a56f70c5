// Package source loads flag and segment configuration from a local JSON
// document, validates it against a schema, and keeps the store fresh through
// filesystem watch events and a periodic re-read.
package source

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"github.com/xeipuuv/gojsonschema"

	"github.com/flagcore/go-server-sdk/pkg/logger"
	"github.com/flagcore/go-server-sdk/pkg/model"
)

// Document is the on-disk configuration format.
type Document struct {
	Flags    []model.FeatureConfig `json:"flags"`
	Segments []model.Segment       `json:"segments,omitempty"`
}

// Sink receives validated configuration. Implemented by storage.Store.
type Sink interface {
	Replace(flags []model.FeatureConfig, segments []model.Segment) error
}

// FileSource watches one configuration file.
type FileSource struct {
	path     string
	sink     Sink
	interval time.Duration
	log      *logger.Logger

	schema  *gojsonschema.Schema
	watcher *fsnotify.Watcher
	cron    *cron.Cron
	done    chan struct{}
}

// New builds a file source that re-reads path every interval in addition to
// reacting to write events.
func New(path string, sink Sink, interval time.Duration, log *logger.Logger) (*FileSource, error) {
	if path == "" {
		return nil, errors.New("no configuration file path set")
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(documentSchema))
	if err != nil {
		return nil, fmt.Errorf("compile configuration schema: %w", err)
	}
	return &FileSource{
		path:     path,
		sink:     sink,
		interval: interval,
		log:      log.Named("source"),
		schema:   schema,
		done:     make(chan struct{}),
	}, nil
}

// Start performs the initial load, then watches the file and schedules
// periodic re-reads. The initial load must succeed; later failures are logged
// and the previous configuration stays in effect.
func (fs *FileSource) Start() error {
	if err := fs.load(); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(fs.path); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", fs.path, err)
	}
	fs.watcher = watcher

	go fs.watch()

	fs.cron = cron.New()
	if _, err := fs.cron.AddFunc(fmt.Sprintf("@every %s", fs.interval), fs.reload); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("schedule refresh: %w", err)
	}
	fs.cron.Start()
	logger.InfoPollStarted(fs.interval, fs.log)

	return nil
}

// Stop ends the watch goroutine and the refresh schedule.
func (fs *FileSource) Stop() {
	close(fs.done)
	if fs.cron != nil {
		fs.cron.Stop()
	}
	if fs.watcher != nil {
		_ = fs.watcher.Close()
	}
	logger.InfoPollingStopped(fs.log)
}

func (fs *FileSource) watch() {
	for {
		select {
		case event, ok := <-fs.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Write == fsnotify.Write {
				fs.reload()
			}
		case err, ok := <-fs.watcher.Errors:
			if !ok {
				return
			}
			fs.log.Errorf("watch error: %v", err)
		case <-fs.done:
			return
		}
	}
}

func (fs *FileSource) reload() {
	if err := fs.load(); err != nil {
		// editors produce partial writes; keep serving the last good set
		fs.log.Errorf("reload of %s failed: %v", fs.path, err)
		return
	}
	fs.log.Infof("configuration reloaded from %s", fs.path)
}

func (fs *FileSource) load() error {
	raw, err := os.ReadFile(fs.path)
	if err != nil {
		return fmt.Errorf("read %s: %w", fs.path, err)
	}

	result, err := fs.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("validate %s: %w", fs.path, err)
	}
	if !result.Valid() {
		return fmt.Errorf("invalid configuration file %s: %v", fs.path, result.Errors())
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse %s: %w", fs.path, err)
	}
	return fs.sink.Replace(doc.Flags, doc.Segments)
}

// documentSchema constrains the top-level shape; the evaluator tolerates the
// rest (dangling references, unknown operators) at evaluation time.
const documentSchema = `{
  "type": "object",
  "required": ["flags"],
  "properties": {
    "flags": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["feature", "kind", "state", "variations"],
        "properties": {
          "feature": {"type": "string", "minLength": 1},
          "kind": {"enum": ["boolean", "string", "int", "json"]},
          "state": {"enum": ["on", "off"]},
          "variations": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["identifier", "value"],
              "properties": {
                "identifier": {"type": "string", "minLength": 1},
                "value": {"type": "string"}
              }
            }
          },
          "offVariation": {"type": "string"},
          "defaultServe": {"type": "object"},
          "rules": {"type": "array"},
          "variationToTargetMap": {"type": "array"}
        }
      }
    },
    "segments": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["identifier"],
        "properties": {
          "identifier": {"type": "string", "minLength": 1},
          "servingRules": {"type": "array"}
        }
      }
    }
  }
}`
