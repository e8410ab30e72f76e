package input

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/messixukejia/loongcollector/internal/model"
	"github.com/messixukejia/loongcollector/internal/pluginapi"
	"github.com/messixukejia/loongcollector/internal/queuemgr"
)

func init() {
	pluginapi.RegisterInput("file_input", func() pluginapi.Input { return &FileInput{} })
}

type fileInputConfig struct {
	Path         string `json:"path"`
	PollInterval int    `json:"poll_interval_ms"`
	CheckpointDir string `json:"checkpoint_dir"`
}

func (c *fileInputConfig) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 500
	}
	if c.CheckpointDir == "" {
		c.CheckpointDir = "."
	}
}

func (c *fileInputConfig) validate() error {
	if c.Path == "" {
		return fmt.Errorf("file_input: path is required")
	}
	return nil
}

// FileInput tails a single file by line, polling for growth and persisting
// its read offset to a sidecar ".offset" file so a restart resumes instead
// of re-reading from the top.
type FileInput struct {
	ctx  *pluginapi.Context
	cfg  fileInputConfig
	stop chan struct{}
	done chan struct{}
	mu   sync.Mutex

	// emitFunc overrides the default push-to-queue behavior of emit, for tests.
	emitFunc func(line string)
}

func (in *FileInput) Type() string { return "file_input" }

func (in *FileInput) Init(ctx *pluginapi.Context, params json.RawMessage) error {
	var cfg fileInputConfig
	if len(params) > 0 {
		if err := json.Unmarshal(params, &cfg); err != nil {
			return fmt.Errorf("file_input: invalid config: %w", err)
		}
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return err
	}
	in.ctx = ctx
	in.cfg = cfg
	return nil
}

func (in *FileInput) Start() error {
	in.mu.Lock()
	if in.stop != nil {
		in.mu.Unlock()
		return fmt.Errorf("file_input: already started")
	}
	in.stop = make(chan struct{})
	in.done = make(chan struct{})
	in.mu.Unlock()

	go in.run()
	return nil
}

func (in *FileInput) Stop() error {
	in.mu.Lock()
	stop := in.stop
	done := in.done
	in.mu.Unlock()
	if stop == nil {
		return nil
	}
	close(stop)
	<-done
	return nil
}

func (in *FileInput) run() {
	defer close(in.done)
	offset := in.loadOffset()
	interval := time.Duration(in.cfg.PollInterval) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-in.stop:
			return
		case <-ticker.C:
			offset = in.readNewLines(offset)
		}
	}
}

func (in *FileInput) readNewLines(offset int64) int64 {
	f, err := os.Open(in.cfg.Path)
	if err != nil {
		return offset
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return offset
	}
	if stat.Size() < offset {
		// file was truncated or rotated underneath us; restart from the top.
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return offset
	}

	reader := bufio.NewReader(f)
	read := offset
	for {
		line, err := reader.ReadString('\n')
		read += int64(len(line))
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed != "" {
			in.emit(trimmed)
		}
		if err != nil {
			break
		}
	}
	in.saveOffset(read)
	return read
}

func (in *FileInput) emit(line string) {
	if in.emitFunc != nil {
		in.emitFunc(line)
		return
	}
	g := model.NewEventGroup(len(line) + 16)
	g.SetTag("source_path", in.cfg.Path)
	g.AddEvent(model.Event{
		Type: model.EventTypeLog,
		Time: model.FromTime(time.Now()),
		Contents: []model.KV{
			{Key: "content", Value: line},
		},
	})
	if status := in.ctx.Push(&model.ProcessQueueItem{
		Group:       g,
		InputIndex:  in.ctx.InputIndex,
		EnqueueTime: time.Now(),
	}); status != queuemgr.PushOK {
		in.ctx.Logger.Sugar().Warnf("file_input: push rejected for %s: %v", in.cfg.Path, status)
	}
}

func (in *FileInput) offsetPath() string {
	base := filepath.Base(in.cfg.Path)
	return filepath.Join(in.cfg.CheckpointDir, base+".offset")
}

func (in *FileInput) loadOffset() int64 {
	data, err := os.ReadFile(in.offsetPath())
	if err != nil {
		return 0
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func (in *FileInput) saveOffset(offset int64) {
	_ = os.WriteFile(in.offsetPath(), []byte(strconv.FormatInt(offset, 10)), 0o644)
}
