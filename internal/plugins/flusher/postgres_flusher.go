// Package flusher holds the Flusher plugin implementations a collection
// pipeline can wire up by config "Type" name.
package flusher

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	_ "github.com/lib/pq"

	"github.com/messixukejia/loongcollector/internal/model"
	"github.com/messixukejia/loongcollector/internal/pluginapi"
)

func init() {
	pluginapi.RegisterFlusher("postgres_flusher", func() pluginapi.Flusher { return &PostgresFlusher{} })
}

type postgresConfig struct {
	DSN       string `json:"dsn"`
	TableName string `json:"table_name"`
}

func (c *postgresConfig) applyDefaults() {
	if c.TableName == "" {
		c.TableName = "collected_events"
	}
}

func (c *postgresConfig) validate() error {
	if c.DSN == "" {
		return fmt.Errorf("postgres_flusher: dsn is required")
	}
	return nil
}

// wireEvent is the on-wire row Serialize produces and Send decodes,
// carrying the EventGroup's open (type, time, contents, tags) shape into
// a fixed JSON column set.
type wireEvent struct {
	EventType string            `json:"event_type"`
	Seconds   int64             `json:"seconds"`
	Nanos     int32             `json:"nanos"`
	Contents  map[string]string `json:"contents"`
	Tags      map[string]string `json:"tags"`
}

// PostgresFlusher writes every EventGroup's events into a Postgres table as
// a batch INSERT, one row per event with its group-level tags merged in,
// using a multi-row INSERT ... ON CONFLICT DO NOTHING statement against
// an open (event_type, seconds, nanos, contents, tags) JSONB schema that
// fits any EventGroup.
type PostgresFlusher struct {
	cfg   postgresConfig
	ctx   *pluginapi.Context
	db    *sql.DB
}

func (f *PostgresFlusher) Type() string { return "postgres_flusher" }

func (f *PostgresFlusher) Init(ctx *pluginapi.Context, params json.RawMessage) error {
	var cfg postgresConfig
	if len(params) > 0 {
		if err := json.Unmarshal(params, &cfg); err != nil {
			return fmt.Errorf("postgres_flusher: invalid config: %w", err)
		}
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return err
	}
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return fmt.Errorf("postgres_flusher: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("postgres_flusher: ping: %w", err)
	}
	f.ctx = ctx
	f.cfg = cfg
	f.db = db
	return nil
}

// Serialize converts a group's events into the JSON-array payload Send
// later parses and inserts. The queue layer treats this as an opaque
// []byte; only this flusher knows the shape.
func (f *PostgresFlusher) Serialize(g *model.EventGroup) ([]byte, error) {
	rows := make([]wireEvent, 0, len(g.Events))
	for _, e := range g.Events {
		contents := make(map[string]string, len(e.Contents))
		for _, kv := range e.Contents {
			contents[kv.Key] = kv.Value
		}
		rows = append(rows, wireEvent{
			EventType: e.Type.String(),
			Seconds:   e.Time.Seconds,
			Nanos:     e.Time.Nanos,
			Contents:  contents,
			Tags:      g.Tags,
		})
	}
	return sonic.Marshal(rows)
}

func (f *PostgresFlusher) Send(item *model.SenderQueueItem) error {
	var rows []wireEvent
	if err := sonic.Unmarshal(item.Bytes, &rows); err != nil {
		return fmt.Errorf("postgres_flusher: decode payload: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(f.cfg.TableName)
	b.WriteString(" (event_type, seconds, nanos, contents, tags) VALUES ")

	args := make([]any, 0, len(rows)*5)
	for i, row := range rows {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, "($%d,$%d,$%d,$%d,$%d)",
			len(args)+1, len(args)+2, len(args)+3, len(args)+4, len(args)+5)

		contents, err := sonic.Marshal(row.Contents)
		if err != nil {
			return fmt.Errorf("postgres_flusher: marshal contents: %w", err)
		}
		tags, err := sonic.Marshal(row.Tags)
		if err != nil {
			return fmt.Errorf("postgres_flusher: marshal tags: %w", err)
		}

		args = append(args, row.EventType, row.Seconds, row.Nanos, contents, tags)
	}
	b.WriteString(" ON CONFLICT DO NOTHING")

	_, err := f.db.Exec(b.String(), args...)
	return err
}

func (f *PostgresFlusher) Stop(flush bool) error {
	if f.db == nil {
		return nil
	}
	return f.db.Close()
}
