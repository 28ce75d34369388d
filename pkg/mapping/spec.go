package mapping

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/MiguelElGallo/evsnow/pkg/broker"
	"github.com/MiguelElGallo/evsnow/pkg/model"
)

// Spec is one mapping definition as supplied by the external configuration
// loader (spec.md §6): "{source_namespace, source_hub, consumer_group,
// target_db, target_schema, target_table, pipe_name, batching_overrides}".
type Spec struct {
	SourceNamespace   string    `json:"source_namespace"`
	SourceHub         string    `json:"source_hub"`
	ConsumerGroup     string    `json:"consumer_group"`
	TargetDB          string    `json:"target_db"`
	TargetSchema      string    `json:"target_schema"`
	TargetTable       string    `json:"target_table"`
	PipeName          string    `json:"pipe_name"`
	BatchingOverrides Overrides `json:"batching_overrides"`
}

// Overrides lets one mapping tune batching away from the process-wide
// defaults (spec.md §6 batching_overrides).
type Overrides struct {
	MaxBatchSize *int           `json:"-"`
	MaxWait      *time.Duration `json:"-"`
	Prefetch     *int           `json:"-"`
}

// overridesJSON mirrors Overrides but accepts max_wait as a Go duration
// string ("5s") rather than a raw nanosecond count, matching the rest of
// this repository's duration conventions.
type overridesJSON struct {
	MaxBatchSize *int    `json:"max_batch_size,omitempty"`
	MaxWait      *string `json:"max_wait,omitempty"`
	Prefetch     *int    `json:"prefetch,omitempty"`
}

func (o Overrides) MarshalJSON() ([]byte, error) {
	var raw overridesJSON
	raw.MaxBatchSize = o.MaxBatchSize
	raw.Prefetch = o.Prefetch
	if o.MaxWait != nil {
		s := o.MaxWait.String()
		raw.MaxWait = &s
	}
	return json.Marshal(raw)
}

func (o *Overrides) UnmarshalJSON(data []byte) error {
	var raw overridesJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	o.MaxBatchSize = raw.MaxBatchSize
	o.Prefetch = raw.Prefetch
	if raw.MaxWait != nil {
		d, err := time.ParseDuration(*raw.MaxWait)
		if err != nil {
			return fmt.Errorf("parsing max_wait override %q: %w", *raw.MaxWait, err)
		}
		o.MaxWait = &d
	}
	return nil
}

// Name identifies this mapping in logs, stats, and exit reporting.
func (s Spec) Name() string {
	return fmt.Sprintf("%s/%s->%s.%s.%s", s.SourceHub, s.ConsumerGroup, s.TargetDB, s.TargetSchema, s.TargetTable)
}

func (s Spec) checkpointKey(partition string) model.Key {
	return model.Key{
		Namespace:    s.SourceNamespace,
		Hub:          s.SourceHub,
		TargetDB:     s.TargetDB,
		TargetSchema: s.TargetSchema,
		TargetTable:  s.TargetTable,
		Partition:    partition,
	}
}

// Defaults are the process-wide batching and timeout settings (spec.md §6)
// a mapping's Overrides may adjust.
type Defaults struct {
	MaxBatchSize          int
	MaxWait               time.Duration
	Prefetch              int
	StartPosition         broker.StartPosition
	AckTimeout            time.Duration
	CheckpointSaveTimeout time.Duration
}

func (d Defaults) withOverrides(o Overrides) Defaults {
	out := d
	if o.MaxBatchSize != nil {
		out.MaxBatchSize = *o.MaxBatchSize
	}
	if o.MaxWait != nil {
		out.MaxWait = *o.MaxWait
	}
	if o.Prefetch != nil {
		out.Prefetch = *o.Prefetch
	}
	return out
}
