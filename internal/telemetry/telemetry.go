// Package telemetry is the concrete realization of the opaque sink from
// spec §6: a handle cloned into every worker at spawn time, recording
// counters via opencensus stats with a Prometheus exporter backing the
// introspection HTTP server's /metrics route.
package telemetry

import (
	"context"

	"github.com/pkg/errors"
	prometheusexporter "contrib.go.opencensus.io/exporter/prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"

	"github.com/cdot-network/ibc-relayer-supervisor/internal/ibc"
)

var (
	keyChainID    = tag.MustNewKey("chain_id")
	keyObjectType = tag.MustNewKey("object_type")

	measureObjectsClassified = stats.Int64("relayer/objects_classified", "objects produced by the classifier", stats.UnitDimensionless)
	measureEventsDispatched  = stats.Int64("relayer/events_dispatched", "events handed to a worker", stats.UnitDimensionless)
	measureWorkersSpawned    = stats.Int64("relayer/workers_spawned", "workers started", stats.UnitDimensionless)
	measureWorkersStopped    = stats.Int64("relayer/workers_stopped", "workers stopped", stats.UnitDimensionless)
	measureSpawnFailures     = stats.Int64("relayer/chain_spawn_failures", "chain runtime spawn failures", stats.UnitDimensionless)
)

// Telemetry is the opaque handle workers and the supervisor record
// activity against. It is safe for concurrent use and cheap to clone —
// callers hold it by pointer, matching spec §6 ("a Telemetry handle
// cloneable to each worker").
type Telemetry struct {
	registry *prometheus.Registry
}

// New registers the relayer's opencensus views against a fresh
// Prometheus registry and returns a Telemetry handle exporting into it.
func New() (*Telemetry, error) {
	registry := prometheus.NewRegistry()

	exporter, err := prometheusexporter.NewExporter(prometheusexporter.Options{
		Registry:  registry,
		Namespace: "ibc_relayer",
	})
	if err != nil {
		return nil, errors.Wrap(err, "constructing prometheus exporter")
	}
	view.RegisterExporter(exporter)

	views := []*view.View{
		{Name: "objects_classified", Measure: measureObjectsClassified, Aggregation: view.Count(), TagKeys: []tag.Key{keyChainID, keyObjectType}},
		{Name: "events_dispatched", Measure: measureEventsDispatched, Aggregation: view.Count(), TagKeys: []tag.Key{keyChainID, keyObjectType}},
		{Name: "workers_spawned", Measure: measureWorkersSpawned, Aggregation: view.Count(), TagKeys: []tag.Key{keyObjectType}},
		{Name: "workers_stopped", Measure: measureWorkersStopped, Aggregation: view.Count(), TagKeys: []tag.Key{keyObjectType}},
		{Name: "chain_spawn_failures", Measure: measureSpawnFailures, Aggregation: view.Count(), TagKeys: []tag.Key{keyChainID}},
	}
	if err := view.Register(views...); err != nil {
		return nil, errors.Wrap(err, "registering opencensus views")
	}

	return &Telemetry{registry: registry}, nil
}

// Registry returns the Prometheus registry backing /metrics.
func (t *Telemetry) Registry() *prometheus.Registry { return t.registry }

// ObjectClassified records one Object produced by the classifier.
func (t *Telemetry) ObjectClassified(chainID ibc.ChainID, objectType ibc.ObjectType) {
	t.record(measureObjectsClassified, chainID, objectType)
}

// EventDispatched records one event handed to a worker.
func (t *Telemetry) EventDispatched(chainID ibc.ChainID, objectType ibc.ObjectType) {
	t.record(measureEventsDispatched, chainID, objectType)
}

// WorkerSpawned records a worker start.
func (t *Telemetry) WorkerSpawned(objectType ibc.ObjectType) {
	t.record(measureWorkersSpawned, "", objectType)
}

// WorkerStopped records a worker stop.
func (t *Telemetry) WorkerStopped(objectType ibc.ObjectType) {
	t.record(measureWorkersStopped, "", objectType)
}

// ChainSpawnFailed records a chain runtime spawn failure.
func (t *Telemetry) ChainSpawnFailed(chainID ibc.ChainID) {
	ctx, err := tag.New(context.Background(), tag.Insert(keyChainID, string(chainID)))
	if err != nil {
		return
	}
	stats.Record(ctx, measureSpawnFailures.M(1))
}

func (t *Telemetry) record(measure *stats.Int64Measure, chainID ibc.ChainID, objectType ibc.ObjectType) {
	mutators := []tag.Mutator{tag.Insert(keyObjectType, string(objectType))}
	if chainID != "" {
		mutators = append(mutators, tag.Insert(keyChainID, string(chainID)))
	}
	ctx, err := tag.New(context.Background(), mutators...)
	if err != nil {
		return
	}
	stats.Record(ctx, measure.M(1))
}
