package tracing

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestFileExporter_WritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.jsonl")

	exporter, err := NewFileExporter(path)
	require.NoError(t, err)

	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	tracer := tp.Tracer("test")

	ctx, parent := tracer.Start(context.Background(), "workflow.start")
	_, child := tracer.Start(ctx, "workflow.step")
	child.End()
	parent.End()

	require.NoError(t, tp.Shutdown(context.Background()))

	file, err := os.Open(path) //nolint:gosec
	require.NoError(t, err)
	defer file.Close()

	var records []SpanRecord
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var record SpanRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &record))
		records = append(records, record)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, records, 2)

	// Child span exported first (it ended first) and references the parent
	require.Equal(t, "workflow.step", records[0].Name)
	require.Equal(t, records[1].SpanID, records[0].ParentSpanID)
	require.Equal(t, records[0].TraceID, records[1].TraceID)
}

func TestFileExporter_CreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "traces.jsonl")
	exporter, err := NewFileExporter(path)
	require.NoError(t, err)
	require.NoError(t, exporter.Shutdown(context.Background()))

	_, err = os.Stat(filepath.Dir(path))
	require.NoError(t, err)
}

func TestFileExporter_ShutdownTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.jsonl")
	exporter, err := NewFileExporter(path)
	require.NoError(t, err)

	require.NoError(t, exporter.Shutdown(context.Background()))
	require.NoError(t, exporter.Shutdown(context.Background()))
}
