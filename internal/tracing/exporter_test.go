package tracing

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func readRecords(t *testing.T, path string) []SpanRecord {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var records []SpanRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec SpanRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		records = append(records, rec)
	}
	require.NoError(t, scanner.Err())
	return records
}

func TestNewFileExporter_CreatesParentDirectories(t *testing.T) {
	tracePath := filepath.Join(t.TempDir(), "nested", "dir", "traces.jsonl")

	exporter, err := NewFileExporter(tracePath)
	require.NoError(t, err)

	_, err = os.Stat(tracePath)
	require.NoError(t, err)
	require.NoError(t, exporter.Shutdown(context.Background()))
}

func TestFileExporter_WritesRecord(t *testing.T) {
	tracePath := filepath.Join(t.TempDir(), "traces.jsonl")
	exporter, err := NewFileExporter(tracePath)
	require.NoError(t, err)

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	parentID, _ := trace.SpanIDFromHex("1112131415161718")
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	stub := tracetest.SpanStub{
		Name:        SpanComponentConstruct,
		SpanContext: trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID}),
		Parent:      trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: parentID}),
		StartTime:   start,
		EndTime:     start.Add(1500 * time.Microsecond),
		Status:      sdktrace.Status{Code: codes.Error, Description: "boom"},
		Attributes:  []attribute.KeyValue{attribute.String(AttrComponentRole, "mail.Sender")},
		Events: []sdktrace.Event{{
			Name:       EventDependenciesResolved,
			Time:       start,
			Attributes: []attribute.KeyValue{attribute.Int(AttrDependencyCount, 2)},
		}},
	}
	require.NoError(t, exporter.ExportSpans(context.Background(), []sdktrace.ReadOnlySpan{stub.Snapshot()}))
	require.NoError(t, exporter.Shutdown(context.Background()))

	records := readRecords(t, tracePath)
	require.Len(t, records, 1)

	rec := records[0]
	require.Equal(t, "0102030405060708090a0b0c0d0e0f10", rec.TraceID)
	require.Equal(t, "0102030405060708", rec.SpanID)
	require.Equal(t, "1112131415161718", rec.ParentSpanID)
	require.Equal(t, SpanComponentConstruct, rec.Name)
	require.InDelta(t, 1.5, rec.DurationMs, 0.001)
	require.Equal(t, "ERROR", rec.Status)
	require.Equal(t, "boom", rec.StatusMsg)
	require.Equal(t, "mail.Sender", rec.Attributes[AttrComponentRole])
	require.Len(t, rec.Events, 1)
	require.Equal(t, EventDependenciesResolved, rec.Events[0].Name)
	require.EqualValues(t, 2, rec.Events[0].Attributes[AttrDependencyCount])
}

func TestFileExporter_AppendsToExistingFile(t *testing.T) {
	tracePath := filepath.Join(t.TempDir(), "traces.jsonl")

	for range 2 {
		exporter, err := NewFileExporter(tracePath)
		require.NoError(t, err)
		stub := tracetest.SpanStub{Name: "span", StartTime: time.Now(), EndTime: time.Now()}
		require.NoError(t, exporter.ExportSpans(context.Background(), []sdktrace.ReadOnlySpan{stub.Snapshot()}))
		require.NoError(t, exporter.Shutdown(context.Background()))
	}

	require.Len(t, readRecords(t, tracePath), 2)
}

func TestFileExporter_ShutdownTwiceAndExportAfter(t *testing.T) {
	exporter, err := NewFileExporter(filepath.Join(t.TempDir(), "traces.jsonl"))
	require.NoError(t, err)

	require.NoError(t, exporter.Shutdown(context.Background()))
	require.NoError(t, exporter.Shutdown(context.Background()))

	stub := tracetest.SpanStub{Name: "late"}
	require.Error(t, exporter.ExportSpans(context.Background(), []sdktrace.ReadOnlySpan{stub.Snapshot()}))
}

func TestFileExporter_ConcurrentExports(t *testing.T) {
	tracePath := filepath.Join(t.TempDir(), "traces.jsonl")
	exporter, err := NewFileExporter(tracePath)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stub := tracetest.SpanStub{Name: "concurrent", StartTime: time.Now(), EndTime: time.Now()}
			_ = exporter.ExportSpans(context.Background(), []sdktrace.ReadOnlySpan{stub.Snapshot()})
		}()
	}
	wg.Wait()
	require.NoError(t, exporter.Shutdown(context.Background()))

	require.Len(t, readRecords(t, tracePath), 10)
}
