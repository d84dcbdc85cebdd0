package ingest

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/konecto/actuator-agent/core"
	"github.com/konecto/actuator-agent/embed/mock"
	"github.com/konecto/actuator-agent/store"
	"github.com/konecto/actuator-agent/tools"
)

func TestNormalizeColumn(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Base Part Number", "base_part_number"},
		{"Output Torque (Nm)", "output_torque_nm"},
		{"Duty Cycle 54%", "duty_cycle_54pct"},
		{"Voltage/Power", "voltage_power"},
		{"Operating Speed [sec] 60-Hz", "operating_speed_sec_60_hz"},
		{"  Weight (kg)  ", "weight_kg"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeColumn(tt.in), "input %q", tt.in)
	}
}

func TestNarrativeTextSkipsAbsent(t *testing.T) {
	attrs := core.NewAttributes()
	attrs.Set("context_type", core.String("110VAC Single Phase"))
	attrs.Set("output_torque_nm", core.Number(40))
	attrs.Set("notes", core.String("nan"))

	text := NarrativeText("763A00", attrs)
	assert.Equal(t, "Base Part Number: 763A00. Context Type: 110VAC Single Phase. Output Torque Nm: 40.", text)
}

const sampleCSV = `Base Part Number,Voltage/Power,Output Torque (Nm),Duty Cycle 54%,Notes
763A00-11330C00/A,110VAC Single Phase,40,25,
763A00-22330C00/A,230VAC Single Phase,40,25,standard
,this row has no part number,0,0,
763B00-11330C00/A,110VAC Single Phase,90,50,high torque
`

func TestPipelineRun(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "actuators.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(sampleCSV), 0o644))

	embedder := mock.New(64)
	pipeline := NewPipeline(Config{
		SQLitePath: filepath.Join(dir, "actuators.db"),
		ChromaDir:  filepath.Join(dir, "chroma"),
		Embedder:   embedder,
	})

	summary, err := pipeline.Run(context.Background(), csvPath)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Rows)
	assert.Equal(t, 3, summary.Chunks)

	// Both backends must serve the ingested rows through the gateway.
	g := store.NewGateway(store.Config{
		SQLitePath: filepath.Join(dir, "actuators.db"),
		ChromaDir:  filepath.Join(dir, "chroma"),
		Embedder:   embedder,
	})
	require.NoError(t, g.Open(context.Background()))
	defer g.Close()

	records := g.Lookup(context.Background(), "763A00-11330C00/A")
	require.Len(t, records, 1)
	torque, ok := records[0].Attributes.Get("output_torque_nm")
	require.True(t, ok)
	f, isNum := torque.Float()
	assert.True(t, isNum)
	assert.Equal(t, 40.0, f)
	// Empty cells classify as absent and are dropped from the stored bag.
	_, hasNotes := records[0].Attributes.Get("notes")
	assert.False(t, hasNotes)

	require.True(t, g.SemanticAvailable())
	hits := g.Search(context.Background(), "Base Part Number: 763B00-11330C00/A. Context Type: 110VAC Single Phase. Output Torque Nm: 90. Duty Cycle 54pct: 50. Notes: high torque.", 1)
	require.Len(t, hits, 1)
	assert.Equal(t, "763B00-11330C00/A", hits[0].Chunk.Metadata["base_part_number"])
	assert.Equal(t, "110VAC Single Phase", hits[0].Chunk.Metadata["context_type"])
}

// Extraction runs have named the operating-context column both ways. Either
// shape must land on the canonical context_type key so the part-number tool
// renders its Voltage/Power header and semantic hits carry the real class.
func TestPipelineCanonicalizesContextColumn(t *testing.T) {
	shapes := []struct {
		name   string
		header string
	}{
		{"context type column", "Base Part Number,Context_Type,Output Torque (Nm)"},
		{"voltage power column", "Base Part Number,Voltage/Power,Output Torque (Nm)"},
	}
	for _, shape := range shapes {
		t.Run(shape.name, func(t *testing.T) {
			dir := t.TempDir()
			csvPath := filepath.Join(dir, "actuators.csv")
			csv := shape.header + "\n763A00-11330C00/A,220V 3 Phase Power,300\n"
			require.NoError(t, os.WriteFile(csvPath, []byte(csv), 0o644))

			embedder := mock.New(64)
			pipeline := NewPipeline(Config{
				SQLitePath: filepath.Join(dir, "actuators.db"),
				ChromaDir:  filepath.Join(dir, "chroma"),
				Embedder:   embedder,
			})
			_, err := pipeline.Run(context.Background(), csvPath)
			require.NoError(t, err)

			g := store.NewGateway(store.Config{
				SQLitePath: filepath.Join(dir, "actuators.db"),
				ChromaDir:  filepath.Join(dir, "chroma"),
				Embedder:   embedder,
			})
			require.NoError(t, g.Open(context.Background()))
			defer g.Close()

			records := g.Lookup(context.Background(), "763A00-11330C00/A")
			require.Len(t, records, 1)
			ctxType, ok := records[0].Attributes.Get("context_type")
			require.True(t, ok)
			assert.Equal(t, "220V 3 Phase Power", ctxType.Render())

			partOut := tools.NewPartNumberTool(g).Invoke(context.Background(),
				json.RawMessage(`{"part_number":"763A00-11330C00/A"}`))
			assert.Contains(t, partOut, "Voltage/Power: 220V 3 Phase Power")

			hits := g.Search(context.Background(), "220V 3 phase actuator", 1)
			require.Len(t, hits, 1)
			assert.Equal(t, "220V 3 Phase Power", hits[0].Chunk.Metadata["context_type"])

			semanticOut := tools.NewSemanticTool(g).Invoke(context.Background(),
				json.RawMessage(`{"query":"220V 3 phase actuator"}`))
			assert.Contains(t, semanticOut, "Context Type: 220V 3 Phase Power")
		})
	}
}

func TestPipelineRunIsFullRebuild(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "actuators.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(sampleCSV), 0o644))

	pipeline := NewPipeline(Config{
		SQLitePath: filepath.Join(dir, "actuators.db"),
		ChromaDir:  filepath.Join(dir, "chroma"),
		Embedder:   mock.New(64),
	})
	_, err := pipeline.Run(context.Background(), csvPath)
	require.NoError(t, err)

	// A second run with fewer rows must not leave the removed ones behind.
	smaller := "Base Part Number,Voltage/Power\n763A00-11330C00/A,110VAC Single Phase\n"
	require.NoError(t, os.WriteFile(csvPath, []byte(smaller), 0o644))
	summary, err := pipeline.Run(context.Background(), csvPath)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Rows)

	g := store.NewGateway(store.Config{
		SQLitePath: filepath.Join(dir, "actuators.db"),
		ChromaDir:  filepath.Join(dir, "chroma"),
		Embedder:   mock.New(64),
	})
	require.NoError(t, g.Open(context.Background()))
	defer g.Close()
	assert.Empty(t, g.Lookup(context.Background(), "763B00-11330C00/A"))
	assert.Len(t, g.Lookup(context.Background(), "763A00-11330C00/A"), 1)
}

func TestPipelineRejectsMissingPartColumn(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("Voltage,Torque\n110V,40\n"), 0o644))

	pipeline := NewPipeline(Config{
		SQLitePath: filepath.Join(dir, "actuators.db"),
		ChromaDir:  filepath.Join(dir, "chroma"),
		Embedder:   mock.New(64),
	})
	_, err := pipeline.Run(context.Background(), csvPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_part_number")
}
