package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/studio/internal/models"
	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"
)

func sampleDesigns() []models.DesignSession {
	created := time.Date(2024, 11, 5, 10, 0, 0, 0, time.UTC)
	latest := "https://img/2.png"
	return []models.DesignSession{
		{
			ID:          "s1",
			Name:        "Design 1",
			CreatedAt:   created,
			LatestImage: &latest,
			History: []models.HistoryEntry{
				{
					Timestamp: created.Add(time.Minute),
					ImageURL:  "https://img/1.png",
					Operation: models.OperationInitial,
					Prompt:    "a red car",
					Model:     "black-forest-labs/flux-1.1-pro",
					Params:    models.GenerationParams{Prompt: "a red car, super detailed, realistic, 8k", NumInferenceSteps: 30, GuidanceScale: 7.5},
				},
				{
					Timestamp: created.Add(2 * time.Minute),
					ImageURL:  "https://img/2.png",
					Operation: models.OperationInpaint,
					Prompt:    "add a hat",
					Params:    models.GenerationParams{Strength: 0.99, NumInferenceSteps: 30},
				},
			},
		},
		{ID: "s2", Name: "Design 2", CreatedAt: created, History: []models.HistoryEntry{}},
	}
}

func TestToYAML(t *testing.T) {
	data, err := ToYAML(sampleDesigns(), time.Date(2024, 11, 6, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}

	var doc Export
	if err := yaml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("Expected valid YAML: %v", err)
	}
	if len(doc.Designs) != 2 {
		t.Fatalf("Expected 2 designs, got %d", len(doc.Designs))
	}
	if doc.Designs[0].LatestImage != "https://img/2.png" {
		t.Errorf("Expected latest image, got %s", doc.Designs[0].LatestImage)
	}
	if doc.Designs[0].History[1].Operation != "inpaint" {
		t.Errorf("Expected inpaint operation, got %s", doc.Designs[0].History[1].Operation)
	}
	if !strings.Contains(string(data), "num_inference_steps: 30") {
		t.Errorf("Expected params in YAML output:\n%s", data)
	}
}

func TestToRows(t *testing.T) {
	rows, err := ToRows(sampleDesigns())
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}
	if rows[0].Version != 1 || rows[1].Version != 2 {
		t.Errorf("Expected sequential versions, got %d, %d", rows[0].Version, rows[1].Version)
	}
	if rows[1].Strength != 0.99 || rows[0].Guidance != 7.5 {
		t.Errorf("Expected mode params to be flattened, got %+v", rows)
	}
}

func TestWriteParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.parquet")
	if err := WriteFile(path, sampleDesigns()); err != nil {
		t.Fatal(err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	info, _ := file.Stat()

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		t.Fatalf("Expected readable parquet: %v", err)
	}
	if pf.NumRows() != 2 {
		t.Errorf("Expected 2 rows, got %d", pf.NumRows())
	}
}

func TestWriteFileUnsupported(t *testing.T) {
	if err := WriteFile(filepath.Join(t.TempDir(), "history.csv"), sampleDesigns()); err == nil {
		t.Error("Expected error for unsupported extension")
	}
}
