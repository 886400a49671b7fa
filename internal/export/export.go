// Package export writes design histories to YAML or Parquet for auditing and replay.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/studio/internal/models"
	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"
)

// DesignDoc is the YAML form of a design
type DesignDoc struct {
	ID          string     `yaml:"id"`
	Name        string     `yaml:"name"`
	CreatedAt   string     `yaml:"createdat"`
	LatestImage string     `yaml:"latestimage,omitempty"`
	History     []EntryDoc `yaml:"history"`
}

// EntryDoc is the YAML form of a history entry
type EntryDoc struct {
	Timestamp string                  `yaml:"timestamp"`
	Operation string                  `yaml:"operation"`
	ImageURL  string                  `yaml:"imageurl"`
	Prompt    string                  `yaml:"prompt"`
	Model     string                  `yaml:"model,omitempty"`
	Params    models.GenerationParams `yaml:"params"`
	Width     int                     `yaml:"width,omitempty"`
	Height    int                     `yaml:"height,omitempty"`
}

// Export is the top-level YAML document
type Export struct {
	ExportedAt string      `yaml:"exportedat"`
	Designs    []DesignDoc `yaml:"designs"`
}

// Row is one history entry flattened for Parquet
type Row struct {
	SessionID   string  `parquet:"session_id"`
	SessionName string  `parquet:"session_name"`
	Version     int32   `parquet:"version"`
	Timestamp   int64   `parquet:"timestamp_ms"`
	Operation   string  `parquet:"operation"`
	ImageURL    string  `parquet:"image_url"`
	Prompt      string  `parquet:"prompt"`
	Model       string  `parquet:"model"`
	Steps       int32   `parquet:"num_inference_steps"`
	Guidance    float64 `parquet:"guidance_scale"`
	Strength    float64 `parquet:"strength"`
	ParamsJSON  string  `parquet:"params_json"`
	Width       int32   `parquet:"width"`
	Height      int32   `parquet:"height"`
}

// ToYAML renders designs as a YAML document
func ToYAML(designs []models.DesignSession, now time.Time) ([]byte, error) {
	doc := Export{
		ExportedAt: now.UTC().Format(time.RFC3339),
		Designs:    make([]DesignDoc, 0, len(designs)),
	}
	for _, d := range designs {
		dd := DesignDoc{
			ID:        d.ID,
			Name:      d.Name,
			CreatedAt: d.CreatedAt.UTC().Format(time.RFC3339Nano),
			History:   make([]EntryDoc, 0, len(d.History)),
		}
		if d.LatestImage != nil {
			dd.LatestImage = *d.LatestImage
		}
		for _, e := range d.History {
			dd.History = append(dd.History, EntryDoc{
				Timestamp: e.Timestamp.UTC().Format(time.RFC3339Nano),
				Operation: string(e.Operation),
				ImageURL:  e.ImageURL,
				Prompt:    e.Prompt,
				Model:     e.Model,
				Params:    e.Params,
				Width:     e.Width,
				Height:    e.Height,
			})
		}
		doc.Designs = append(doc.Designs, dd)
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return data, nil
}

// ToRows flattens every history entry, oldest first within each design
func ToRows(designs []models.DesignSession) ([]Row, error) {
	var rows []Row
	for _, d := range designs {
		for i, e := range d.History {
			params, err := json.Marshal(e.Params)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal params: %w", err)
			}
			rows = append(rows, Row{
				SessionID:   d.ID,
				SessionName: d.Name,
				Version:     int32(i + 1),
				Timestamp:   e.Timestamp.UnixMilli(),
				Operation:   string(e.Operation),
				ImageURL:    e.ImageURL,
				Prompt:      e.Prompt,
				Model:       e.Model,
				Steps:       int32(e.Params.NumInferenceSteps),
				Guidance:    e.Params.GuidanceScale,
				Strength:    e.Params.Strength,
				ParamsJSON:  string(params),
				Width:       int32(e.Width),
				Height:      int32(e.Height),
			})
		}
	}
	return rows, nil
}

// WriteFile picks the format from the extension (.yaml, .yml or .parquet)
func WriteFile(path string, designs []models.DesignSession) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := ToYAML(designs, time.Now())
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("failed to write YAML file: %w", err)
		}
		return nil
	case ".parquet":
		return writeParquet(path, designs)
	default:
		return fmt.Errorf("unsupported export format: %s (supported: .yaml, .parquet)", filepath.Ext(path))
	}
}

func writeParquet(path string, designs []models.DesignSession) error {
	rows, err := ToRows(designs)
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create parquet file: %w", err)
	}
	defer file.Close()

	writer := parquet.NewGenericWriter[Row](file)
	if _, err := writer.Write(rows); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}
