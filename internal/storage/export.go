package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/sugiyama/internal/sim"
)

type ExportData struct {
	Run      RunMetadata     `json:"run"`
	Rollouts []ExportRollout `json:"rollouts"`
}

type ExportRollout struct {
	Index     int                `json:"index"`
	Times     []float64          `json:"times"`
	MeanSpeed []float64          `json:"mean_speed"`
	MinSpeed  []float64          `json:"min_speed"`
	Stopped   []int              `json:"stopped"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
}

func newExportRollout(index int, samples []sim.Sample, metrics map[string]float64) ExportRollout {
	r := ExportRollout{
		Index:     index,
		Times:     make([]float64, len(samples)),
		MeanSpeed: make([]float64, len(samples)),
		MinSpeed:  make([]float64, len(samples)),
		Stopped:   make([]int, len(samples)),
		Metrics:   metrics,
	}
	for i, s := range samples {
		r.Times[i] = s.Time
		r.MeanSpeed[i] = s.MeanSpeed
		r.MinSpeed[i] = s.MinSpeed
		r.Stopped[i] = s.Stopped
	}
	return r
}

// Export gathers a stored run into one document.
func (s *Store) Export(runID string) (*ExportData, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}
	data := &ExportData{Run: *meta}
	for i := 0; i < meta.Rollouts; i++ {
		samples, err := s.LoadSeries(runID, i)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		var metrics map[string]float64
		if i < len(meta.Metrics) {
			metrics = meta.Metrics[i]
		}
		data.Rollouts = append(data.Rollouts, newExportRollout(i, samples, metrics))
	}
	return data, nil
}

func ExportJSON(w io.Writer, data *ExportData) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func ExportJSONFile(path string, data *ExportData) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return ExportJSON(file, data)
}
