package export

import (
	"encoding/json"
	"io"
	"os"

	"github.com/de-tools/inventory-atlas/pkg/adapters"
	"github.com/de-tools/inventory-atlas/pkg/models/domain"
)

// JSONReporter prints the same documents the HTTP API serves.
type JSONReporter struct {
	encoder *json.Encoder
}

func NewJSONReporter(writer io.Writer) *JSONReporter {
	if writer == nil {
		writer = os.Stdout
	}
	enc := json.NewEncoder(writer)
	enc.SetIndent("", "  ")
	return &JSONReporter{encoder: enc}
}

func (j *JSONReporter) Run(run domain.Run) error {
	return j.encoder.Encode(adapters.MapRunDomainToApi(run))
}

func (j *JSONReporter) Snapshot(s domain.Snapshot, detailed bool) error {
	return j.encoder.Encode(adapters.MapSnapshotDomainToApi(s, detailed))
}

func (j *JSONReporter) Delta(d domain.Delta) error {
	return j.encoder.Encode(adapters.MapDeltaDomainToApi(d))
}

func (j *JSONReporter) Accuracy(r domain.AccuracyReport) error {
	return j.encoder.Encode(adapters.MapAccuracyDomainToApi(r))
}

func (j *JSONReporter) Types(connectionID string, types []domain.ResourceType) error {
	return j.encoder.Encode(adapters.MapResourceTypesDomainToApi(connectionID, types))
}
