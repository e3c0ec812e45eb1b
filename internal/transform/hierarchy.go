package transform

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/zeebo/xxh3"

	"gpetl/internal/model"
)

// HierarchyStats summarizes one Hierarchy run.
type HierarchyStats struct {
	Rows       int
	Documents  int
	Duplicates int
}

// Hierarchy nests pre-joined rows into one document per patient. Rows are
// keyed by Patient_ID and resolved through an OrderedMap with the given
// policy; documents come out in order of each patient's first appearance.
func Hierarchy(rows []model.JoinedRow, policy ConflictPolicy) ([]model.PatientDocument, HierarchyStats, error) {
	docs := NewOrderedMap[model.Key, model.JoinedRow](policy)
	for i, row := range rows {
		if _, err := docs.Put(row.Patient.ID, row); err != nil {
			return nil, HierarchyStats{}, fmt.Errorf("row %d: %w", i+1, err)
		}
	}

	out := make([]model.PatientDocument, 0, docs.Len())
	for _, row := range docs.All() {
		out = append(out, model.NewPatientDocument(row))
	}
	return out, HierarchyStats{
		Rows:       len(rows),
		Documents:  len(out),
		Duplicates: docs.Duplicates(),
	}, nil
}

// Fingerprint hashes the JSON encoding of docs in order. Equal document sets
// in equal order share a fingerprint across runs.
func Fingerprint(docs []model.PatientDocument) (uint64, error) {
	h := xxh3.New()
	enc := json.NewEncoder(h)
	for _, d := range docs {
		if err := enc.Encode(d); err != nil {
			return 0, err
		}
	}
	return h.Sum64(), nil
}
