package model

import (
	"errors"
	"fmt"

	"gpetl/internal/records"
)

// ErrMalformedRecord is returned when a source row is missing its identity
// column or carries an unparsable value.
var ErrMalformedRecord = errors.New("malformed record")

func key(r records.Record, col string) Key {
	s, _ := r.String(col)
	return Key(s)
}

func requireKey(r records.Record, col string) (Key, error) {
	k := key(r, col)
	if !k.Valid() {
		return "", fmt.Errorf("%w: missing %s", ErrMalformedRecord, col)
	}
	return k, nil
}

// DecodePatient decodes a pat_info row.
func DecodePatient(r records.Record) (Patient, error) {
	id, err := requireKey(r, ColPatientID)
	if err != nil {
		return Patient{}, err
	}
	return Patient{
		ID:          id,
		PracticeKey: key(r, ColPracticeKey),
		TECKey:      key(r, ColTECKey),
	}, nil
}

// DecodePractice decodes a gp_prac row. NULL numerics decode to zero.
func DecodePractice(r records.Record) (Practice, error) {
	k, err := requireKey(r, ColPracticeKey)
	if err != nil {
		return Practice{}, err
	}
	p := Practice{Key: k}
	p.Name, _ = r.String(ColPracticeName)

	d := decoder{r: r}
	p.Latitude = d.float(ColLatitude)
	p.Longitude = d.float(ColLongitude)
	p.Population = d.int(ColPopulation)
	p.Overall = Deprivation{Score: d.float(ColScoreOverall), Category: d.int(ColCategoryOverall)}
	p.Health = Deprivation{Score: d.float(ColRankHealth), Category: d.int(ColCategoryHealth)}
	p.Access = Deprivation{Score: d.float(ColRankAccess), Category: d.int(ColCategoryAccess)}
	if d.err != nil {
		return Practice{}, fmt.Errorf("%w: practice %s: %w", ErrMalformedRecord, k, d.err)
	}
	return p, nil
}

// DecodeTECStatus decodes a tec_no_key row.
func DecodeTECStatus(r records.Record) (TECStatus, error) {
	k, err := requireKey(r, ColTECKey)
	if err != nil {
		return TECStatus{}, err
	}
	v, _ := r.String(ColTecOrNo)
	return TECStatus{Key: k, Value: v}, nil
}

// DecodeJoinedRow decodes one row of the pre-joined document query.
func DecodeJoinedRow(r records.Record) (JoinedRow, error) {
	pat, err := DecodePatient(r)
	if err != nil {
		return JoinedRow{}, err
	}
	prac, err := DecodePractice(r)
	if err != nil {
		return JoinedRow{}, err
	}
	v, _ := r.String(ColTecOrNo)
	return JoinedRow{
		Patient:  pat,
		Practice: prac,
		TEC:      TECStatus{Key: pat.TECKey, Value: v},
	}, nil
}

// decodeAll applies fn to every record, stopping at the first error.
func decodeAll[T any](recs []records.Record, fn func(records.Record) (T, error)) ([]T, error) {
	out := make([]T, 0, len(recs))
	for i, r := range recs {
		v, err := fn(r)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// DecodePatients decodes a full pat_info result set.
func DecodePatients(recs []records.Record) ([]Patient, error) {
	return decodeAll(recs, DecodePatient)
}

// DecodePractices decodes a full gp_prac result set.
func DecodePractices(recs []records.Record) ([]Practice, error) {
	return decodeAll(recs, DecodePractice)
}

// DecodeTECStatuses decodes a full tec_no_key result set.
func DecodeTECStatuses(recs []records.Record) ([]TECStatus, error) {
	return decodeAll(recs, DecodeTECStatus)
}

// DecodeJoinedRows decodes a full pre-joined result set.
func DecodeJoinedRows(recs []records.Record) ([]JoinedRow, error) {
	return decodeAll(recs, DecodeJoinedRow)
}

// decoder accumulates the first numeric parse error so attribute decoding
// reads as a flat list.
type decoder struct {
	r   records.Record
	err error
}

func (d *decoder) float(col string) float64 {
	f, _, err := d.r.Float(col)
	if err != nil && d.err == nil {
		d.err = err
	}
	return f
}

func (d *decoder) int(col string) int64 {
	n, _, err := d.r.Int(col)
	if err != nil && d.err == nil {
		d.err = err
	}
	return n
}
