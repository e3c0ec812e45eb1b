package records

import "iter"

// Seq is a lazy, finite sequence of records. Ranging over it again restarts
// the underlying read from the beginning. A non-nil error is yielded at most
// once and terminates the sequence.
type Seq = iter.Seq2[Record, error]

// Collect drains seq into a slice. It returns either every record or an
// error; a partially read set is never returned.
func Collect(seq Seq) ([]Record, error) {
	var out []Record
	for rec, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// FromSlice adapts an in-memory slice into a Seq.
func FromSlice(recs []Record) Seq {
	return func(yield func(Record, error) bool) {
		for _, r := range recs {
			if !yield(r, nil) {
				return
			}
		}
	}
}

// Fail returns a Seq that yields only err.
func Fail(err error) Seq {
	return func(yield func(Record, error) bool) {
		yield(nil, err)
	}
}
