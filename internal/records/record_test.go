package records

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetFallsBackToCaseInsensitiveMatch(t *testing.T) {
	r := Record{"Registered_gp_Practice_key": "A"}

	v, ok := r.Get("Registered_GP_Practice_key")
	require.True(t, ok)
	assert.Equal(t, "A", v)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestTypedGetters(t *testing.T) {
	r := Normalize(Record{
		"name":  []byte("Hill Surgery"),
		"pop":   []byte("1200"),
		"cat":   2.0,
		"score": []byte("12.5"),
		"null":  nil,
		"bad":   "x1",
	})

	s, ok := r.String("name")
	require.True(t, ok)
	assert.Equal(t, "Hill Surgery", s)

	n, ok, err := r.Int("pop")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1200), n)

	n, ok, err = r.Int("cat")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), n)

	f, ok, err := r.Float("score")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 12.5, f, 1e-9)

	_, ok, err = r.Float("null")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = r.Float("bad")
	assert.Error(t, err)
	_, _, err = r.Int("bad")
	assert.Error(t, err)
}

func TestText(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"a", "a"},
		{[]byte("b"), "b"},
		{int64(42), "42"},
		{7, "7"},
		{2.5, "2.5"},
		{3.0, "3"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Text(tc.in), "Text(%#v)", tc.in)
	}
}

func TestCollect(t *testing.T) {
	in := []Record{{"id": 1}, {"id": 2}}

	got, err := Collect(FromSlice(in))
	require.NoError(t, err)
	assert.Equal(t, in, got)

	// Restartable: a second pass yields the same records.
	got, err = Collect(FromSlice(in))
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestCollectReturnsNoPartialSet(t *testing.T) {
	boom := errors.New("boom")
	seq := func(yield func(Record, error) bool) {
		if !yield(Record{"id": 1}, nil) {
			return
		}
		yield(nil, boom)
	}

	got, err := Collect(seq)
	require.ErrorIs(t, err, boom)
	assert.Nil(t, got)

	_, err = Collect(Fail(boom))
	assert.ErrorIs(t, err, boom)
}
