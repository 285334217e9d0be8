package schedule

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trend_reposter/internal/domain"
)

func newTestStore(t *testing.T) (*Store, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	return NewStore(fs, "state/persistent.json"), fs
}

func TestStore_InitCreatesFileOneHourAhead(t *testing.T) {
	store, fs := newTestStore(t)
	now := time.Now()

	created, err := store.Init(now, time.Hour)
	require.NoError(t, err)
	assert.True(t, created)

	exists, err := afero.Exists(fs, "state/persistent.json")
	require.NoError(t, err)
	assert.True(t, exists)

	state, err := store.Read()
	require.NoError(t, err)
	assert.WithinDuration(t, now.Add(3600*time.Second), state.NextPostTime, time.Millisecond)
}

func TestStore_InitKeepsExistingFile(t *testing.T) {
	store, _ := newTestStore(t)
	first := time.Unix(1_700_000_000, 0)

	_, err := store.Init(first, time.Hour)
	require.NoError(t, err)

	created, err := store.Init(first.Add(24*time.Hour), time.Hour)
	require.NoError(t, err)
	assert.False(t, created)

	state, err := store.Read()
	require.NoError(t, err)
	assert.True(t, state.NextPostTime.Equal(first.Add(time.Hour)))
}

func TestStore_WriteRoundTripsFractionalSeconds(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Init(time.Unix(0, 0), 0)
	require.NoError(t, err)

	next := time.Unix(1_700_000_123, 250_000_000)
	require.NoError(t, store.Write(domain.ScheduleState{NextPostTime: next}))

	state, err := store.Read()
	require.NoError(t, err)
	assert.WithinDuration(t, next, state.NextPostTime, time.Microsecond)
}

func TestStore_SetPreservesOtherKeys(t *testing.T) {
	store, fs := newTestStore(t)
	require.NoError(t, fs.MkdirAll("state", 0o755))
	require.NoError(t, afero.WriteFile(fs, "state/persistent.json",
		[]byte(`{"post_time": 100, "operator": "alice", "nested": {"a": 1}}`), 0o644))

	require.NoError(t, store.Set(PostTimeKey, 200.5))

	data, err := store.ReadData()
	require.NoError(t, err)
	assert.Equal(t, 200.5, data[PostTimeKey])
	assert.Equal(t, "alice", data["operator"])
	assert.Equal(t, map[string]any{"a": float64(1)}, data["nested"])

	require.NoError(t, store.Write(domain.ScheduleState{NextPostTime: time.Unix(300, 0)}))
	data, err = store.ReadData()
	require.NoError(t, err)
	assert.Equal(t, float64(300), data[PostTimeKey])
	assert.Equal(t, "alice", data["operator"])
}

func TestStore_WriteLeavesNoTempFile(t *testing.T) {
	store, fs := newTestStore(t)
	_, err := store.Init(time.Unix(0, 0), time.Hour)
	require.NoError(t, err)

	exists, err := afero.Exists(fs, "state/persistent.json.tmp")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStore_ReadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    error
	}{
		{name: "invalid json", content: `{"post_time":`, want: ErrCorruptState},
		{name: "null document", content: `null`, want: ErrCorruptState},
		{name: "missing key", content: `{"other": 1}`, want: ErrCorruptState},
		{name: "wrong type", content: `{"post_time": "soon"}`, want: ErrCorruptState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(fs, "persistent.json", []byte(tt.content), 0o644))

			_, err := NewStore(fs, "persistent.json").Read()
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestStore_ReadMissingFile(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Read()
	assert.ErrorIs(t, err, ErrNotFound)

	err = store.Set("k", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}
