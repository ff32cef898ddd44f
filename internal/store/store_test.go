package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"speakcheck/internal/domain"
)

func TestMemoryStoreTakeIsReadOnce(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, ok, err := s.Take(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	raw := []byte(`{"status":"ok"}`)
	require.NoError(t, s.Save(ctx, raw))
	raw[0] = 'X'

	got, ok, err := s.Take(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"status":"ok"}`, string(got))

	_, ok, _ = s.Take(ctx)
	assert.False(t, ok)
}

func TestMemoryStoreSaveOverwrites(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, []byte("first")))
	require.NoError(t, s.Save(ctx, []byte("second")))

	got, ok, _ := s.Take(ctx)
	assert.True(t, ok)
	assert.Equal(t, "second", string(got))
}

func TestRedisStoreSave(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := newRedisStore(db, "lastResult", 6*time.Hour)

	raw := []byte(`{"status":"ok"}`)
	mock.ExpectSet("lastResult", raw, 6*time.Hour).SetVal("OK")

	require.NoError(t, s.Save(context.Background(), raw))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStoreSaveError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := newRedisStore(db, "lastResult", time.Hour)

	mock.ExpectSet("lastResult", []byte("x"), time.Hour).SetErr(errors.New("READONLY"))

	err := s.Save(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "READONLY")
}

func TestRedisStoreTake(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := newRedisStore(db, "lastResult", time.Hour)

	mock.ExpectGetDel("lastResult").SetVal(`{"status":"ok"}`)
	mock.ExpectGetDel("lastResult").RedisNil()

	got, ok, err := s.Take(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"status":"ok"}`, string(got))

	got, ok, err = s.Take(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStoreTakeError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := newRedisStore(db, "lastResult", time.Hour)

	mock.ExpectGetDel("lastResult").SetErr(errors.New("connection refused"))

	_, ok, err := s.Take(context.Background())
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestNewRedisStoreRejectsBadURL(t *testing.T) {
	_, err := NewRedisStore("not a url", "k", time.Hour, zerolog.Nop())
	assert.Error(t, err)
}

const fixedID = "01ARZ3NDEKTSV4RRFFQ69G5FAV"

func newTestArchive(t *testing.T) *FileArchive {
	t.Helper()
	a := NewFileArchive(filepath.Join(t.TempDir(), "results"))
	a.newID = func() string { return fixedID }
	a.now = func() time.Time { return time.Date(2026, 5, 4, 3, 2, 1, 0, time.FixedZone("x", 3600)) }
	return a
}

func TestFileArchivePutStampsAndPersists(t *testing.T) {
	a := newTestArchive(t)

	id, stamped, err := a.Put(context.Background(), []byte(`{"status":"ok","scores":{"pronunciation":77}}`))
	require.NoError(t, err)
	assert.Equal(t, fixedID, id)

	parsed := gjson.ParseBytes(stamped)
	assert.Equal(t, fixedID, parsed.Get("result_id").String())
	assert.Equal(t, "2026-05-04T02:02:01Z", parsed.Get("saved_at").String())
	assert.Equal(t, 77.0, parsed.Get("scores.pronunciation").Float())

	onDisk, err := os.ReadFile(filepath.Join(a.dir, fixedID+".json"))
	require.NoError(t, err)
	assert.Equal(t, stamped, onDisk)

	_, err = os.Stat(filepath.Join(a.dir, fixedID+".json.tmp"))
	assert.True(t, os.IsNotExist(err), "temp file must not remain")

	got, err := a.Get(context.Background(), fixedID)
	require.NoError(t, err)
	assert.Equal(t, stamped, got)
}

func TestFileArchiveGetUnknown(t *testing.T) {
	a := newTestArchive(t)

	_, err := a.Get(context.Background(), "01BX5ZZKBKACTAV9WEVGEMMVRZ")
	assert.True(t, errors.Is(err, domain.ErrResultNotFound))

	_, err = a.Get(context.Background(), "../../etc/passwd")
	assert.True(t, errors.Is(err, domain.ErrResultNotFound))
}

func TestFileArchiveRealIDs(t *testing.T) {
	a := NewFileArchive(t.TempDir())

	first, _, err := a.Put(context.Background(), []byte(`{"status":"ok"}`))
	require.NoError(t, err)
	second, _, err := a.Put(context.Background(), []byte(`{"status":"ok"}`))
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	_, err = a.Get(context.Background(), second)
	assert.NoError(t, err)
}
