package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockKV(t *testing.T) (KV, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLiteKVFromDB(db), mock
}

func TestSQLiteKV_Has_Present(t *testing.T) {
	kv, mock := newMockKV(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM kv WHERE key = ?")).
		WithArgs("vault:check").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	ok, err := kv.Has(context.Background(), "vault:check")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteKV_Has_Absent(t *testing.T) {
	kv, mock := newMockKV(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM kv WHERE key = ?")).
		WithArgs("vault:check").
		WillReturnError(sql.ErrNoRows)

	ok, err := kv.Has(context.Background(), "vault:check")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteKV_Get_Decodes(t *testing.T) {
	kv, mock := newMockKV(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM kv WHERE key = ?")).
		WithArgs("k").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(`{"name":"beta","count":2}`))

	var got testValue
	require.NoError(t, kv.Get(context.Background(), "k", &got))
	assert.Equal(t, testValue{Name: "beta", Count: 2}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteKV_Get_MissingKey(t *testing.T) {
	kv, mock := newMockKV(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM kv WHERE key = ?")).
		WithArgs("absent").
		WillReturnError(sql.ErrNoRows)

	var got testValue
	err := kv.Get(context.Background(), "absent", &got)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrKeyNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteKV_Set_Upserts(t *testing.T) {
	kv, mock := newMockKV(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO kv (key,value) VALUES (?,?) ON CONFLICT(key) DO UPDATE SET value = excluded.value")).
		WithArgs("k", `{"name":"v","count":0}`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, kv.Set(context.Background(), "k", testValue{Name: "v"}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteKV_Set_ExecFailure(t *testing.T) {
	kv, mock := newMockKV(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO kv")).
		WillReturnError(errors.New("disk I/O error"))

	err := kv.Set(context.Background(), "k", testValue{Name: "v"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPersistence))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteKV_Delete(t *testing.T) {
	kv, mock := newMockKV(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM kv WHERE key = ?")).
		WithArgs("k").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, kv.Delete(context.Background(), "k"))
	require.NoError(t, mock.ExpectationsWereMet())
}
