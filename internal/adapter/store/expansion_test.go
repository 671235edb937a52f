package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/go-clip-classifier/internal/domain"
)

func TestGetExpansion(t *testing.T) {
	s, mock := newMockStore(t)
	expectSchema(mock)
	payload := `{"subtags":["tabby"],"style_traits":[],"emotions":[],"pack_suggestions":[]}`
	mock.ExpectQuery("SELECT expansion::text").
		WithArgs("k1").
		WillReturnRows(sqlmock.NewRows([]string{"expansion"}).AddRow(payload))
	mock.ExpectQuery("SELECT expansion::text").
		WithArgs("k2").
		WillReturnRows(sqlmock.NewRows([]string{"expansion"}))

	raw, ok := s.GetExpansion(context.Background(), "k1")
	require.True(t, ok)
	assert.JSONEq(t, payload, string(raw))

	_, ok = s.GetExpansion(context.Background(), "k2")
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveExpansion(t *testing.T) {
	s, mock := newMockStore(t)
	expectSchema(mock)
	mock.ExpectExec("INSERT INTO clip_label_expansion_cache").
		WithArgs("k1", "qwen3", `["cat","dog"]`, `{"subtags":["tabby"],"style_traits":[],"emotions":[],"pack_suggestions":[]}`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	exp := domain.EmptyExpansion()
	exp.Subtags = []string{"tabby"}
	s.SaveExpansion(context.Background(), "k1", "qwen3", []string{"cat", "dog"}, exp)
	assert.NoError(t, mock.ExpectationsWereMet())
}
