package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/circulation/internal/domain"
	"github.com/yourorg/circulation/pkg/cache"
)

func newBookService() (*BookService, *bookStore) {
	books := newBookStore()
	return NewBookService(books, cache.New(), nil), books
}

func TestCreateBookStartsAvailable(t *testing.T) {
	svc, _ := newBookService()

	book, err := svc.CreateBook(context.Background(), BookInput{
		Title:  "Dune",
		Author: "Frank Herbert",
		Genre:  "Science Fiction",
	})
	require.NoError(t, err)
	assert.NotZero(t, book.ID)
	assert.True(t, book.Available)
}

func TestCreateBookValidatesInput(t *testing.T) {
	svc, _ := newBookService()

	cases := []BookInput{
		{Author: "Frank Herbert", Genre: "Science Fiction"},
		{Title: "Dune", Genre: "Science Fiction"},
		{Title: "Dune", Author: "Frank Herbert"},
		{Title: "   ", Author: "Frank Herbert", Genre: "Science Fiction"},
	}
	for _, in := range cases {
		_, err := svc.CreateBook(context.Background(), in)
		assert.Error(t, err, "input %+v should be rejected", in)
	}
}

func TestUpdateBookLeavesAvailabilityAlone(t *testing.T) {
	svc, books := newBookService()
	book := books.add("Dune", "Frank Herbert", "Science Fiction", false)

	updated, err := svc.UpdateBook(context.Background(), book.ID, BookInput{
		Title:  "Dune Messiah",
		Author: "Frank Herbert",
		Genre:  "Science Fiction",
	})
	require.NoError(t, err)
	assert.Equal(t, "Dune Messiah", updated.Title)

	stored, err := books.GetByID(context.Background(), book.ID)
	require.NoError(t, err)
	assert.False(t, stored.Available, "catalog edits must not free a loaned book")
}

func TestUpdateBookNotFound(t *testing.T) {
	svc, _ := newBookService()
	_, err := svc.UpdateBook(context.Background(), 999, BookInput{
		Title:  "Dune",
		Author: "Frank Herbert",
		Genre:  "Science Fiction",
	})
	assert.ErrorIs(t, err, domain.ErrBookNotFound)
}

func TestSearchBooksCacheInvalidatedOnWrite(t *testing.T) {
	svc, books := newBookService()
	books.add("Dune", "Frank Herbert", "Science Fiction", true)

	found, err := svc.SearchBooks(context.Background(), "dune")
	require.NoError(t, err)
	require.Len(t, found, 1)

	// Served from cache: same result even though the query is recased.
	found, err = svc.SearchBooks(context.Background(), "DUNE")
	require.NoError(t, err)
	require.Len(t, found, 1)

	_, err = svc.CreateBook(context.Background(), BookInput{
		Title:  "Dune Messiah",
		Author: "Frank Herbert",
		Genre:  "Science Fiction",
	})
	require.NoError(t, err)

	found, err = svc.SearchBooks(context.Background(), "dune")
	require.NoError(t, err)
	assert.Len(t, found, 2, "catalog writes must clear cached searches")
}

func TestAvailableBooks(t *testing.T) {
	svc, books := newBookService()
	books.add("Dune", "Frank Herbert", "Science Fiction", true)
	books.add("Emma", "Jane Austen", "Classic", false)

	available, err := svc.AvailableBooks(context.Background())
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "Dune", available[0].Title)
}

func TestDeleteBook(t *testing.T) {
	svc, books := newBookService()
	book := books.add("Dune", "Frank Herbert", "Science Fiction", true)

	require.NoError(t, svc.DeleteBook(context.Background(), book.ID))

	_, err := svc.GetBook(context.Background(), book.ID)
	assert.ErrorIs(t, err, domain.ErrBookNotFound)

	err = svc.DeleteBook(context.Background(), book.ID)
	assert.ErrorIs(t, err, domain.ErrBookNotFound)
}
