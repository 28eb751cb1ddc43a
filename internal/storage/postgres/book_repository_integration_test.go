package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/bmeurant/bookorder/internal/domain"
)

func TestBookRepository_PostgresSaveFindAndList(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := store.Books()

	now := time.Now().UTC().Round(time.Microsecond)
	book := domain.Book{
		ISBN:       "978-0-618-26030-0",
		Title:      "The Lord of the Rings",
		Author:     "J.R.R. Tolkien",
		PriceMinor: 2500,
		CreatedAt:  now,
	}

	if err := repo.Save(book); err != nil {
		t.Fatalf("save book: %v", err)
	}

	got, err := repo.FindByISBN(book.ISBN)
	if err != nil {
		t.Fatalf("find by isbn: %v", err)
	}
	if got.Title != book.Title || got.Author != book.Author || got.PriceMinor != book.PriceMinor {
		t.Fatalf("unexpected book payload: %+v", got)
	}

	// Повторный Save перезаписывает карточку.
	book.PriceMinor = 2700
	if err := repo.Save(book); err != nil {
		t.Fatalf("re-save book: %v", err)
	}
	got, err = repo.FindByISBN(book.ISBN)
	if err != nil {
		t.Fatalf("find after re-save: %v", err)
	}
	if got.PriceMinor != 2700 {
		t.Fatalf("expected updated price 2700, got %d", got.PriceMinor)
	}

	if err := repo.Save(domain.Book{
		ISBN:       "978-0-13-235088-4",
		Title:      "Clean Code",
		Author:     "Robert C. Martin",
		PriceMinor: 3500,
		CreatedAt:  now,
	}); err != nil {
		t.Fatalf("save second book: %v", err)
	}

	books, err := repo.List()
	if err != nil {
		t.Fatalf("list books: %v", err)
	}
	if len(books) != 2 {
		t.Fatalf("expected 2 books, got %d", len(books))
	}
	if books[0].ISBN > books[1].ISBN {
		t.Fatalf("expected list ordered by isbn: %+v", books)
	}
}

func TestBookRepository_PostgresNotFound(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)

	_, err := store.Books().FindByISBN("978-0-00-000000-0")
	if !errors.Is(err, domain.ErrBookNotFound) {
		t.Fatalf("expected ErrBookNotFound, got %v", err)
	}

	var notFound *domain.BookNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected BookNotFoundError, got %T", err)
	}
	if notFound.ISBN != "978-0-00-000000-0" {
		t.Fatalf("unexpected isbn in error: %s", notFound.ISBN)
	}
}
