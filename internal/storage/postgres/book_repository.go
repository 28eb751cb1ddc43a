package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bmeurant/bookorder/internal/domain"
)

// bookRepository — PostgreSQL-реализация BookRepository.
type bookRepository struct {
	q querier
}

// NewBookRepository создаёт репозиторий каталога поверх подключения store.
func NewBookRepository(store *Store) domain.BookRepository {
	return &bookRepository{q: store.DB()}
}

func (r *bookRepository) Save(book domain.Book) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO books (isbn, title, author, price_minor, created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (isbn) DO UPDATE
		SET title = EXCLUDED.title,
		    author = EXCLUDED.author,
		    price_minor = EXCLUDED.price_minor
	`,
		book.ISBN, book.Title, book.Author, book.PriceMinor, book.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save book: %w", err)
	}
	return nil
}

func (r *bookRepository) FindByISBN(isbn string) (domain.Book, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var book domain.Book
	err := r.q.QueryRowContext(ctx, `
		SELECT isbn, title, author, price_minor, created_at
		FROM books
		WHERE isbn = $1
	`, isbn).Scan(&book.ISBN, &book.Title, &book.Author, &book.PriceMinor, &book.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Book{}, &domain.BookNotFoundError{ISBN: isbn}
		}
		return domain.Book{}, fmt.Errorf("select book: %w", err)
	}
	return book, nil
}

func (r *bookRepository) List() ([]domain.Book, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.q.QueryContext(ctx, `
		SELECT isbn, title, author, price_minor, created_at
		FROM books
		ORDER BY isbn
	`)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	books := make([]domain.Book, 0)
	for rows.Next() {
		var book domain.Book
		if err := rows.Scan(&book.ISBN, &book.Title, &book.Author, &book.PriceMinor, &book.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate books: %w", err)
	}
	return books, nil
}

var _ domain.BookRepository = (*bookRepository)(nil)
