package memory

import (
	"sort"

	"github.com/bmeurant/bookorder/internal/domain"
)

// bookRepository — in-memory реализация BookRepository поверх session.
type bookRepository struct {
	s session
}

// Save регистрирует книгу или перезаписывает карточку по ISBN.
func (r *bookRepository) Save(book domain.Book) error {
	return r.s.do(func(st *state) error {
		st.books[book.ISBN] = book
		return nil
	})
}

// FindByISBN возвращает книгу или BookNotFoundError.
func (r *bookRepository) FindByISBN(isbn string) (domain.Book, error) {
	var book domain.Book
	err := r.s.do(func(st *state) error {
		stored, ok := st.books[isbn]
		if !ok {
			return &domain.BookNotFoundError{ISBN: isbn}
		}
		book = stored
		return nil
	})
	return book, err
}

// List возвращает каталог, отсортированный по ISBN.
func (r *bookRepository) List() ([]domain.Book, error) {
	var books []domain.Book
	err := r.s.do(func(st *state) error {
		books = make([]domain.Book, 0, len(st.books))
		for _, book := range st.books {
			books = append(books, book)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(books, func(i, j int) bool { return books[i].ISBN < books[j].ISBN })
	return books, nil
}

var _ domain.BookRepository = (*bookRepository)(nil)
