package domain

import (
	"strings"
	"time"
)

// Book — карточка книги в каталоге. После создания не изменяется;
// оркестратор заказов читает её только для снапшота цены.
type Book struct {
	// ISBN — внешний идентификатор книги, он же ключ каталога.
	ISBN string
	// Title — название книги.
	Title string
	// Author — автор книги.
	Author string
	// PriceMinor — цена в минимальных денежных единицах (например, центы).
	PriceMinor int64
	// CreatedAt фиксирует момент регистрации книги в каталоге.
	CreatedAt time.Time
}

// NewBook создаёт книгу, проверяя обязательные поля и неотрицательность цены.
func NewBook(isbn, title, author string, priceMinor int64) (Book, error) {
	if strings.TrimSpace(isbn) == "" {
		return Book{}, ErrISBNRequired
	}
	if strings.TrimSpace(title) == "" {
		return Book{}, ErrTitleRequired
	}
	if strings.TrimSpace(author) == "" {
		return Book{}, ErrAuthorRequired
	}
	if priceMinor < 0 {
		return Book{}, ErrPriceNegative
	}

	return Book{
		ISBN:       isbn,
		Title:      title,
		Author:     author,
		PriceMinor: priceMinor,
		CreatedAt:  time.Now().UTC(),
	}, nil
}
