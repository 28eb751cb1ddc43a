package catalog

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/bmeurant/bookorder/internal/domain"
)

// Service — сервис каталога книг. Чтение не имеет побочных эффектов и
// безопасно для конкурентных и повторных вызовов.
type Service struct {
	store  domain.Store
	logger *log.Entry
}

// NewService создаёт сервис каталога.
func NewService(store domain.Store, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "catalog")
	}
	return &Service{store: store, logger: logger}
}

// FindByISBN возвращает книгу по ISBN или BookNotFoundError.
func (s *Service) FindByISBN(isbn string) (domain.Book, error) {
	if strings.TrimSpace(isbn) == "" {
		return domain.Book{}, domain.ErrISBNRequired
	}

	book, err := s.store.Books().FindByISBN(isbn)
	if err != nil {
		s.logger.WithError(err).WithField("isbn", isbn).Debug("book lookup failed")
		return domain.Book{}, err
	}
	return book, nil
}

// AddBook регистрирует книгу в каталоге.
func (s *Service) AddBook(isbn, title, author string, priceMinor int64) (domain.Book, error) {
	book, err := domain.NewBook(isbn, title, author, priceMinor)
	if err != nil {
		return domain.Book{}, err
	}

	if err := s.store.Books().Save(book); err != nil {
		s.logger.WithError(err).WithField("isbn", isbn).Error("failed to save book")
		return domain.Book{}, err
	}

	s.logger.WithFields(log.Fields{
		"isbn":  book.ISBN,
		"title": book.Title,
	}).Info("book registered in catalog")
	return book, nil
}

// ListBooks возвращает весь каталог.
func (s *Service) ListBooks() ([]domain.Book, error) {
	return s.store.Books().List()
}
