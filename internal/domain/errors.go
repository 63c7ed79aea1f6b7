package domain

import (
	"errors"
	"fmt"
)

// BookErrorKind clasifica por qué un snapshot no es válido.
type BookErrorKind int

const (
	// ParseFailure: precio o tamaño no numérico, precio <= 0 o tamaño negativo.
	ParseFailure BookErrorKind = iota
	// CrossedBook: best bid >= best ask.
	CrossedBook
	// EmptyBook: uno de los dos lados no tiene niveles.
	EmptyBook
)

// String devuelve el nombre estable del tipo de error (se usa en logs).
func (k BookErrorKind) String() string {
	switch k {
	case ParseFailure:
		return "parse_failure"
	case CrossedBook:
		return "crossed_book"
	case EmptyBook:
		return "empty_book"
	default:
		return "unknown"
	}
}

// Sentinels para errors.Is.
var (
	ErrParseFailure = &BookError{Kind: ParseFailure}
	ErrCrossedBook  = &BookError{Kind: CrossedBook}
	ErrEmptyBook    = &BookError{Kind: EmptyBook}
)

// BookError es el error que devuelve el normalizador.
// Todos son no recuperables para ese snapshot: el caller lo salta y espera el siguiente.
type BookError struct {
	Kind   BookErrorKind
	Side   string // "bid" | "ask" | ""
	Detail string
	Err    error
}

func (e *BookError) Error() string {
	msg := "book: " + e.Kind.String()
	if e.Side != "" {
		msg += " (" + e.Side + ")"
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *BookError) Unwrap() error { return e.Err }

// Is compara solo por Kind, así errors.Is(err, ErrCrossedBook) funciona con cualquier detalle.
func (e *BookError) Is(target error) bool {
	var t *BookError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func newBookError(kind BookErrorKind, side, format string, args ...any) *BookError {
	return &BookError{Kind: kind, Side: side, Detail: fmt.Sprintf(format, args...)}
}

// NewParseFailure crea un ParseFailure para el lado dado envolviendo la causa.
func NewParseFailure(side string, cause error, format string, args ...any) *BookError {
	e := newBookError(ParseFailure, side, format, args...)
	e.Err = cause
	return e
}

// NewCrossedBook crea un CrossedBook con los precios que lo provocaron.
func NewCrossedBook(bestBid, bestAsk string) *BookError {
	return newBookError(CrossedBook, "", "best bid %s >= best ask %s", bestBid, bestAsk)
}

// NewEmptyBook crea un EmptyBook para el lado vacío.
func NewEmptyBook(side string) *BookError {
	return newBookError(EmptyBook, side, "no levels")
}
