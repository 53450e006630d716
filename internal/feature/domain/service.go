package domain

// Service exposes the current feature catalog.
type Service interface {
	Catalog() Catalog
	Definition(code Code) (Definition, error)
}
