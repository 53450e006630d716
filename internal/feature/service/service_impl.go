package service

import (
	"github.com/smallbiznis/meterguard/internal/config"
	"github.com/smallbiznis/meterguard/internal/feature/domain"
	"go.uber.org/fx"
)

type Params struct {
	fx.In

	Holder *config.UsageConfigHolder
}

type Service struct {
	holder *config.UsageConfigHolder
}

func New(p Params) domain.Service {
	return &Service{holder: p.Holder}
}

// Catalog returns the catalog of the most recently loaded usage config.
func (s *Service) Catalog() domain.Catalog {
	if s.holder == nil {
		return domain.DefaultCatalog()
	}
	return s.holder.Get().Catalog()
}

func (s *Service) Definition(code domain.Code) (domain.Definition, error) {
	def, ok := s.Catalog().Lookup(code)
	if !ok {
		return domain.Definition{}, domain.ErrInvalidFeature
	}
	return def, nil
}
