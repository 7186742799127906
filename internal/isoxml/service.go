package isoxml

import (
	"github.com/leuf-systems/nexus/internal/core/domain"
	"github.com/leuf-systems/nexus/internal/core/ports"
)

// Service implements ports.Iso20022Service by combining the pain.001
// builder with the camt parser.
type Service struct {
	*parser
}

// NewService constructs the isoxml Service.
func NewService() *Service {
	return &Service{parser: NewParser()}
}

var _ ports.Iso20022Service = (*Service)(nil)

// BuildPain001 delegates to the package-level BuildPain001 function.
func (s *Service) BuildPain001(dialect domain.EbicsDialect, initiation *domain.PaymentInitiation, debtor domain.BankAccount) ([]byte, error) {
	return BuildPain001(dialect, initiation, debtor)
}
