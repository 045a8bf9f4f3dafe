package invoice

import (
	"context"
	"time"

	"github.com/erp/ledger/internal/domain/invoice"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/erp/ledger/internal/domain/tax"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LineItemInput is one billed line in a create command
type LineItemInput struct {
	Description string `json:"description" validate:"required,max=500"`
	Category    string `json:"category"`
	Quantity    string `json:"quantity" validate:"required"`
	UnitPrice   string `json:"unit_price" validate:"required"`
}

// CreateInvoiceCommand creates a draft invoice
type CreateInvoiceCommand struct {
	Number           string          `json:"number" validate:"required,max=100"`
	CounterpartyID   uuid.UUID       `json:"counterparty_id" validate:"required"`
	CounterpartyName string          `json:"counterparty_name" validate:"required,max=200"`
	Currency         string          `json:"currency" validate:"required,len=3"`
	Jurisdiction     string          `json:"jurisdiction" validate:"required"`
	DueDate          time.Time       `json:"due_date" validate:"required"`
	Items            []LineItemInput `json:"items" validate:"required,min=1,dive"`
}

// InvoiceService provides application-level invoice operations
type InvoiceService struct {
	invoiceRepo invoice.Repository
	taxPolicies *tax.PolicyRegistry
	validate    *validator.Validate
	logger      *zap.Logger
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(invoiceRepo invoice.Repository, taxPolicies *tax.PolicyRegistry, logger *zap.Logger) *InvoiceService {
	return &InvoiceService{
		invoiceRepo: invoiceRepo,
		taxPolicies: taxPolicies,
		validate:    validator.New(),
		logger:      logger,
	}
}

// CreateInvoice creates a new draft invoice
func (s *InvoiceService) CreateInvoice(ctx context.Context, cmd CreateInvoiceCommand) (*invoice.Invoice, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", err.Error())
	}
	// The jurisdiction must be known up front so approval cannot later
	// fail on a missing policy
	if _, err := s.taxPolicies.Get(cmd.Jurisdiction); err != nil {
		return nil, shared.NewDomainError("UNKNOWN_JURISDICTION", "No tax policy registered for jurisdiction "+cmd.Jurisdiction)
	}

	currency := valueobject.Currency(cmd.Currency)
	items := make([]invoice.LineItem, len(cmd.Items))
	for i, in := range cmd.Items {
		quantity, err := decimal.NewFromString(in.Quantity)
		if err != nil {
			return nil, shared.NewDomainError("INVALID_QUANTITY", err.Error())
		}
		unitPrice, err := valueobject.NewMoneyFromString(in.UnitPrice, currency)
		if err != nil {
			return nil, shared.NewDomainError("INVALID_AMOUNT", err.Error())
		}
		items[i] = invoice.LineItem{
			Description: in.Description,
			Category:    in.Category,
			Quantity:    quantity,
			UnitPrice:   unitPrice,
		}
	}

	inv, err := invoice.NewInvoice(cmd.Number, cmd.CounterpartyID, cmd.CounterpartyName, currency, cmd.Jurisdiction, cmd.DueDate, items)
	if err != nil {
		return nil, err
	}
	if err := s.invoiceRepo.Save(ctx, inv); err != nil {
		return nil, err
	}

	s.logger.Info("draft invoice created",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("number", inv.Number),
		zap.String("counterparty_id", inv.CounterpartyID.String()),
	)
	return inv, nil
}

// ApproveInvoice runs the tax evaluator for the invoice's jurisdiction,
// attaches its output and approves the invoice. Both events land in the
// same append, so approval is atomic with the tax lines it fixed.
func (s *InvoiceService) ApproveInvoice(ctx context.Context, invoiceID uuid.UUID) (*invoice.Invoice, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	cfg, err := s.taxPolicies.Get(inv.Jurisdiction)
	if err != nil {
		return nil, shared.NewDomainError("UNKNOWN_JURISDICTION", "No tax policy registered for jurisdiction "+inv.Jurisdiction)
	}
	taxLines, err := tax.Evaluate(inv.TaxableItems(), cfg)
	if err != nil {
		return nil, err
	}

	if err := inv.AttachTaxLines(taxLines); err != nil {
		return nil, err
	}
	if err := inv.Approve(); err != nil {
		return nil, err
	}
	if err := s.invoiceRepo.Save(ctx, inv); err != nil {
		return nil, err
	}

	s.logger.Info("invoice approved",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("number", inv.Number),
		zap.String("subtotal", inv.Subtotal().String()),
		zap.String("tax_total", inv.TaxTotal().String()),
		zap.String("total", inv.Total().String()),
	)
	return inv, nil
}

// SendInvoice marks an approved invoice as sent
func (s *InvoiceService) SendInvoice(ctx context.Context, invoiceID uuid.UUID) (*invoice.Invoice, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := inv.Send(); err != nil {
		return nil, err
	}
	if err := s.invoiceRepo.Save(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// CancelInvoice cancels a Draft or Approved invoice
func (s *InvoiceService) CancelInvoice(ctx context.Context, invoiceID uuid.UUID, reason string) (*invoice.Invoice, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := inv.Cancel(reason); err != nil {
		return nil, err
	}
	if err := s.invoiceRepo.Save(ctx, inv); err != nil {
		return nil, err
	}

	s.logger.Info("invoice cancelled",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("number", inv.Number),
		zap.String("reason", reason),
	)
	return inv, nil
}

// GetInvoice loads an invoice by ID
func (s *InvoiceService) GetInvoice(ctx context.Context, invoiceID uuid.UUID) (*invoice.Invoice, error) {
	return s.invoiceRepo.FindByID(ctx, invoiceID)
}
