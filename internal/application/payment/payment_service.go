package payment

import (
	"context"
	"time"

	"github.com/erp/ledger/internal/domain/payment"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RecordPaymentCommand records a received payment
type RecordPaymentCommand struct {
	Number         string    `json:"number" validate:"required,max=100"`
	Method         string    `json:"method" validate:"required,oneof=CASH BANK_TRANSFER CARD CHECK"`
	CounterpartyID uuid.UUID `json:"counterparty_id" validate:"required"`
	Amount         string    `json:"amount" validate:"required"`
	Currency       string    `json:"currency" validate:"required,len=3"`
}

// OpenInvoice is one outstanding invoice as seen by automatic allocation
type OpenInvoice struct {
	InvoiceID uuid.UUID
	Number    string
	DueDate   time.Time
	Balance   valueobject.Money
}

// OpenInvoiceSource lists a counterparty's outstanding invoices ordered
// oldest due date first. Backed by the reporting projections, so it can
// trail the event log slightly; the invoice aggregate remains the
// authority when the allocation is applied.
type OpenInvoiceSource interface {
	OpenInvoices(ctx context.Context, counterpartyID uuid.UUID) ([]OpenInvoice, error)
}

// PaymentService provides application-level payment operations
type PaymentService struct {
	paymentRepo  payment.Repository
	openInvoices OpenInvoiceSource
	validate     *validator.Validate
	logger       *zap.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(paymentRepo payment.Repository, openInvoices OpenInvoiceSource, logger *zap.Logger) *PaymentService {
	return &PaymentService{
		paymentRepo:  paymentRepo,
		openInvoices: openInvoices,
		validate:     validator.New(),
		logger:       logger,
	}
}

// RecordPayment records a newly received payment. Its full amount starts
// unallocated.
func (s *PaymentService) RecordPayment(ctx context.Context, cmd RecordPaymentCommand) (*payment.Payment, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", err.Error())
	}
	amount, err := valueobject.NewMoneyFromString(cmd.Amount, valueobject.Currency(cmd.Currency))
	if err != nil {
		return nil, shared.NewDomainError("INVALID_AMOUNT", err.Error())
	}

	p, err := payment.NewPayment(cmd.Number, payment.Method(cmd.Method), cmd.CounterpartyID, amount)
	if err != nil {
		return nil, err
	}
	if err := s.paymentRepo.Save(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("payment recorded",
		zap.String("payment_id", p.ID.String()),
		zap.String("number", p.Number),
		zap.String("method", p.Method.String()),
		zap.String("amount", p.Amount.String()),
	)
	return p, nil
}

// Allocate assigns part of a payment to a specific invoice. The
// payment-side invariant (amount within the unallocated remainder) is
// checked here; the invoice-side invariant is enforced when the
// allocation reactor applies it to the invoice aggregate.
func (s *PaymentService) Allocate(ctx context.Context, paymentID, invoiceID uuid.UUID, amount valueobject.Money) (*payment.Allocation, error) {
	p, err := s.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	allocation, err := p.Allocate(invoiceID, amount)
	if err != nil {
		return nil, err
	}
	if err := s.paymentRepo.Save(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("payment allocated",
		zap.String("payment_id", p.ID.String()),
		zap.String("invoice_id", invoiceID.String()),
		zap.String("allocation_id", allocation.ID.String()),
		zap.String("amount", amount.String()),
		zap.String("unallocated", p.Unallocated().String()),
	)
	return allocation, nil
}

// AllocateAutomatically spreads the payment's unallocated remainder over
// the counterparty's outstanding invoices, oldest due date first. Any
// remainder that finds no invoice stays unallocated on the payment.
func (s *PaymentService) AllocateAutomatically(ctx context.Context, paymentID uuid.UUID) ([]payment.Allocation, error) {
	p, err := s.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.IsExhausted() {
		return nil, nil
	}

	open, err := s.openInvoices.OpenInvoices(ctx, p.CounterpartyID)
	if err != nil {
		return nil, err
	}

	var made []payment.Allocation
	for _, inv := range open {
		if p.IsExhausted() {
			break
		}
		if inv.Balance.Currency() != p.Currency || !inv.Balance.IsPositive() {
			continue
		}

		amount := inv.Balance
		if greater, _ := amount.GreaterThan(p.Unallocated()); greater {
			amount = p.Unallocated()
		}
		allocation, err := p.Allocate(inv.InvoiceID, amount)
		if err != nil {
			return nil, err
		}
		made = append(made, *allocation)
	}

	if len(made) == 0 {
		return nil, nil
	}
	if err := s.paymentRepo.Save(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("payment auto-allocated",
		zap.String("payment_id", p.ID.String()),
		zap.Int("allocations", len(made)),
		zap.String("unallocated", p.Unallocated().String()),
	)
	return made, nil
}

// CorrectAllocation records a negative allocation reversing part or all
// of an existing one. amount is the positive quantity to give back.
func (s *PaymentService) CorrectAllocation(ctx context.Context, paymentID, allocationID uuid.UUID, amount valueobject.Money) (*payment.Allocation, error) {
	p, err := s.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	correction, err := p.CorrectAllocation(allocationID, amount)
	if err != nil {
		return nil, err
	}
	if err := s.paymentRepo.Save(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("payment allocation corrected",
		zap.String("payment_id", p.ID.String()),
		zap.String("original_allocation_id", allocationID.String()),
		zap.String("correction_id", correction.ID.String()),
		zap.String("amount", amount.String()),
	)
	return correction, nil
}

// GetPayment loads a payment by ID
func (s *PaymentService) GetPayment(ctx context.Context, paymentID uuid.UUID) (*payment.Payment, error) {
	return s.paymentRepo.FindByID(ctx, paymentID)
}
