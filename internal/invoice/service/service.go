package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/schoolbill/internal/clock"
	documentcounterdomain "github.com/smallbiznis/schoolbill/internal/documentcounter/domain"
	invoicedomain "github.com/smallbiznis/schoolbill/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/schoolbill/internal/ledger/domain"
	obscontext "github.com/smallbiznis/schoolbill/internal/observability/context"
	obslogger "github.com/smallbiznis/schoolbill/internal/observability/logger"
	"github.com/smallbiznis/schoolbill/internal/observability/metrics"
	receiptdomain "github.com/smallbiznis/schoolbill/internal/receipt/domain"
	"github.com/smallbiznis/schoolbill/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	eventCreated          = "invoice.created"
	eventPaymentConfirmed = "invoice.payment_confirmed"
	eventCancelled        = "invoice.cancelled"
)

type ServiceParam struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        invoicedomain.Repository
	LedgerRepo  ledgerdomain.Repository
	ReceiptRepo receiptdomain.Repository
	Counter     documentcounterdomain.Service
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID       *snowflake.Node
	clock       clock.Clock
	repo        invoicedomain.Repository
	ledgerRepo  ledgerdomain.Repository
	receiptRepo receiptdomain.Repository
	counter     documentcounterdomain.Service
	metrics     *metrics.Metrics
}

func NewService(p ServiceParam) invoicedomain.Service {
	c := p.Clock
	if c == nil {
		c = clock.System()
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("invoice.service"),
		genID: p.GenID,
		clock: c,

		repo:        p.Repo,
		ledgerRepo:  p.LedgerRepo,
		receiptRepo: p.ReceiptRepo,
		counter:     p.Counter,
		metrics:     p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req invoicedomain.CreateInvoiceRequest) (*invoicedomain.Invoice, error) {
	studentID, err := snowflake.ParseString(strings.TrimSpace(req.StudentID))
	if err != nil || studentID <= 0 {
		return nil, invoicedomain.ErrInvalidStudent
	}

	refs, err := validateSessionGroups(req.SessionGroups)
	if err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, invoicedomain.ErrEmptyItems
	}

	paymentMethod, err := normalizePaymentMethod(req.PaymentMethod)
	if err != nil {
		return nil, err
	}

	itemsTotal := decimal.Zero
	for _, item := range req.Items {
		if strings.TrimSpace(item.Description) == "" {
			return nil, invoicedomain.ErrInvalidItem
		}
		if item.Amount.IsNegative() {
			return nil, invoicedomain.ErrInvalidAmount
		}
		itemsTotal = itemsTotal.Add(item.Amount)
	}
	if req.TotalAmount.IsNegative() {
		return nil, invoicedomain.ErrInvalidAmount
	}
	total := req.TotalAmount
	if total.IsZero() {
		total = itemsTotal
	}

	now := s.clock.Now().UTC()
	date := now
	if req.Date != nil && !req.Date.IsZero() {
		date = req.Date.UTC()
	}

	var created *invoicedomain.Invoice
	var updated int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		documentID, err := s.counter.Next(ctx, tx)
		if err != nil {
			return err
		}

		invoice := &invoicedomain.Invoice{
			ID:            s.genID.Generate(),
			DocumentID:    documentID,
			Date:          date,
			PaymentMethod: paymentMethod,
			TotalAmount:   total,
			StudentID:     studentID,
			StudentName:   strings.TrimSpace(req.StudentName),
			CourseName:    strings.TrimSpace(req.CourseName),
			SessionGroups: datatypes.JSONSlice[ledgerdomain.Ref](refs),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		invoice.Items = make([]invoicedomain.InvoiceItem, 0, len(req.Items))
		for i, item := range req.Items {
			invoice.Items = append(invoice.Items, invoicedomain.InvoiceItem{
				ID:          s.genID.Generate(),
				InvoiceID:   invoice.ID,
				Description: strings.TrimSpace(item.Description),
				Amount:      item.Amount,
				Position:    i,
				CreatedAt:   now,
			})
		}

		if err := s.repo.Insert(ctx, tx, invoice); err != nil {
			return err
		}

		for _, ref := range refs {
			state, err := s.ledgerRepo.LockForInvoice(ctx, tx, ref)
			if err != nil {
				return err
			}
			if state == nil {
				return &ledgerdomain.RefError{Ref: ref, Err: ledgerdomain.ErrEntryNotFound}
			}
			if state.Invoiced {
				return &ledgerdomain.RefError{Ref: ref, Err: ledgerdomain.ErrAlreadyInvoiced}
			}
			n, err := s.ledgerRepo.SetInvoiced(ctx, tx, ref, true)
			if err != nil {
				return err
			}
			updated += n
		}

		created = invoice
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordDocumentID(ctx)
	s.recordTransition(ctx, eventCreated, created, updated)
	return created, nil
}

func (s *Service) ConfirmPayment(ctx context.Context, id string, req invoicedomain.ConfirmPaymentRequest) (*invoicedomain.ConfirmPaymentResult, error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	paymentMethod, err := normalizePaymentMethod(req.PaymentMethod)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	receiptDate := now
	if req.ReceiptDate != nil && !req.ReceiptDate.IsZero() {
		receiptDate = req.ReceiptDate.UTC()
	}

	var result *invoicedomain.ConfirmPaymentResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.repo.FindByIDForUpdate(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return invoicedomain.ErrInvoiceNotFound
		}
		if invoice.ReceiptDone {
			return invoicedomain.ErrAlreadyConfirmed
		}

		updatedSessions := 0
		for _, ref := range invoice.SessionGroups {
			n, err := s.ledgerRepo.SetPaid(ctx, tx, ref, true)
			if err != nil {
				return err
			}
			if n > 0 {
				updatedSessions++
			}
		}

		if paymentMethod == nil {
			paymentMethod = invoice.PaymentMethod
		}
		receipt := &receiptdomain.Receipt{
			ID:            s.genID.Generate(),
			InvoiceID:     invoice.ID,
			Date:          receiptDate,
			PaymentMethod: paymentMethod,
			CreatedAt:     now,
		}
		if err := s.receiptRepo.Insert(ctx, tx, receipt); err != nil {
			if errors.Is(err, receiptdomain.ErrReceiptExists) {
				return invoicedomain.ErrAlreadyConfirmed
			}
			return err
		}

		n, err := s.repo.MarkReceiptDone(ctx, tx, invoice.ID, paymentMethod, now)
		if err != nil {
			return err
		}
		if n == 0 {
			return invoicedomain.ErrAlreadyConfirmed
		}

		invoice.ReceiptDone = true
		invoice.PaymentMethod = paymentMethod
		invoice.UpdatedAt = now
		result = &invoicedomain.ConfirmPaymentResult{
			UpdatedSessions: updatedSessions,
			ReceiptID:       receipt.ID,
			Invoice:         *invoice,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(ctx, eventPaymentConfirmed, &result.Invoice, int64(result.UpdatedSessions),
		zap.String("receipt_id", result.ReceiptID.String()),
	)
	return result, nil
}

func (s *Service) Cancel(ctx context.Context, id string) (*invoicedomain.CancelResult, error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var cancelled *invoicedomain.Invoice
	updatedSessions := 0
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.repo.FindByIDForUpdate(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return invoicedomain.ErrInvoiceNotFound
		}
		if invoice.ReceiptDone {
			return invoicedomain.ErrInvoiceReceipted
		}
		receipts, err := s.receiptRepo.CountByInvoiceID(ctx, tx, invoice.ID)
		if err != nil {
			return err
		}
		if receipts > 0 {
			return invoicedomain.ErrInvoiceReceipted
		}

		for _, ref := range invoice.SessionGroups {
			n, err := s.ledgerRepo.SetPaid(ctx, tx, ref, false)
			if err != nil {
				return err
			}
			if _, err := s.ledgerRepo.SetInvoiced(ctx, tx, ref, false); err != nil {
				return err
			}
			if n > 0 {
				updatedSessions++
			}
		}

		if err := s.repo.Delete(ctx, tx, invoice.ID); err != nil {
			return err
		}
		cancelled = invoice
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(ctx, eventCancelled, cancelled, int64(updatedSessions))
	return &invoicedomain.CancelResult{UpdatedSessions: updatedSessions}, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*invoicedomain.Invoice, error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	invoice, err := s.repo.FindByID(ctx, s.db, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, invoicedomain.ErrInvoiceNotFound
	}
	return invoice, nil
}

func (s *Service) List(ctx context.Context, req invoicedomain.ListInvoiceRequest) (invoicedomain.ListInvoiceResponse, error) {
	page := pagination.Pagination{Page: req.Page, Limit: req.Limit}.Normalize()

	invoices, total, err := s.repo.List(ctx, s.db, invoicedomain.ListFilter{
		DocumentID:  req.DocumentID,
		CourseName:  req.CourseName,
		ReceiptDone: req.ReceiptDone,
	}, page)
	if err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}

	return invoicedomain.ListInvoiceResponse{
		PageInfo: pagination.BuildPageInfo(page, total),
		Invoices: invoices,
	}, nil
}

func (s *Service) PeekNextDocumentID(ctx context.Context) (string, error) {
	return s.counter.PeekNextDocumentID(ctx)
}

func (s *Service) recordTransition(ctx context.Context, event string, invoice *invoicedomain.Invoice, ledgerUpdates int64, extra ...zap.Field) {
	s.metrics.RecordInvoiceTransition(ctx, event)
	s.metrics.RecordLedgerUpdates(ctx, event, ledgerUpdates)

	if invoice == nil {
		return
	}
	log := obslogger.WithContext(obscontext.WithInvoiceID(ctx, invoice.ID.String()), s.log)
	fields := []zap.Field{
		zap.String("event", event),
		zap.String("document_id", invoice.DocumentID),
		zap.String("student_id", invoice.StudentID.String()),
		zap.String("total_amount", invoice.TotalAmount.StringFixed(2)),
		zap.Int("session_groups", len(invoice.SessionGroups)),
		zap.Int64("ledger_updates", ledgerUpdates),
	}
	if invoice.PaymentMethod != nil {
		fields = append(fields, zap.String("payment_method", *invoice.PaymentMethod))
	}
	log.Info("invoice audit", append(fields, extra...)...)
}

func validateSessionGroups(groups []ledgerdomain.Ref) ([]ledgerdomain.Ref, error) {
	if len(groups) == 0 {
		return nil, invoicedomain.ErrEmptySessionGroups
	}
	seen := make(map[ledgerdomain.Ref]struct{}, len(groups))
	refs := make([]ledgerdomain.Ref, 0, len(groups))
	for _, group := range groups {
		if err := group.Validate(); err != nil {
			return nil, err
		}
		if _, ok := seen[group]; ok {
			return nil, fmt.Errorf("%w: %s", invoicedomain.ErrDuplicateSessionGroup, group)
		}
		seen[group] = struct{}{}
		refs = append(refs, group)
	}
	return refs, nil
}

func normalizePaymentMethod(raw *string) (*string, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	method, err := invoicedomain.ParsePaymentMethod(*raw)
	if err != nil {
		return nil, err
	}
	value := string(method)
	return &value, nil
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, invoicedomain.ErrInvalidInvoiceID
	}
	return id, nil
}
