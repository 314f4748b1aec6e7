package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/schoolbill/internal/config"
	invoicedomain "github.com/smallbiznis/schoolbill/internal/invoice/domain"
	"github.com/smallbiznis/schoolbill/internal/receipt/domain"
	"github.com/smallbiznis/schoolbill/internal/receipt/render"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const receiptDateLayout = "2006-01-02"

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Cfg      config.Config
	Repo     domain.Repository
	Invoices invoicedomain.Repository
	Renderer render.Renderer
	Billing  *config.BillingConfigHolder `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     domain.Repository
	invoices invoicedomain.Repository
	renderer render.Renderer
	billing  *config.BillingConfigHolder
	loc      *time.Location
}

// New fails when BILLING_TIMEZONE is not a known zone. Paid dates print in that zone.
func New(p Params) (domain.Service, error) {
	loc, err := p.Cfg.BillingLocation()
	if err != nil {
		return nil, fmt.Errorf("receipt billing timezone %q: %w", p.Cfg.BillingTimezone, err)
	}
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("receipt.service"),
		repo:     p.Repo,
		invoices: p.Invoices,
		renderer: p.Renderer,
		billing:  p.Billing,
		loc:      loc,
	}, nil
}

func (s *Service) GetByInvoiceID(ctx context.Context, invoiceID string) (*domain.Receipt, error) {
	id, err := parseID(invoiceID)
	if err != nil {
		return nil, err
	}
	receipt, err := s.repo.FindByInvoiceID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, domain.ErrReceiptNotFound
	}
	return receipt, nil
}

func (s *Service) RenderPDF(ctx context.Context, invoiceID string) (*domain.RenderedReceipt, error) {
	receipt, err := s.GetByInvoiceID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	invoice, err := s.invoices.FindByID(ctx, s.db, receipt.InvoiceID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, invoicedomain.ErrInvoiceNotFound
	}

	out, err := s.renderer.Render(ctx, s.receiptData(receipt, invoice))
	if err != nil {
		s.log.Error("render receipt failed",
			zap.String("invoice_id", invoice.ID.String()),
			zap.Error(err),
		)
		return nil, err
	}
	return &domain.RenderedReceipt{
		Filename: receiptFilename(invoice),
		Content:  out,
	}, nil
}

// receiptFilename is receipt-<documentId>[-<student slug>].pdf.
func receiptFilename(invoice *invoicedomain.Invoice) string {
	name := "receipt-" + invoice.DocumentID
	if student := slug.Make(invoice.StudentName); student != "" {
		name += "-" + student
	}
	return name + ".pdf"
}

func (s *Service) receiptData(receipt *domain.Receipt, invoice *invoicedomain.Invoice) render.ReceiptData {
	profile := s.billing.Get()

	paymentMethod := ""
	if receipt.PaymentMethod != nil {
		paymentMethod = *receipt.PaymentMethod
	} else if invoice.PaymentMethod != nil {
		paymentMethod = *invoice.PaymentMethod
	}

	items := make([]render.ReceiptItem, 0, len(invoice.Items))
	for _, item := range invoice.Items {
		items = append(items, render.ReceiptItem{
			Description: item.Description,
			Amount:      item.Amount.StringFixed(2),
		})
	}

	return render.ReceiptData{
		SchoolName:    profile.SchoolName,
		SchoolAddress: profile.SchoolAddress,
		SchoolEmail:   profile.SchoolEmail,
		SchoolTaxID:   profile.SchoolTaxID,
		Footer:        profile.ReceiptFooter,
		DocumentID:    invoice.DocumentID,
		ReceiptID:     receipt.ID.String(),
		DatePaid:      receipt.Date.In(s.loc).Format(receiptDateLayout),
		PaymentMethod: paymentMethod,
		StudentName:   invoice.StudentName,
		CourseName:    invoice.CourseName,
		Items:         items,
		Currency:      profile.Currency,
		Total:         invoice.TotalAmount.StringFixed(2),
	}
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidInvoiceID
	}
	return id, nil
}
