package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/schoolbill/internal/clock"
	"github.com/smallbiznis/schoolbill/internal/config"
	dcrepository "github.com/smallbiznis/schoolbill/internal/documentcounter/repository"
	dcservice "github.com/smallbiznis/schoolbill/internal/documentcounter/service"
	invoicedomain "github.com/smallbiznis/schoolbill/internal/invoice/domain"
	"github.com/smallbiznis/schoolbill/internal/invoice/repository"
	"github.com/smallbiznis/schoolbill/internal/invoice/service"
	ledgerdomain "github.com/smallbiznis/schoolbill/internal/ledger/domain"
	ledgerrepository "github.com/smallbiznis/schoolbill/internal/ledger/repository"
	"github.com/smallbiznis/schoolbill/internal/migration"
	"github.com/smallbiznis/schoolbill/internal/observability/metrics"
	receiptdomain "github.com/smallbiznis/schoolbill/internal/receipt/domain"
	receiptrepository "github.com/smallbiznis/schoolbill/internal/receipt/repository"
	"github.com/smallbiznis/schoolbill/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db    *gorm.DB
	svc   invoicedomain.Service
	clock *clock.FakeClock
}

func setup(t *testing.T) fixture {
	t.Helper()

	db := testutil.OpenSQLite(t)
	require.NoError(t, migration.AutoMigrate(db))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	c := clock.NewFakeClock(time.Date(2025, 8, 12, 9, 0, 0, 0, time.UTC))

	counter, err := dcservice.New(dcservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		Cfg:   config.Config{BillingTimezone: "UTC"},
		Clock: c,
		Repo:  dcrepository.Provide(),
	})
	require.NoError(t, err)

	svc := service.NewService(service.ServiceParam{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       c,
		Repo:        repository.Provide(),
		LedgerRepo:  ledgerrepository.Provide(),
		ReceiptRepo: receiptrepository.Provide(),
		Counter:     counter,
		Metrics:     metrics.NewNoop(),
	})

	return fixture{db: db, svc: svc, clock: c}
}

func seedSession(t *testing.T, db *gorm.DB, id int64) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, db.Create(&ledgerdomain.Session{
		ID:         snowflake.ID(id),
		StudentID:  7,
		CourseID:   3,
		CourseName: "Piano Grade 1",
		Payment:    ledgerdomain.PaymentUnpaid,
		CreatedAt:  now,
		UpdatedAt:  now,
	}).Error)
}

func seedCoursePlus(t *testing.T, db *gorm.DB, id int64) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, db.Create(&ledgerdomain.CoursePlus{
		ID:          snowflake.ID(id),
		StudentID:   7,
		Description: "Extra hours",
		Hours:       4,
		Amount:      decimal.NewFromInt(2000),
		Status:      ledgerdomain.StatusUnpaid,
		CreatedAt:   now,
		UpdatedAt:   now,
	}).Error)
}

func seedPackage(t *testing.T, db *gorm.DB, id int64) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, db.Create(&ledgerdomain.Package{
		ID:        snowflake.ID(id),
		StudentID: 7,
		Name:      "10 sessions",
		Sessions:  10,
		Amount:    decimal.NewFromInt(9000),
		Status:    ledgerdomain.StatusUnpaid,
		CreatedAt: now,
		UpdatedAt: now,
	}).Error)
}

func loadSession(t *testing.T, db *gorm.DB, id int64) ledgerdomain.Session {
	t.Helper()
	var session ledgerdomain.Session
	require.NoError(t, db.First(&session, "id = ?", id).Error)
	return session
}

func loadCoursePlus(t *testing.T, db *gorm.DB, id int64) ledgerdomain.CoursePlus {
	t.Helper()
	var entry ledgerdomain.CoursePlus
	require.NoError(t, db.First(&entry, "id = ?", id).Error)
	return entry
}

func loadPackage(t *testing.T, db *gorm.DB, id int64) ledgerdomain.Package {
	t.Helper()
	var entry ledgerdomain.Package
	require.NoError(t, db.First(&entry, "id = ?", id).Error)
	return entry
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func tuitionRequest(refs ...ledgerdomain.Ref) invoicedomain.CreateInvoiceRequest {
	return invoicedomain.CreateInvoiceRequest{
		StudentID:     "7",
		TotalAmount:   decimal.NewFromInt(14700),
		StudentName:   "Somchai",
		CourseName:    "Piano Grade 1",
		SessionGroups: refs,
		Items: []invoicedomain.CreateInvoiceItem{
			{Description: "Tuition", Amount: decimal.NewFromInt(14700)},
		},
	}
}

func course(id int64) ledgerdomain.Ref {
	return ledgerdomain.Ref{Kind: ledgerdomain.KindCourse, ID: snowflake.ID(id)}
}

func TestInvoiceLifecycleScenarios(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	seedSession(t, f.db, 42)

	// A: create marks the session invoiced.
	created, err := f.svc.Create(ctx, tuitionRequest(course(42)))
	require.NoError(t, err)
	assert.Regexp(t, `^\d{8}\d{4}$`, created.DocumentID)
	assert.Equal(t, "202508120001", created.DocumentID)
	require.Len(t, created.Items, 1)
	assert.Equal(t, "Tuition", created.Items[0].Description)
	assert.True(t, loadSession(t, f.db, 42).InvoiceDone)

	stored, err := f.svc.GetByID(ctx, created.ID.String())
	require.NoError(t, err)
	require.Len(t, stored.SessionGroups, 1)
	assert.Equal(t, course(42), stored.SessionGroups[0])
	assert.False(t, stored.ReceiptDone)
	assert.True(t, stored.TotalAmount.Equal(decimal.NewFromInt(14700)))

	// B: confirming pays the session and writes one receipt.
	confirmed, err := f.svc.ConfirmPayment(ctx, created.ID.String(), invoicedomain.ConfirmPaymentRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, confirmed.UpdatedSessions)
	assert.NotZero(t, confirmed.ReceiptID)
	assert.True(t, confirmed.Invoice.ReceiptDone)
	assert.Equal(t, ledgerdomain.PaymentPaid, loadSession(t, f.db, 42).Payment)

	var receipts []receiptdomain.Receipt
	require.NoError(t, f.db.Find(&receipts).Error)
	require.Len(t, receipts, 1)
	assert.Equal(t, created.ID, receipts[0].InvoiceID)
	assert.Equal(t, confirmed.ReceiptID, receipts[0].ID)

	// C: a second confirm is a conflict and leaves one receipt.
	_, err = f.svc.ConfirmPayment(ctx, created.ID.String(), invoicedomain.ConfirmPaymentRequest{})
	assert.ErrorIs(t, err, invoicedomain.ErrAlreadyConfirmed)
	assert.Equal(t, int64(1), countRows(t, f.db, &receiptdomain.Receipt{}))

	// D: a second invoice cancelled before payment is removed and its session reverted.
	seedSession(t, f.db, 43)
	second, err := f.svc.Create(ctx, tuitionRequest(course(43)))
	require.NoError(t, err)
	assert.Equal(t, "202508120002", second.DocumentID)

	cancelled, err := f.svc.Cancel(ctx, second.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 1, cancelled.UpdatedSessions)

	_, err = f.svc.GetByID(ctx, second.ID.String())
	assert.ErrorIs(t, err, invoicedomain.ErrInvoiceNotFound)
	var items int64
	require.NoError(t, f.db.Model(&invoicedomain.InvoiceItem{}).Where("invoice_id = ?", second.ID).Count(&items).Error)
	assert.Zero(t, items)
	session := loadSession(t, f.db, 43)
	assert.False(t, session.InvoiceDone)
	assert.Equal(t, ledgerdomain.PaymentUnpaid, session.Payment)

	// E: cancelling the receipted invoice fails and changes nothing.
	_, err = f.svc.Cancel(ctx, created.ID.String())
	assert.ErrorIs(t, err, invoicedomain.ErrInvoiceReceipted)
	still, err := f.svc.GetByID(ctx, created.ID.String())
	require.NoError(t, err)
	assert.True(t, still.ReceiptDone)
	assert.Len(t, still.Items, 1)
	assert.Equal(t, int64(1), countRows(t, f.db, &receiptdomain.Receipt{}))
	assert.Equal(t, ledgerdomain.PaymentPaid, loadSession(t, f.db, 42).Payment)
}

func TestCreateValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	seedSession(t, f.db, 42)

	cases := []struct {
		name   string
		mutate func(*invoicedomain.CreateInvoiceRequest)
		want   error
	}{
		{"no session groups", func(r *invoicedomain.CreateInvoiceRequest) { r.SessionGroups = nil }, invoicedomain.ErrEmptySessionGroups},
		{"no items", func(r *invoicedomain.CreateInvoiceRequest) { r.Items = nil }, invoicedomain.ErrEmptyItems},
		{"bad student", func(r *invoicedomain.CreateInvoiceRequest) { r.StudentID = "abc" }, invoicedomain.ErrInvalidStudent},
		{"bad payment method", func(r *invoicedomain.CreateInvoiceRequest) {
			method := "Bitcoin"
			r.PaymentMethod = &method
		}, invoicedomain.ErrInvalidPaymentMethod},
		{"negative amount", func(r *invoicedomain.CreateInvoiceRequest) {
			r.Items[0].Amount = decimal.NewFromInt(-1)
		}, invoicedomain.ErrInvalidAmount},
		{"blank item", func(r *invoicedomain.CreateInvoiceRequest) { r.Items[0].Description = " " }, invoicedomain.ErrInvalidItem},
		{"duplicate ref", func(r *invoicedomain.CreateInvoiceRequest) {
			r.SessionGroups = []ledgerdomain.Ref{course(42), course(42)}
		}, invoicedomain.ErrDuplicateSessionGroup},
		{"unknown kind", func(r *invoicedomain.CreateInvoiceRequest) {
			r.SessionGroups = []ledgerdomain.Ref{{Kind: "voucher", ID: 42}}
		}, ledgerdomain.ErrInvalidKind},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := tuitionRequest(course(42))
			tc.mutate(&req)
			_, err := f.svc.Create(ctx, req)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	assert.Zero(t, countRows(t, f.db, &invoicedomain.Invoice{}))
	assert.False(t, loadSession(t, f.db, 42).InvoiceDone)
}

func TestCreateNormalizesPaymentMethodAndTotal(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	seedSession(t, f.db, 42)

	req := tuitionRequest(course(42))
	method := "bank transfer"
	req.PaymentMethod = &method
	req.TotalAmount = decimal.Zero
	req.Items = append(req.Items, invoicedomain.CreateInvoiceItem{Description: "Books", Amount: decimal.RequireFromString("300.50")})

	created, err := f.svc.Create(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, created.PaymentMethod)
	assert.Equal(t, string(invoicedomain.PaymentMethodBankTransfer), *created.PaymentMethod)
	assert.True(t, created.TotalAmount.Equal(decimal.RequireFromString("15000.50")))

	stored, err := f.svc.GetByID(ctx, created.ID.String())
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)
	assert.Equal(t, "Tuition", stored.Items[0].Description)
	assert.Equal(t, "Books", stored.Items[1].Description)
}

func TestCreateRollsBackWhenLedgerEntryMissing(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	seedSession(t, f.db, 42)

	_, err := f.svc.Create(ctx, tuitionRequest(course(42), course(99)))
	require.ErrorIs(t, err, ledgerdomain.ErrEntryNotFound)

	assert.Zero(t, countRows(t, f.db, &invoicedomain.Invoice{}))
	assert.Zero(t, countRows(t, f.db, &invoicedomain.InvoiceItem{}))
	assert.False(t, loadSession(t, f.db, 42).InvoiceDone)

	next, err := f.svc.PeekNextDocumentID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "202508120001", next)
}

func TestCreateRejectsAlreadyInvoicedEntry(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	seedSession(t, f.db, 42)

	_, err := f.svc.Create(ctx, tuitionRequest(course(42)))
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, tuitionRequest(course(42)))
	assert.ErrorIs(t, err, ledgerdomain.ErrAlreadyInvoiced)
	assert.Equal(t, int64(1), countRows(t, f.db, &invoicedomain.Invoice{}))
}

func TestCancelRevertsEveryKind(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	seedSession(t, f.db, 42)
	seedCoursePlus(t, f.db, 50)
	seedPackage(t, f.db, 60)

	beforeSession := loadSession(t, f.db, 42)
	beforePlus := loadCoursePlus(t, f.db, 50)
	beforePackage := loadPackage(t, f.db, 60)

	created, err := f.svc.Create(ctx, tuitionRequest(
		course(42),
		ledgerdomain.Ref{Kind: ledgerdomain.KindCoursePlus, ID: 50},
		ledgerdomain.Ref{Kind: ledgerdomain.KindPackage, ID: 60},
	))
	require.NoError(t, err)
	assert.True(t, loadCoursePlus(t, f.db, 50).InvoiceGenerated)
	assert.True(t, loadPackage(t, f.db, 60).InvoiceGenerated)

	result, err := f.svc.Cancel(ctx, created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 3, result.UpdatedSessions)

	afterSession := loadSession(t, f.db, 42)
	afterPlus := loadCoursePlus(t, f.db, 50)
	afterPackage := loadPackage(t, f.db, 60)
	assert.Equal(t, beforeSession.Payment, afterSession.Payment)
	assert.Equal(t, beforeSession.InvoiceDone, afterSession.InvoiceDone)
	assert.Equal(t, beforePlus.Status, afterPlus.Status)
	assert.Equal(t, beforePlus.InvoiceGenerated, afterPlus.InvoiceGenerated)
	assert.Equal(t, beforePackage.Status, afterPackage.Status)
	assert.Equal(t, beforePackage.InvoiceGenerated, afterPackage.InvoiceGenerated)

	// The reverted entries can be invoiced again.
	_, err = f.svc.Create(ctx, tuitionRequest(course(42)))
	assert.NoError(t, err)
}

func TestConfirmPaymentMarksEveryKindPaid(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	seedSession(t, f.db, 42)
	seedCoursePlus(t, f.db, 50)
	seedPackage(t, f.db, 60)

	created, err := f.svc.Create(ctx, tuitionRequest(
		course(42),
		ledgerdomain.Ref{Kind: ledgerdomain.KindCoursePlus, ID: 50},
		ledgerdomain.Ref{Kind: ledgerdomain.KindPackage, ID: 60},
	))
	require.NoError(t, err)

	method := "Cash"
	receiptDate := time.Date(2025, 8, 20, 0, 0, 0, 0, time.UTC)
	result, err := f.svc.ConfirmPayment(ctx, created.ID.String(), invoicedomain.ConfirmPaymentRequest{
		PaymentMethod: &method,
		ReceiptDate:   &receiptDate,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.UpdatedSessions)
	require.NotNil(t, result.Invoice.PaymentMethod)
	assert.Equal(t, "Cash", *result.Invoice.PaymentMethod)

	assert.Equal(t, ledgerdomain.PaymentPaid, loadSession(t, f.db, 42).Payment)
	assert.Equal(t, ledgerdomain.StatusPaid, loadCoursePlus(t, f.db, 50).Status)
	assert.Equal(t, ledgerdomain.StatusPaid, loadPackage(t, f.db, 60).Status)

	var receipt receiptdomain.Receipt
	require.NoError(t, f.db.First(&receipt, "invoice_id = ?", created.ID).Error)
	assert.True(t, receipt.Date.Equal(receiptDate))
}

func TestConfirmPaymentErrors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	seedSession(t, f.db, 42)

	_, err := f.svc.ConfirmPayment(ctx, "12345", invoicedomain.ConfirmPaymentRequest{})
	assert.ErrorIs(t, err, invoicedomain.ErrInvoiceNotFound)

	_, err = f.svc.ConfirmPayment(ctx, "not-an-id", invoicedomain.ConfirmPaymentRequest{})
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidInvoiceID)

	created, err := f.svc.Create(ctx, tuitionRequest(course(42)))
	require.NoError(t, err)

	method := "Cheque"
	_, err = f.svc.ConfirmPayment(ctx, created.ID.String(), invoicedomain.ConfirmPaymentRequest{PaymentMethod: &method})
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidPaymentMethod)
	assert.Zero(t, countRows(t, f.db, &receiptdomain.Receipt{}))

	_, err = f.svc.Cancel(ctx, "12345")
	assert.ErrorIs(t, err, invoicedomain.ErrInvoiceNotFound)
}

func TestConfirmPaymentRollsBackOnPersistenceFailure(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	seedSession(t, f.db, 42)

	created, err := f.svc.Create(ctx, tuitionRequest(course(42)))
	require.NoError(t, err)

	require.NoError(t, f.db.Exec(`DROP TABLE receipts`).Error)

	_, err = f.svc.ConfirmPayment(ctx, created.ID.String(), invoicedomain.ConfirmPaymentRequest{})
	require.Error(t, err)

	assert.Equal(t, ledgerdomain.PaymentUnpaid, loadSession(t, f.db, 42).Payment)
	stored, err := f.svc.GetByID(ctx, created.ID.String())
	require.NoError(t, err)
	assert.False(t, stored.ReceiptDone)
}

func TestConcurrentConfirmPaymentWritesOneReceipt(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	seedSession(t, f.db, 42)

	created, err := f.svc.Create(ctx, tuitionRequest(course(42)))
	require.NoError(t, err)

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.ConfirmPayment(ctx, created.ID.String(), invoicedomain.ConfirmPaymentRequest{})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case assert.ErrorIs(t, err, invoicedomain.ErrAlreadyConfirmed):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, callers-1, conflicts)
	assert.Equal(t, int64(1), countRows(t, f.db, &receiptdomain.Receipt{}))
}

func TestConcurrentCreateAllocatesDistinctDocumentIDs(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	const callers = 10
	for i := 0; i < callers; i++ {
		seedSession(t, f.db, int64(100+i))
	}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[string]bool{}
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			created, err := f.svc.Create(ctx, tuitionRequest(course(id)))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			ids[created.DocumentID] = true
			mu.Unlock()
		}(int64(100 + i))
	}
	wg.Wait()

	assert.Len(t, ids, callers)
}

func TestListFiltersAndPaginates(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	var ids []snowflake.ID
	for i, name := range []string{"Piano Grade 1", "Violin", "Piano Grade 2"} {
		seedSession(t, f.db, int64(200+i))
		req := tuitionRequest(course(int64(200 + i)))
		req.CourseName = name
		created, err := f.svc.Create(ctx, req)
		require.NoError(t, err)
		ids = append(ids, created.ID)
		f.clock.Advance(time.Minute)
	}
	_, err := f.svc.ConfirmPayment(ctx, ids[1].String(), invoicedomain.ConfirmPaymentRequest{})
	require.NoError(t, err)

	all, err := f.svc.List(ctx, invoicedomain.ListInvoiceRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.Total)
	require.Len(t, all.Invoices, 3)
	assert.Equal(t, ids[2], all.Invoices[0].ID)
	assert.Len(t, all.Invoices[0].Items, 1)

	piano, err := f.svc.List(ctx, invoicedomain.ListInvoiceRequest{CourseName: "piano"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), piano.Total)

	paid := true
	receipted, err := f.svc.List(ctx, invoicedomain.ListInvoiceRequest{ReceiptDone: &paid})
	require.NoError(t, err)
	require.Len(t, receipted.Invoices, 1)
	assert.Equal(t, ids[1], receipted.Invoices[0].ID)

	unpaid := false
	open, err := f.svc.List(ctx, invoicedomain.ListInvoiceRequest{ReceiptDone: &unpaid})
	require.NoError(t, err)
	assert.Equal(t, int64(2), open.Total)

	byDoc, err := f.svc.List(ctx, invoicedomain.ListInvoiceRequest{DocumentID: "0003"})
	require.NoError(t, err)
	require.Len(t, byDoc.Invoices, 1)
	assert.Equal(t, ids[2], byDoc.Invoices[0].ID)

	page, err := f.svc.List(ctx, invoicedomain.ListInvoiceRequest{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Invoices, 1)
	assert.Equal(t, ids[0], page.Invoices[0].ID)
}
