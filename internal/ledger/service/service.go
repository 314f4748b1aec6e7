package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/schoolbill/internal/clock"
	"github.com/smallbiznis/schoolbill/internal/ledger/domain"
	"github.com/smallbiznis/schoolbill/pkg/db/option"
	"github.com/smallbiznis/schoolbill/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	sessions repository.Repository[domain.Session]
	plus     repository.Repository[domain.CoursePlus]
	packages repository.Repository[domain.Package]
}

func New(p Params) domain.Service {
	c := p.Clock
	if c == nil {
		c = clock.System()
	}
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("ledger.service"),
		genID:    p.GenID,
		clock:    c,
		sessions: repository.ProvideStore[domain.Session](p.DB),
		plus:     repository.ProvideStore[domain.CoursePlus](p.DB),
		packages: repository.ProvideStore[domain.Package](p.DB),
	}
}

func (s *Service) CreateSession(ctx context.Context, req domain.CreateSessionRequest) (*domain.Session, error) {
	studentID, err := parseID(req.StudentID, domain.ErrInvalidStudent)
	if err != nil {
		return nil, err
	}
	courseID, err := parseID(req.CourseID, domain.ErrInvalidCourse)
	if err != nil {
		return nil, err
	}
	courseName := strings.TrimSpace(req.CourseName)
	if courseName == "" {
		return nil, domain.ErrInvalidCourse
	}

	now := s.clock.Now().UTC()
	session := &domain.Session{
		ID:         s.genID.Generate(),
		StudentID:  studentID,
		CourseID:   courseID,
		CourseName: courseName,
		Payment:    domain.PaymentUnpaid,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	s.log.Debug("session created", zap.String("session_id", session.ID.String()))
	return session, nil
}

func (s *Service) CreateCoursePlus(ctx context.Context, req domain.CreateCoursePlusRequest) (*domain.CoursePlus, error) {
	studentID, err := parseID(req.StudentID, domain.ErrInvalidStudent)
	if err != nil {
		return nil, err
	}
	var sessionID *snowflake.ID
	if raw := strings.TrimSpace(req.SessionID); raw != "" {
		id, err := parseID(raw, domain.ErrInvalidID)
		if err != nil {
			return nil, err
		}
		sessionID = &id
	}
	if req.Amount.IsNegative() || req.Hours < 0 {
		return nil, domain.ErrInvalidAmount
	}

	now := s.clock.Now().UTC()
	entry := &domain.CoursePlus{
		ID:          s.genID.Generate(),
		SessionID:   sessionID,
		StudentID:   studentID,
		Description: strings.TrimSpace(req.Description),
		Hours:       req.Hours,
		Amount:      req.Amount,
		Status:      domain.StatusUnpaid,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.plus.Create(ctx, entry); err != nil {
		return nil, err
	}

	s.log.Debug("course plus created", zap.String("course_plus_id", entry.ID.String()))
	return entry, nil
}

func (s *Service) CreatePackage(ctx context.Context, req domain.CreatePackageRequest) (*domain.Package, error) {
	studentID, err := parseID(req.StudentID, domain.ErrInvalidStudent)
	if err != nil {
		return nil, err
	}
	if req.Amount.IsNegative() || req.Sessions < 0 {
		return nil, domain.ErrInvalidAmount
	}

	now := s.clock.Now().UTC()
	entry := &domain.Package{
		ID:        s.genID.Generate(),
		StudentID: studentID,
		Name:      strings.TrimSpace(req.Name),
		Sessions:  req.Sessions,
		Amount:    req.Amount,
		Status:    domain.StatusUnpaid,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.packages.Create(ctx, entry); err != nil {
		return nil, err
	}

	s.log.Debug("package created", zap.String("package_id", entry.ID.String()))
	return entry, nil
}

func (s *Service) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	parsed, err := parseID(id, domain.ErrInvalidID)
	if err != nil {
		return nil, err
	}
	item, err := s.sessions.FindOne(ctx, &domain.Session{ID: parsed})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrEntryNotFound
	}
	return item, nil
}

func (s *Service) GetCoursePlus(ctx context.Context, id string) (*domain.CoursePlus, error) {
	parsed, err := parseID(id, domain.ErrInvalidID)
	if err != nil {
		return nil, err
	}
	item, err := s.plus.FindOne(ctx, &domain.CoursePlus{ID: parsed})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrEntryNotFound
	}
	return item, nil
}

func (s *Service) GetPackage(ctx context.Context, id string) (*domain.Package, error) {
	parsed, err := parseID(id, domain.ErrInvalidID)
	if err != nil {
		return nil, err
	}
	item, err := s.packages.FindOne(ctx, &domain.Package{ID: parsed})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrEntryNotFound
	}
	return item, nil
}

func (s *Service) ListOpenEntries(ctx context.Context, studentID string) (*domain.OpenEntries, error) {
	student, err := parseID(studentID, domain.ErrInvalidStudent)
	if err != nil {
		return nil, err
	}

	sessions, err := s.sessions.Find(ctx, &domain.Session{StudentID: student}, openFilter("invoice_done")...)
	if err != nil {
		return nil, err
	}
	plus, err := s.plus.Find(ctx, &domain.CoursePlus{StudentID: student}, openFilter("invoice_generated")...)
	if err != nil {
		return nil, err
	}
	packages, err := s.packages.Find(ctx, &domain.Package{StudentID: student}, openFilter("invoice_generated")...)
	if err != nil {
		return nil, err
	}

	return &domain.OpenEntries{
		StudentID:  student,
		Sessions:   sessions,
		CoursePlus: plus,
		Packages:   packages,
	}, nil
}

func openFilter(invoicedColumn string) []option.QueryOption {
	return []option.QueryOption{
		option.ApplyOperator(option.Condition{Field: invoicedColumn, Operator: option.EQ, Value: false}),
		option.WithSortBy(option.QuerySortBy{Field: "created_at", Allow: map[string]bool{"created_at": true}}),
	}
}

func parseID(value string, invalid error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id <= 0 {
		return 0, invalid
	}
	return id, nil
}
