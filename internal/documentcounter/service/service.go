package service

import (
	"context"
	"fmt"
	"time"

	"github.com/smallbiznis/schoolbill/internal/clock"
	"github.com/smallbiznis/schoolbill/internal/config"
	"github.com/smallbiznis/schoolbill/internal/documentcounter/domain"
	"github.com/smallbiznis/schoolbill/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Cfg     config.Config
	Clock   clock.Clock
	Repo    domain.Repository
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	loc     *time.Location
	repo    domain.Repository
	metrics *metrics.Metrics
}

func New(p Params) (domain.Service, error) {
	loc, err := p.Cfg.BillingLocation()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidTimezone, p.Cfg.BillingTimezone)
	}
	c := p.Clock
	if c == nil {
		c = clock.System()
	}
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("documentcounter.service"),
		clock:   c,
		loc:     loc,
		repo:    p.Repo,
		metrics: p.Metrics,
	}, nil
}

func (s *Service) Next(ctx context.Context, tx *gorm.DB) (string, error) {
	now := s.clock.Now()
	date := now.In(s.loc).Format(domain.DateLayout)

	counter, err := s.repo.Increment(ctx, tx, date, now.UTC())
	if err != nil {
		return "", err
	}
	return Format(date, counter), nil
}

func (s *Service) NextDocumentID(ctx context.Context) (string, error) {
	var id string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		next, err := s.Next(ctx, tx)
		if err != nil {
			return err
		}
		id = next
		return nil
	})
	if err != nil {
		return "", err
	}

	s.metrics.RecordDocumentID(ctx)
	s.log.Debug("document id allocated", zap.String("document_id", id))
	return id, nil
}

func (s *Service) PeekNextDocumentID(ctx context.Context) (string, error) {
	date := s.clock.Now().In(s.loc).Format(domain.DateLayout)

	current, err := s.repo.Current(ctx, s.db, date)
	if err != nil {
		return "", err
	}
	return Format(date, current+1), nil
}

// Format renders date and sequence as a document id. Sequences past 9999 widen.
func Format(date string, counter int64) string {
	return fmt.Sprintf("%s%04d", date, counter)
}
