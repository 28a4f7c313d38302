package service

import (
	"context"
	"errors"
	"strings"

	"forumsync/internal/model"
	"forumsync/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	ReportExchange   = "report_exchange"
	ReportQueue      = "report_queue"
	ReportRoutingKey = "report.created"
)

// ReportPublisher hands created reports to the moderation queue.
type ReportPublisher interface {
	PublishJSON(ctx context.Context, exchange, routingKey string, payload interface{}) error
}

// ReportMessage is the moderation queue payload.
type ReportMessage struct {
	ReportID    int64    `json:"reportId"`
	TargetType  string   `json:"targetType"`
	TargetID    int64    `json:"targetId"`
	Reporter    string   `json:"reporter"`
	Reasons     []string `json:"reasons"`
	Description string   `json:"description,omitempty"`
}

type ReportService interface {
	CreateReport(ctx context.Context, reporter string, in model.ReportInput) (*model.Report, error)
}

type reportService struct {
	reportRepo  repository.ReportRepository
	commentRepo repository.CommentRepository
	publisher   ReportPublisher
	log         logrus.FieldLogger
}

// NewReportService wires report rules. publisher may be nil.
func NewReportService(
	reportRepo repository.ReportRepository,
	commentRepo repository.CommentRepository,
	publisher ReportPublisher,
	log logrus.FieldLogger,
) ReportService {
	return &reportService{
		reportRepo:  reportRepo,
		commentRepo: commentRepo,
		publisher:   publisher,
		log:         log,
	}
}

// CreateReport stores a report once per (target, reporter)
func (s *reportService) CreateReport(ctx context.Context, reporter string, in model.ReportInput) (*model.Report, error) {
	if in.TargetType == model.TargetTypeComment {
		if _, err := s.commentRepo.FindByID(ctx, in.TargetID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrTargetNotFound
			}
			return nil, err
		}
	}

	reasons := make([]string, 0, len(in.Reasons))
	for _, r := range in.Reasons {
		if r = strings.TrimSpace(r); r != "" {
			reasons = append(reasons, r)
		}
	}
	if len(reasons) == 0 {
		return nil, ErrNoReasons
	}

	report := &model.Report{
		TargetType:  in.TargetType,
		TargetID:    in.TargetID,
		Reporter:    reporter,
		Description: in.Description,
	}
	report.SetReasons(reasons)

	if err := s.reportRepo.Create(ctx, report); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateReport
		}
		return nil, err
	}

	if s.publisher != nil {
		msg := ReportMessage{
			ReportID:    report.ID,
			TargetType:  report.TargetType,
			TargetID:    report.TargetID,
			Reporter:    report.Reporter,
			Reasons:     report.GetReasons(),
			Description: report.Description,
		}
		// Publishing is best effort; the report is already stored.
		if err := s.publisher.PublishJSON(ctx, ReportExchange, ReportRoutingKey, msg); err != nil {
			s.log.WithError(err).WithField("report_id", report.ID).Warn("failed to publish report")
		}
	}
	return report, nil
}
