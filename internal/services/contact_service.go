package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/skillpix/skillpix-server/internal/models"
	apperrors "github.com/skillpix/skillpix-server/pkg/errors"
	"github.com/skillpix/skillpix-server/pkg/logger"
	"github.com/skillpix/skillpix-server/pkg/mail"
	"github.com/skillpix/skillpix-server/pkg/metrics"
	"go.uber.org/zap"
)

// ContactMessageDTO is the stored contact submission returned to admins.
type ContactMessageDTO struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Subject    string     `json:"subject"`
	Message    string     `json:"message"`
	Resolved   bool       `json:"resolved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// SubmitContactInput carries a contact form submission.
type SubmitContactInput struct {
	Name    string
	Email   string
	Subject string
	Message string
}

// ListContactInput filters the admin contact inbox.
type ListContactInput struct {
	Resolved *bool
	Page     int
	Limit    int
}

// ContactPage bundles a page of contact messages with the total match count.
type ContactPage struct {
	Items []ContactMessageDTO
	Total int64
}

// ContactService persists contact form submissions and optionally forwards
// them by email to the support inbox.
type ContactService struct {
	db        *gorm.DB
	mailer    mail.Mailer
	forwardTo []string
	fromAddr  string
	now       func() time.Time
}

// NewContactService constructs a ContactService. The mailer is optional;
// without one submissions are stored only.
func NewContactService(db *gorm.DB, mailer mail.Mailer, fromAddr string, forwardTo []string) (*ContactService, error) {
	if db == nil {
		return nil, errors.New("contact service: db is required")
	}
	return &ContactService{
		db:        db,
		mailer:    mailer,
		forwardTo: forwardTo,
		fromAddr:  fromAddr,
		now:       time.Now,
	}, nil
}

// Submit stores the submission and forwards it to the support inbox when a
// mailer is configured. Delivery failures are logged, not surfaced: the
// stored record is the source of truth.
func (s *ContactService) Submit(ctx context.Context, input SubmitContactInput) (*ContactMessageDTO, error) {
	ctx = ensureContext(ctx)

	record := models.ContactMessage{
		Name:    strings.TrimSpace(input.Name),
		Email:   strings.ToLower(strings.TrimSpace(input.Email)),
		Subject: strings.TrimSpace(input.Subject),
		Message: strings.TrimSpace(input.Message),
	}
	if record.Name == "" || record.Email == "" || record.Message == "" {
		return nil, apperrors.NewBadRequest("name, email and message are required")
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, fmt.Errorf("contact service: store submission: %w", err)
	}
	metrics.ContactSubmissions.WithLabelValues("stored").Inc()

	if s.mailer != nil && len(s.forwardTo) > 0 {
		msg := mail.Message{
			From:    s.fromAddr,
			ReplyTo: record.Email,
			To:      s.forwardTo,
			Subject: "[contact] " + defaultIfEmpty(record.Subject, "New message"),
			Body:    fmt.Sprintf("From: %s <%s>\r\n\r\n%s", record.Name, record.Email, record.Message),
		}
		if err := s.mailer.Send(ctx, msg); err != nil && !errors.Is(err, mail.ErrSMTPDisabled) {
			metrics.ContactSubmissions.WithLabelValues("forward_failed").Inc()
			logger.WithModule("contact").Warn("failed to forward contact message",
				zap.String("message_id", record.ID),
				zap.Error(err))
		} else if err == nil {
			metrics.ContactSubmissions.WithLabelValues("forwarded").Inc()
		}
	}

	dto := mapContactMessage(record)
	return &dto, nil
}

// List returns contact messages for the admin inbox, newest first.
func (s *ContactService) List(ctx context.Context, input ListContactInput) (*ContactPage, error) {
	ctx = ensureContext(ctx)

	page := input.Page
	if page <= 0 {
		page = 1
	}
	limit := input.Limit
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	query := s.db.WithContext(ctx).Model(&models.ContactMessage{})
	if input.Resolved != nil {
		query = query.Where("resolved = ?", *input.Resolved)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("contact service: count messages: %w", err)
	}

	var rows []models.ContactMessage
	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("contact service: list messages: %w", err)
	}

	items := make([]ContactMessageDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapContactMessage(row))
	}
	return &ContactPage{Items: items, Total: total}, nil
}

// MarkResolved flags a contact message as handled.
func (s *ContactService) MarkResolved(ctx context.Context, messageID string) (*ContactMessageDTO, error) {
	ctx = ensureContext(ctx)

	var record models.ContactMessage
	if err := s.db.WithContext(ctx).First(&record, "id = ?", messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("contact service: load message: %w", err)
	}

	if !record.Resolved {
		now := s.now().UTC()
		if err := s.db.WithContext(ctx).Model(&record).Updates(map[string]any{
			"resolved":    true,
			"resolved_at": now,
		}).Error; err != nil {
			return nil, fmt.Errorf("contact service: resolve message: %w", err)
		}
		record.Resolved = true
		record.ResolvedAt = &now
	}

	dto := mapContactMessage(record)
	return &dto, nil
}

// CleanupResolvedBefore deletes resolved messages older than the cutoff.
func (s *ContactService) CleanupResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx = ensureContext(ctx)
	result := s.db.WithContext(ctx).
		Where("resolved = ? AND resolved_at < ?", true, cutoff).
		Delete(&models.ContactMessage{})
	if result.Error != nil {
		return 0, fmt.Errorf("contact service: cleanup resolved: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func mapContactMessage(row models.ContactMessage) ContactMessageDTO {
	return ContactMessageDTO{
		ID:         row.ID,
		Name:       row.Name,
		Email:      row.Email,
		Subject:    row.Subject,
		Message:    row.Message,
		Resolved:   row.Resolved,
		ResolvedAt: row.ResolvedAt,
		CreatedAt:  row.CreatedAt,
	}
}
