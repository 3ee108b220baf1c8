package services

import (
	"context"
	"errors"
	"fmt"

	"enoriel/autos/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Template IDs of the booking notifications.
const (
	TemplateBookingCreatedAdmin    = "booking_created_admin"
	TemplateBookingCreatedCustomer = "booking_created_customer"
	TemplateCustomerMessageAdmin   = "customer_message_admin"
	TemplateAdminMessageCustomer   = "admin_message_customer"
	TemplateInspectionReminder     = "inspection_reminder"
)

// DefaultLocale is used when a notification does not name one.
const DefaultLocale = "en-NG"

// Fallbacks used when no template is stored for the requested ID.
var defaultEmailTemplates = map[string]models.EmailTemplate{
	TemplateBookingCreatedAdmin: {
		TemplateID: TemplateBookingCreatedAdmin,
		Locale:     DefaultLocale,
		Subject:    "New booking #{{.booking_id}}: {{.car_title}}",
		Body:       "{{.customer_name}} ({{.customer_phone}}) started a booking for {{.car_title}}.\n\n{{.message}}\n\nOpen: {{.link}}",
	},
	TemplateBookingCreatedCustomer: {
		TemplateID: TemplateBookingCreatedCustomer,
		Locale:     DefaultLocale,
		Subject:    "Your booking for {{.car_title}}",
		Body:       "Hi {{.customer_name}},\n\nThanks for your interest in {{.car_title}}. Follow your booking here: {{.link}}",
	},
	TemplateCustomerMessageAdmin: {
		TemplateID: TemplateCustomerMessageAdmin,
		Locale:     DefaultLocale,
		Subject:    "New message on booking #{{.booking_id}}",
		Body:       "{{.customer_name}} wrote:\n\n{{.message}}\n\nOpen: {{.link}}",
	},
	TemplateAdminMessageCustomer: {
		TemplateID: TemplateAdminMessageCustomer,
		Locale:     DefaultLocale,
		Subject:    "New reply about {{.car_title}}",
		Body:       "Hi {{.customer_name}},\n\n{{.message}}\n\nReply here: {{.link}}",
	},
	TemplateInspectionReminder: {
		TemplateID: TemplateInspectionReminder,
		Locale:     DefaultLocale,
		Subject:    "Reminder: inspection of {{.car_title}}",
		Body:       "Hi {{.customer_name}},\n\nYour inspection is on {{.date}} at {{.time}}.\nLocation: {{.location}}\n\nDetails: {{.link}}",
	},
}

// IEmailTemplateService defines the interface for email template operations.
type IEmailTemplateService interface {
	GetTemplate(ctx context.Context, templateID, locale string) (*models.EmailTemplate, error)
	SaveTemplate(ctx context.Context, template *models.EmailTemplate) error
}

const emailTemplatesCollection = "email_templates"

// EmailTemplateService reads notification templates from MongoDB.
type EmailTemplateService struct {
	db *mongo.Database
}

func NewEmailTemplateService(db *mongo.Database) *EmailTemplateService {
	return &EmailTemplateService{db: db}
}

// GetTemplate retrieves a template by ID and locale, falling back to the built-in
// default for the ID.
func (s *EmailTemplateService) GetTemplate(ctx context.Context, templateID string, locale string) (*models.EmailTemplate, error) {
	if s.db == nil {
		return defaultTemplate(templateID, locale)
	}

	var template models.EmailTemplate
	err := s.db.Collection(emailTemplatesCollection).FindOne(ctx, bson.M{
		"template_id": templateID,
		"locale":      locale,
	}).Decode(&template)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return defaultTemplate(templateID, locale)
		}
		return nil, fmt.Errorf("error retrieving template: %w", err)
	}
	return &template, nil
}

func defaultTemplate(templateID, locale string) (*models.EmailTemplate, error) {
	if t, ok := defaultEmailTemplates[templateID]; ok {
		return &t, nil
	}
	return nil, fmt.Errorf("%w: template %s (locale: %s)", ErrNotFound, templateID, locale)
}

// SaveTemplate upserts a template keyed by ID and locale.
func (s *EmailTemplateService) SaveTemplate(ctx context.Context, template *models.EmailTemplate) error {
	if template.TemplateID == "" || template.Locale == "" {
		return validationError("template id and locale are required")
	}
	_, err := s.db.Collection(emailTemplatesCollection).UpdateOne(ctx,
		bson.M{"template_id": template.TemplateID, "locale": template.Locale},
		bson.M{"$set": template},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("error saving template: %w", err)
	}
	return nil
}
