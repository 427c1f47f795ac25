package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"text/template"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"soomhub/market/internal/db"
	"soomhub/market/internal/models"
)

// Template ids of the notification emails.
const (
	TemplateWelcome              = "welcome"
	TemplateSubmissionReceived   = "submission_received"
	TemplateSubmissionResponded  = "submission_responded"
	TemplateCounterOfferReceived = "counter_offer_received"
	TemplateSaleValidated        = "sale_validated"
	TemplateValidationClosing    = "validation_closing"
)

type templateKey struct {
	id     string
	locale string
}

// Default email templates used as fallback when not found in database.
var defaultEmailTemplates = map[templateKey]models.EmailTemplate{
	{TemplateWelcome, models.LocaleEN}: {
		Subject: "Welcome to {{.app}}",
		Body:    "Hi {{.name}},\n\nYour {{.app}} account is ready.",
	},
	{TemplateWelcome, models.LocaleAR}: {
		Subject: "مرحباً بك في {{.app}}",
		Body:    "مرحباً {{.name}}،\n\nحسابك في {{.app}} جاهز.",
	},
	{TemplateSubmissionReceived, models.LocaleEN}: {
		Subject: "New offer on {{.listing}}",
		Body:    "You received an offer of {{.amount}} {{.currency}} on {{.listing}}.\n\n{{.link}}",
	},
	{TemplateSubmissionReceived, models.LocaleAR}: {
		Subject: "عرض جديد على {{.listing}}",
		Body:    "وصلك عرض بقيمة {{.amount}} {{.currency}} على {{.listing}}.\n\n{{.link}}",
	},
	{TemplateSubmissionResponded, models.LocaleEN}: {
		Subject: "Your offer on {{.listing}} was {{.decision}}",
		Body:    "The seller {{.decision}} your offer of {{.amount}} {{.currency}} on {{.listing}}.\n\n{{.link}}",
	},
	{TemplateSubmissionResponded, models.LocaleAR}: {
		Subject: "تم الرد على عرضك على {{.listing}}",
		Body:    "رد البائع على عرضك بقيمة {{.amount}} {{.currency}}: {{.decision}}.\n\n{{.link}}",
	},
	{TemplateCounterOfferReceived, models.LocaleEN}: {
		Subject: "Counter offer on {{.listing}}",
		Body:    "You received a counter offer of {{.amount}} {{.currency}} on {{.listing}}.\n\n{{.link}}",
	},
	{TemplateCounterOfferReceived, models.LocaleAR}: {
		Subject: "عرض مقابل على {{.listing}}",
		Body:    "وصلك عرض مقابل بقيمة {{.amount}} {{.currency}} على {{.listing}}.\n\n{{.link}}",
	},
	{TemplateSaleValidated, models.LocaleEN}: {
		Subject: "Sale of {{.listing}} confirmed",
		Body:    "The sale of {{.listing}} for {{.amount}} {{.currency}} has been confirmed.\n\n{{.link}}",
	},
	{TemplateSaleValidated, models.LocaleAR}: {
		Subject: "تم تأكيد بيع {{.listing}}",
		Body:    "تم تأكيد بيع {{.listing}} بقيمة {{.amount}} {{.currency}}.\n\n{{.link}}",
	},
	{TemplateValidationClosing, models.LocaleEN}: {
		Subject: "Confirm the sale of {{.listing}} before {{.deadline}}",
		Body:    "The accepted offer of {{.amount}} {{.currency}} on {{.listing}} must be confirmed before {{.deadline}}.\n\n{{.link}}",
	},
	{TemplateValidationClosing, models.LocaleAR}: {
		Subject: "أكد بيع {{.listing}} قبل {{.deadline}}",
		Body:    "يجب تأكيد العرض المقبول بقيمة {{.amount}} {{.currency}} على {{.listing}} قبل {{.deadline}}.\n\n{{.link}}",
	},
}

// IEmailTemplateService defines the interface for email template operations.
type IEmailTemplateService interface {
	GetTemplate(ctx context.Context, templateID, locale string) (*models.EmailTemplate, error)
	SaveTemplate(ctx context.Context, tmpl *models.EmailTemplate) error
	Render(ctx context.Context, templateID, locale string, data map[string]any) (subject, body string, err error)
}

// EmailTemplateService handles operations related to email templates
type EmailTemplateService struct {
	db            *mongo.Database
	defaultLocale string
}

// NewEmailTemplateService creates a new instance of EmailTemplateService
func NewEmailTemplateService(db *mongo.Database, defaultLocale string) *EmailTemplateService {
	return &EmailTemplateService{db: db, defaultLocale: defaultLocale}
}

// GetTemplate looks in the database first, then the built in defaults for locale,
// then the built in defaults for the default locale.
func (s *EmailTemplateService) GetTemplate(ctx context.Context, templateID, locale string) (*models.EmailTemplate, error) {
	if s.db != nil {
		var tmpl models.EmailTemplate
		err := s.db.Collection(db.EmailTemplatesCollection).
			FindOne(ctx, bson.M{"template_id": templateID, "locale": locale}).
			Decode(&tmpl)
		if err == nil {
			return &tmpl, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("error retrieving template %s/%s: %w", templateID, locale, err)
		}
	}
	for _, l := range []string{locale, s.defaultLocale, models.LocaleEN} {
		if def, ok := defaultEmailTemplates[templateKey{templateID, l}]; ok {
			def.TemplateID = templateID
			def.Locale = l
			return &def, nil
		}
	}
	return nil, fmt.Errorf("template not found: %s (locale: %s)", templateID, locale)
}

// SaveTemplate upserts a template by id and locale.
func (s *EmailTemplateService) SaveTemplate(ctx context.Context, tmpl *models.EmailTemplate) error {
	if !models.ValidLocale(tmpl.Locale) {
		return fmt.Errorf("%w: unsupported locale %q", ErrInvalidInput, tmpl.Locale)
	}
	if _, err := template.New("subject").Parse(tmpl.Subject); err != nil {
		return fmt.Errorf("%w: subject: %v", ErrInvalidInput, err)
	}
	if _, err := template.New("body").Parse(tmpl.Body); err != nil {
		return fmt.Errorf("%w: body: %v", ErrInvalidInput, err)
	}
	tmpl.GenIDIfEmpty()
	_, err := s.db.Collection(db.EmailTemplatesCollection).UpdateOne(ctx,
		bson.M{"template_id": tmpl.TemplateID, "locale": tmpl.Locale},
		bson.M{"$set": bson.M{"subject": tmpl.Subject, "body": tmpl.Body}, "$setOnInsert": bson.M{"_id": tmpl.ID}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("error saving template: %w", err)
	}
	return nil
}

// Render executes the subject and body of a template with data.
func (s *EmailTemplateService) Render(ctx context.Context, templateID, locale string, data map[string]any) (string, string, error) {
	tmpl, err := s.GetTemplate(ctx, templateID, locale)
	if err != nil {
		return "", "", err
	}
	subject, err := execute(tmpl.Subject, data)
	if err != nil {
		return "", "", fmt.Errorf("failed to render subject of %s: %w", templateID, err)
	}
	body, err := execute(tmpl.Body, data)
	if err != nil {
		return "", "", fmt.Errorf("failed to render body of %s: %w", templateID, err)
	}
	return subject, body, nil
}

func execute(text string, data map[string]any) (string, error) {
	t, err := template.New("").Option("missingkey=zero").Parse(text)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
