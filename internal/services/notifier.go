package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/samber/lo"

	"soomhub/market/internal/config"
	"soomhub/market/internal/models"
	"soomhub/market/internal/utils"
)

// EmailMessage is a rendered notification ready for delivery.
type EmailMessage struct {
	To         []string `json:"to"`
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
	TemplateID string   `json:"template_id"`
}

// EmailEnqueuer hands a message to the background delivery queue.
type EmailEnqueuer interface {
	EnqueueEmail(ctx context.Context, msg EmailMessage) error
}

// INotifier sends the marketplace notification emails. Only ValidationClosing reports
// failures, so the reminder sweep can retry; the others log and carry on.
type INotifier interface {
	Welcome(ctx context.Context, user *models.User)
	SubmissionReceived(ctx context.Context, sub *models.Submission, listing *models.Listing)
	SubmissionResponded(ctx context.Context, sub *models.Submission, listing *models.Listing, decision models.ResponseDecision)
	CounterOfferReceived(ctx context.Context, neg *models.SoomNegotiation, listing *models.Listing)
	SaleValidated(ctx context.Context, sub *models.Submission, listing *models.Listing)
	ValidationClosing(ctx context.Context, sub *models.Submission, listing *models.Listing) error
}

type notifier struct {
	users     IUserService
	templates IEmailTemplateService
	queue     EmailEnqueuer
	cfg       *config.Config
}

func NewNotifier(users IUserService, templates IEmailTemplateService, queue EmailEnqueuer, cfg *config.Config) INotifier {
	return &notifier{users: users, templates: templates, queue: queue, cfg: cfg}
}

func (n *notifier) Welcome(ctx context.Context, user *models.User) {
	n.logIfFailed(n.send(ctx, user, TemplateWelcome, map[string]any{"name": user.Name}))
}

func (n *notifier) SubmissionReceived(ctx context.Context, sub *models.Submission, listing *models.Listing) {
	n.logIfFailed(n.sendTo(ctx, sub.SellerID, TemplateSubmissionReceived, n.submissionData(sub, listing)))
}

func (n *notifier) SubmissionResponded(ctx context.Context, sub *models.Submission, listing *models.Listing, decision models.ResponseDecision) {
	data := n.submissionData(sub, listing)
	data["decision"] = string(decision)
	n.logIfFailed(n.sendTo(ctx, sub.UserID, TemplateSubmissionResponded, data))
}

func (n *notifier) CounterOfferReceived(ctx context.Context, neg *models.SoomNegotiation, listing *models.Listing) {
	data := map[string]any{
		"listing":  listing.Title,
		"amount":   neg.OfferAmount.StringFixed(2),
		"currency": listing.CurrencyCode,
		"link":     fmt.Sprintf("%s/submissions/%s", n.cfg.AppBaseURL, neg.SubmissionID),
	}
	n.logIfFailed(n.sendTo(ctx, neg.ReceiverID, TemplateCounterOfferReceived, data))
}

func (n *notifier) SaleValidated(ctx context.Context, sub *models.Submission, listing *models.Listing) {
	data := n.submissionData(sub, listing)
	n.logIfFailed(n.sendTo(ctx, sub.UserID, TemplateSaleValidated, data))
	n.logIfFailed(n.sendTo(ctx, sub.SellerID, TemplateSaleValidated, data))
}

func (n *notifier) ValidationClosing(ctx context.Context, sub *models.Submission, listing *models.Listing) error {
	data := n.submissionData(sub, listing)
	if deadline, ok := sub.ValidationDeadline(); ok {
		data["deadline"] = deadline.UTC().Format(time.RFC1123)
	}
	return n.sendTo(ctx, sub.SellerID, TemplateValidationClosing, data)
}

func (n *notifier) submissionData(sub *models.Submission, listing *models.Listing) map[string]any {
	currency := listing.CurrencyCode
	if currency == "" {
		currency = n.cfg.CurrencyCode
	}
	return map[string]any{
		"listing":  listing.Title,
		"amount":   sub.Amount.StringFixed(2),
		"currency": currency,
		"link":     fmt.Sprintf("%s/submissions/%s", n.cfg.AppBaseURL, sub.ID),
	}
}

func (n *notifier) sendTo(ctx context.Context, userID utils.SixID, templateID string, data map[string]any) error {
	user, err := n.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("notification %s: recipient %s: %w", templateID, userID, err)
	}
	return n.send(ctx, user, templateID, data)
}

func (n *notifier) send(ctx context.Context, user *models.User, templateID string, data map[string]any) error {
	vars := lo.Assign(map[string]any{"name": user.Name}, data, map[string]any{"app": n.cfg.AppName})
	subject, body, err := n.templates.Render(ctx, templateID, user.PreferredLocale(n.cfg.DefaultLocale), vars)
	if err != nil {
		return fmt.Errorf("notification %s: %w", templateID, err)
	}
	return n.queue.EnqueueEmail(ctx, EmailMessage{
		To:         []string{user.Email},
		Subject:    subject,
		Body:       body,
		TemplateID: templateID,
	})
}

func (n *notifier) logIfFailed(err error) {
	if err != nil {
		log.Printf("Warning: failed to queue notification: %v", err)
	}
}
