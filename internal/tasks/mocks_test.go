package tasks_test

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/mock"

	"soomhub/market/internal/models"
	"soomhub/market/internal/services"
	"soomhub/market/internal/utils"
)

type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	args := m.Called(ctx, to, subject, rawMessage)
	return args.Error(0)
}

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) GeneratePresignedPutURL(ctx context.Context, ownerID, listingID, filename, contentType string) (string, string, error) {
	args := m.Called(ctx, ownerID, listingID, filename, contentType)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *MockStorage) PutObject(ctx context.Context, key, contentType string, data []byte) error {
	args := m.Called(ctx, key, contentType, data)
	return args.Error(0)
}

func (m *MockStorage) GetObject(ctx context.Context, key string) ([]byte, string, error) {
	args := m.Called(ctx, key)
	data, _ := args.Get(0).([]byte)
	return data, args.String(1), args.Error(2)
}

func (m *MockStorage) PublicURL(key string) string {
	return "https://cdn.example.com/" + key
}

type MockListingService struct {
	mock.Mock
}

func (m *MockListingService) CreateListing(ctx context.Context, sellerID utils.SixID, in services.ListingInput) (*models.Listing, error) {
	args := m.Called(ctx, sellerID, in)
	l, _ := args.Get(0).(*models.Listing)
	return l, args.Error(1)
}

func (m *MockListingService) FindListingByID(ctx context.Context, listingID utils.SixID) (*models.Listing, error) {
	args := m.Called(ctx, listingID)
	l, _ := args.Get(0).(*models.Listing)
	return l, args.Error(1)
}

func (m *MockListingService) FindListingBySlug(ctx context.Context, slug string) (*models.Listing, error) {
	args := m.Called(ctx, slug)
	l, _ := args.Get(0).(*models.Listing)
	return l, args.Error(1)
}

func (m *MockListingService) ListListings(ctx context.Context, filter services.ListingFilter, page services.Page) ([]models.Listing, string, error) {
	args := m.Called(ctx, filter, page)
	l, _ := args.Get(0).([]models.Listing)
	return l, args.String(1), args.Error(2)
}

func (m *MockListingService) UpdateListing(ctx context.Context, listingID, userID utils.SixID, upd services.ListingUpdate) (*models.Listing, error) {
	args := m.Called(ctx, listingID, userID, upd)
	l, _ := args.Get(0).(*models.Listing)
	return l, args.Error(1)
}

func (m *MockListingService) DeleteListing(ctx context.Context, listingID, actorID utils.SixID, isAdmin bool) error {
	return m.Called(ctx, listingID, actorID, isAdmin).Error(0)
}

func (m *MockListingService) AddImageToListing(ctx context.Context, listingID utils.SixID, imageKey string) error {
	return m.Called(ctx, listingID, imageKey).Error(0)
}

func (m *MockListingService) PresignImageUpload(ctx context.Context, listingID, userID utils.SixID, filename, contentType string) (string, string, error) {
	args := m.Called(ctx, listingID, userID, filename, contentType)
	return args.String(0), args.String(1), args.Error(2)
}

type MockSubmissionService struct {
	mock.Mock
}

func (m *MockSubmissionService) CreateSubmission(ctx context.Context, listingID, buyerID utils.SixID, amount models.Amount) (*models.Submission, error) {
	args := m.Called(ctx, listingID, buyerID, amount)
	s, _ := args.Get(0).(*models.Submission)
	return s, args.Error(1)
}

func (m *MockSubmissionService) FindSubmissionByID(ctx context.Context, submissionID utils.SixID) (*models.Submission, error) {
	args := m.Called(ctx, submissionID)
	s, _ := args.Get(0).(*models.Submission)
	return s, args.Error(1)
}

func (m *MockSubmissionService) ListSubmissions(ctx context.Context, q services.SubmissionQuery, page services.Page) ([]models.Submission, string, error) {
	args := m.Called(ctx, q, page)
	s, _ := args.Get(0).([]models.Submission)
	return s, args.String(1), args.Error(2)
}

func (m *MockSubmissionService) RespondToSubmission(ctx context.Context, submissionID, responderID utils.SixID, decision models.ResponseDecision) (*models.Submission, *models.SubmissionResponse, error) {
	args := m.Called(ctx, submissionID, responderID, decision)
	s, _ := args.Get(0).(*models.Submission)
	r, _ := args.Get(1).(*models.SubmissionResponse)
	return s, r, args.Error(2)
}

func (m *MockSubmissionService) ListResponses(ctx context.Context, submissionID utils.SixID) ([]models.SubmissionResponse, error) {
	args := m.Called(ctx, submissionID)
	r, _ := args.Get(0).([]models.SubmissionResponse)
	return r, args.Error(1)
}

func (m *MockSubmissionService) CounterOffer(ctx context.Context, submissionID, senderID utils.SixID, amount models.Amount) (*models.SoomNegotiation, error) {
	args := m.Called(ctx, submissionID, senderID, amount)
	n, _ := args.Get(0).(*models.SoomNegotiation)
	return n, args.Error(1)
}

func (m *MockSubmissionService) FindNegotiationByID(ctx context.Context, negotiationID utils.SixID) (*models.SoomNegotiation, error) {
	args := m.Called(ctx, negotiationID)
	n, _ := args.Get(0).(*models.SoomNegotiation)
	return n, args.Error(1)
}

func (m *MockSubmissionService) RespondToNegotiation(ctx context.Context, negotiationID, responderID utils.SixID, decision models.ResponseDecision) (*models.SoomNegotiation, error) {
	args := m.Called(ctx, negotiationID, responderID, decision)
	n, _ := args.Get(0).(*models.SoomNegotiation)
	return n, args.Error(1)
}

func (m *MockSubmissionService) ListNegotiations(ctx context.Context, submissionID utils.SixID) ([]models.SoomNegotiation, error) {
	args := m.Called(ctx, submissionID)
	n, _ := args.Get(0).([]models.SoomNegotiation)
	return n, args.Error(1)
}

func (m *MockSubmissionService) ValidateSale(ctx context.Context, submissionID, validatorID utils.SixID, isAdmin bool) (*models.Submission, *models.AuctionHistory, error) {
	args := m.Called(ctx, submissionID, validatorID, isAdmin)
	s, _ := args.Get(0).(*models.Submission)
	a, _ := args.Get(1).(*models.AuctionHistory)
	return s, a, args.Error(2)
}

func (m *MockSubmissionService) FindDueForReminder(ctx context.Context, now time.Time, lead time.Duration) ([]models.Submission, error) {
	args := m.Called(ctx, now, lead)
	s, _ := args.Get(0).([]models.Submission)
	return s, args.Error(1)
}

func (m *MockSubmissionService) MarkReminderSent(ctx context.Context, submissionID utils.SixID, at time.Time) (bool, error) {
	args := m.Called(ctx, submissionID, at)
	return args.Bool(0), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Welcome(ctx context.Context, user *models.User) {
	m.Called(ctx, user)
}

func (m *MockNotifier) SubmissionReceived(ctx context.Context, sub *models.Submission, listing *models.Listing) {
	m.Called(ctx, sub, listing)
}

func (m *MockNotifier) SubmissionResponded(ctx context.Context, sub *models.Submission, listing *models.Listing, decision models.ResponseDecision) {
	m.Called(ctx, sub, listing, decision)
}

func (m *MockNotifier) CounterOfferReceived(ctx context.Context, neg *models.SoomNegotiation, listing *models.Listing) {
	m.Called(ctx, neg, listing)
}

func (m *MockNotifier) SaleValidated(ctx context.Context, sub *models.Submission, listing *models.Listing) {
	m.Called(ctx, sub, listing)
}

func (m *MockNotifier) ValidationClosing(ctx context.Context, sub *models.Submission, listing *models.Listing) error {
	return m.Called(ctx, sub, listing).Error(0)
}

type MockTaskClient struct {
	mock.Mock
}

func (m *MockTaskClient) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task.Type(), task.Payload())
	info, _ := args.Get(0).(*asynq.TaskInfo)
	return info, args.Error(1)
}
