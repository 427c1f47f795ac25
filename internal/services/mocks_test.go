package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"soomhub/market/internal/models"
	"soomhub/market/internal/utils"
)

type mockUserService struct {
	mock.Mock
}

func (m *mockUserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockUserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockUserService) FindByID(ctx context.Context, userID utils.SixID) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockUserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockUserService) ListUsers(ctx context.Context, page Page) ([]models.User, string, error) {
	args := m.Called(ctx, page)
	return args.Get(0).([]models.User), args.String(1), args.Error(2)
}

func (m *mockUserService) UpdateUser(ctx context.Context, userID utils.SixID, upd UserUpdate) (*models.User, error) {
	args := m.Called(ctx, userID, upd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockUserService) DeleteUser(ctx context.Context, userID utils.SixID) error {
	return m.Called(ctx, userID).Error(0)
}

type mockEmailEnqueuer struct {
	mock.Mock
}

func (m *mockEmailEnqueuer) EnqueueEmail(ctx context.Context, msg EmailMessage) error {
	return m.Called(ctx, msg).Error(0)
}

// recordingNotifier counts the notifications a service triggers.
type recordingNotifier struct {
	mock.Mock
}

func (n *recordingNotifier) Welcome(ctx context.Context, user *models.User) {
	n.Called(ctx, user)
}

func (n *recordingNotifier) SubmissionReceived(ctx context.Context, sub *models.Submission, listing *models.Listing) {
	n.Called(ctx, sub, listing)
}

func (n *recordingNotifier) SubmissionResponded(ctx context.Context, sub *models.Submission, listing *models.Listing, decision models.ResponseDecision) {
	n.Called(ctx, sub, listing, decision)
}

func (n *recordingNotifier) CounterOfferReceived(ctx context.Context, neg *models.SoomNegotiation, listing *models.Listing) {
	n.Called(ctx, neg, listing)
}

func (n *recordingNotifier) SaleValidated(ctx context.Context, sub *models.Submission, listing *models.Listing) {
	n.Called(ctx, sub, listing)
}

func (n *recordingNotifier) ValidationClosing(ctx context.Context, sub *models.Submission, listing *models.Listing) error {
	return n.Called(ctx, sub, listing).Error(0)
}

// allowAll makes every notification a no-op expectation.
func (n *recordingNotifier) allowAll() *recordingNotifier {
	n.On("Welcome", mock.Anything, mock.Anything).Maybe()
	n.On("SubmissionReceived", mock.Anything, mock.Anything, mock.Anything).Maybe()
	n.On("SubmissionResponded", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Maybe()
	n.On("CounterOfferReceived", mock.Anything, mock.Anything, mock.Anything).Maybe()
	n.On("SaleValidated", mock.Anything, mock.Anything, mock.Anything).Maybe()
	n.On("ValidationClosing", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	return n
}

type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) GeneratePresignedPutURL(ctx context.Context, ownerID, listingID, filename, contentType string) (string, string, error) {
	args := m.Called(ctx, ownerID, listingID, filename, contentType)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *mockStorage) PutObject(ctx context.Context, key, contentType string, data []byte) error {
	return m.Called(ctx, key, contentType, data).Error(0)
}

func (m *mockStorage) GetObject(ctx context.Context, key string) ([]byte, string, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).([]byte), args.String(1), args.Error(2)
}

func (m *mockStorage) PublicURL(key string) string {
	return "https://cdn.example.com/" + key
}

type stubRenderer struct {
	data []byte
	err  error
}

func (r stubRenderer) Render(*models.LicensePlate) ([]byte, error) {
	return r.data, r.err
}
