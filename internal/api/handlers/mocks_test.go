package handlers_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"soomhub/market/internal/auth"
	"soomhub/market/internal/models"
	"soomhub/market/internal/services"
	"soomhub/market/internal/utils"
)

// --- Mocks ---

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (*auth.TokenPair, *models.User, error) {
	args := m.Called(ctx, email, password)
	tokens, _ := args.Get(0).(*auth.TokenPair)
	user, _ := args.Get(1).(*models.User)
	return tokens, user, args.Error(2)
}

func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	args := m.Called(ctx, refreshToken)
	tokens, _ := args.Get(0).(*auth.TokenPair)
	return tokens, args.Error(1)
}

func (m *MockAuthService) Logout(ctx context.Context, access *auth.Claims, refreshToken string) error {
	return m.Called(ctx, access, refreshToken).Error(0)
}

func (m *MockAuthService) Authorize(ctx context.Context, accessToken string) (*auth.Claims, error) {
	args := m.Called(ctx, accessToken)
	claims, _ := args.Get(0).(*auth.Claims)
	return claims, args.Error(1)
}

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Register(ctx context.Context, in services.RegisterInput) (*models.User, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) FindByID(ctx context.Context, userID utils.SixID) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) ListUsers(ctx context.Context, page services.Page) ([]models.User, string, error) {
	args := m.Called(ctx, page)
	users, _ := args.Get(0).([]models.User)
	return users, args.String(1), args.Error(2)
}

func (m *MockUserService) UpdateUser(ctx context.Context, userID utils.SixID, upd services.UserUpdate) (*models.User, error) {
	args := m.Called(ctx, userID, upd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) DeleteUser(ctx context.Context, userID utils.SixID) error {
	return m.Called(ctx, userID).Error(0)
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

type MockImageEnqueuer struct {
	mock.Mock
}

func (m *MockImageEnqueuer) EnqueueImage(ctx context.Context, listingID utils.SixID, key string) error {
	return m.Called(ctx, listingID, key).Error(0)
}

type MockPromoCodeService struct {
	mock.Mock
}

func (m *MockPromoCodeService) CreatePromoCode(ctx context.Context, in services.PromoCodeInput) (*models.PromoCode, error) {
	args := m.Called(ctx, in)
	p, _ := args.Get(0).(*models.PromoCode)
	return p, args.Error(1)
}

func (m *MockPromoCodeService) ListPromoCodes(ctx context.Context, page services.Page) ([]models.PromoCode, string, error) {
	args := m.Called(ctx, page)
	p, _ := args.Get(0).([]models.PromoCode)
	return p, args.String(1), args.Error(2)
}

func (m *MockPromoCodeService) FindByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	args := m.Called(ctx, code)
	p, _ := args.Get(0).(*models.PromoCode)
	return p, args.Error(1)
}

func (m *MockPromoCodeService) DeactivatePromoCode(ctx context.Context, code string) error {
	return m.Called(ctx, code).Error(0)
}

func (m *MockPromoCodeService) CheckPromoCode(ctx context.Context, code string) (*models.PromoCode, error) {
	args := m.Called(ctx, code)
	p, _ := args.Get(0).(*models.PromoCode)
	return p, args.Error(1)
}

func (m *MockPromoCodeService) RedeemPromoCode(ctx context.Context, code string) (*models.PromoCode, error) {
	args := m.Called(ctx, code)
	p, _ := args.Get(0).(*models.PromoCode)
	return p, args.Error(1)
}

type MockBankCardService struct {
	mock.Mock
}

func (m *MockBankCardService) CreateBankCard(ctx context.Context, userID utils.SixID, in services.BankCardInput) (*models.BankCard, error) {
	args := m.Called(ctx, userID, in)
	c, _ := args.Get(0).(*models.BankCard)
	return c, args.Error(1)
}

func (m *MockBankCardService) ListBankCards(ctx context.Context, userID utils.SixID) ([]models.BankCard, error) {
	args := m.Called(ctx, userID)
	c, _ := args.Get(0).([]models.BankCard)
	return c, args.Error(1)
}

func (m *MockBankCardService) FindBankCard(ctx context.Context, cardID, userID utils.SixID) (*models.BankCard, error) {
	args := m.Called(ctx, cardID, userID)
	c, _ := args.Get(0).(*models.BankCard)
	return c, args.Error(1)
}

func (m *MockBankCardService) UpdateBankCard(ctx context.Context, cardID, userID utils.SixID, upd services.BankCardUpdate) (*models.BankCard, error) {
	args := m.Called(ctx, cardID, userID, upd)
	c, _ := args.Get(0).(*models.BankCard)
	return c, args.Error(1)
}

func (m *MockBankCardService) DeleteBankCard(ctx context.Context, cardID, userID utils.SixID) error {
	return m.Called(ctx, cardID, userID).Error(0)
}

type MockLicensePlateService struct {
	mock.Mock
}

func (m *MockLicensePlateService) SaveLicensePlate(ctx context.Context, listingID, userID utils.SixID, in services.LicensePlateInput) (*models.LicensePlate, error) {
	args := m.Called(ctx, listingID, userID, in)
	p, _ := args.Get(0).(*models.LicensePlate)
	return p, args.Error(1)
}

func (m *MockLicensePlateService) FindLicensePlateByID(ctx context.Context, id utils.SixID) (*models.LicensePlate, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*models.LicensePlate)
	return p, args.Error(1)
}

func (m *MockLicensePlateService) FindLicensePlateByListing(ctx context.Context, listingID utils.SixID) (*models.LicensePlate, error) {
	args := m.Called(ctx, listingID)
	p, _ := args.Get(0).(*models.LicensePlate)
	return p, args.Error(1)
}

func (m *MockLicensePlateService) GeneratePlateImage(ctx context.Context, plate *models.LicensePlate) {
	m.Called(ctx, plate)
}

type MockAuctionService struct {
	mock.Mock
}

func (m *MockAuctionService) PlaceBid(ctx context.Context, listingID, bidderID utils.SixID, amount models.Amount) (*models.AuctionHistory, error) {
	args := m.Called(ctx, listingID, bidderID, amount)
	a, _ := args.Get(0).(*models.AuctionHistory)
	return a, args.Error(1)
}

func (m *MockAuctionService) FindAuctionByID(ctx context.Context, auctionID utils.SixID) (*models.AuctionHistory, error) {
	args := m.Called(ctx, auctionID)
	a, _ := args.Get(0).(*models.AuctionHistory)
	return a, args.Error(1)
}

func (m *MockAuctionService) ListAuctionHistory(ctx context.Context, listingID utils.SixID) ([]models.AuctionHistory, error) {
	args := m.Called(ctx, listingID)
	a, _ := args.Get(0).([]models.AuctionHistory)
	return a, args.Error(1)
}

func (m *MockAuctionService) UpdateBid(ctx context.Context, auctionID, bidderID utils.SixID, amount models.Amount) (*models.AuctionHistory, error) {
	args := m.Called(ctx, auctionID, bidderID, amount)
	a, _ := args.Get(0).(*models.AuctionHistory)
	return a, args.Error(1)
}

func (m *MockAuctionService) DeleteBid(ctx context.Context, auctionID, actorID utils.SixID, isAdmin bool) error {
	return m.Called(ctx, auctionID, actorID, isAdmin).Error(0)
}

func (m *MockAuctionService) ValidateAuction(ctx context.Context, auctionID, validatorID utils.SixID, isAdmin bool) (*models.AuctionHistory, error) {
	args := m.Called(ctx, auctionID, validatorID, isAdmin)
	a, _ := args.Get(0).(*models.AuctionHistory)
	return a, args.Error(1)
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
