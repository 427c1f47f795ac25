package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soomhub/market/internal/models"
	"soomhub/market/internal/utils"
)

func setupCardServices(t *testing.T) (ICardTypeService, IBankCardService) {
	t.Helper()
	database := setupServiceDB(t)
	types := NewCardTypeService(database)
	return types, NewBankCardService(database, types)
}

func newCardType(t *testing.T, svc ICardTypeService, name, code string) *models.CardType {
	t.Helper()
	ct, err := svc.CreateCardType(context.Background(), CardTypeInput{Name: &name, Code: &code})
	require.NoError(t, err)
	return ct
}

func TestCardTypeService_Lifecycle(t *testing.T) {
	types, _ := setupCardServices(t)
	ctx := context.Background()

	visa := newCardType(t, types, "Visa", " VISA ")
	assert.Equal(t, "visa", visa.Code)
	assert.True(t, visa.Active)

	name, code := "Visa Debit", "visa"
	_, err := types.CreateCardType(ctx, CardTypeInput{Name: &name, Code: &code})
	assert.ErrorIs(t, err, ErrCardTypeTaken)

	mada := newCardType(t, types, "Mada", "mada")
	inactive := false
	_, err = types.UpdateCardType(ctx, mada.ID, CardTypeInput{Active: &inactive})
	require.NoError(t, err)

	active, err := types.ListCardTypes(ctx, true)
	require.NoError(t, err)
	assert.Len(t, active, 1)
	all, err := types.ListCardTypes(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, types.DeleteCardType(ctx, visa.ID))
	_, err = types.FindCardTypeByID(ctx, visa.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	// The code is free again.
	newCardType(t, types, "Visa", "visa")
}

func TestBankCardService_CreateChecks(t *testing.T) {
	types, cards := setupCardServices(t)
	ctx := context.Background()
	visa := newCardType(t, types, "Visa", "visa")
	user := utils.NewSixID()
	year := time.Now().Year() + 2

	_, err := cards.CreateBankCard(ctx, user, BankCardInput{CardTypeID: visa.ID, HolderName: "A", Number: "4111 1111 1111 1112", ExpiryMonth: 1, ExpiryYear: year})
	assert.ErrorIs(t, err, ErrCardRejected)

	_, err = cards.CreateBankCard(ctx, user, BankCardInput{CardTypeID: visa.ID, HolderName: "A", Number: "4111111111111111", ExpiryMonth: 1, ExpiryYear: 2020})
	assert.ErrorIs(t, err, ErrCardExpired)

	_, err = cards.CreateBankCard(ctx, user, BankCardInput{CardTypeID: utils.NewSixID(), HolderName: "A", Number: "4111111111111111", ExpiryMonth: 1, ExpiryYear: year})
	assert.ErrorIs(t, err, ErrInvalidInput)

	card, err := cards.CreateBankCard(ctx, user, BankCardInput{CardTypeID: visa.ID, HolderName: " Ali ", Number: "4111-1111-1111-1111", ExpiryMonth: 12, ExpiryYear: year})
	require.NoError(t, err)
	assert.Equal(t, "1111", card.Last4)
	assert.Equal(t, "Ali", card.HolderName)
	assert.True(t, card.IsDefault, "the first card becomes the default")
}

func TestBankCardService_DefaultAndOwnership(t *testing.T) {
	types, cards := setupCardServices(t)
	ctx := context.Background()
	visa := newCardType(t, types, "Visa", "visa")
	user := utils.NewSixID()
	year := time.Now().Year() + 2

	first, err := cards.CreateBankCard(ctx, user, BankCardInput{CardTypeID: visa.ID, HolderName: "Ali", Number: "4111111111111111", ExpiryMonth: 5, ExpiryYear: year})
	require.NoError(t, err)
	second, err := cards.CreateBankCard(ctx, user, BankCardInput{CardTypeID: visa.ID, HolderName: "Ali", Number: "5555555555554444", ExpiryMonth: 5, ExpiryYear: year, IsDefault: true})
	require.NoError(t, err)

	list, err := cards.ListBankCards(ctx, user)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.False(t, list[1].IsDefault)

	_, err = cards.FindBankCard(ctx, first.ID, utils.NewSixID())
	assert.ErrorIs(t, err, ErrNotFound)

	past := 2020
	_, err = cards.UpdateBankCard(ctx, first.ID, user, BankCardUpdate{ExpiryYear: &past})
	assert.ErrorIs(t, err, ErrCardExpired)

	makeDefault := true
	updated, err := cards.UpdateBankCard(ctx, first.ID, user, BankCardUpdate{IsDefault: &makeDefault})
	require.NoError(t, err)
	assert.True(t, updated.IsDefault)
	got, err := cards.FindBankCard(ctx, second.ID, user)
	require.NoError(t, err)
	assert.False(t, got.IsDefault)

	assert.ErrorIs(t, cards.DeleteBankCard(ctx, first.ID, utils.NewSixID()), ErrNotFound)
	require.NoError(t, cards.DeleteBankCard(ctx, first.ID, user))
	list, err = cards.ListBankCards(ctx, user)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
