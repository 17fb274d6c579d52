package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func complete() CustomerInfo {
	return CustomerInfo{
		Email:     "buyer@example.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Address:   "12 Analytical Way",
		City:      "London",
		State:     "LDN",
		ZipCode:   "E1 6AN",
		Country:   "UK",
	}
}

func TestValidate_CompleteInfoPasses(t *testing.T) {
	info := complete()
	assert.Nil(t, info.Validate())
}

func TestValidate_PhoneIsOptional(t *testing.T) {
	info := complete()
	info.Phone = ""
	assert.Nil(t, info.Validate())
}

func TestValidate_WhitespaceOnlyFieldsFail(t *testing.T) {
	info := complete()
	info.City = "   "
	info.Country = "\t"

	errs := info.Validate()

	require.NotNil(t, errs)
	assert.Contains(t, errs, "city")
	assert.Contains(t, errs, "country")
	assert.NotContains(t, errs, "email")
}

func TestValidate_BadEmail(t *testing.T) {
	info := complete()
	info.Email = "not-an-email"

	errs := info.Validate()

	require.NotNil(t, errs)
	assert.Contains(t, errs, "email")
}

func TestTrimmed(t *testing.T) {
	info := complete()
	info.FirstName = "  Ada  "
	info.ZipCode = " E1 6AN\n"

	trimmed := info.Trimmed()

	assert.Equal(t, "Ada", trimmed.FirstName)
	assert.Equal(t, "E1 6AN", trimmed.ZipCode)
}
