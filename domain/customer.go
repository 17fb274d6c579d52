package domain

import (
	"fmt"
	"sort"
	"strings"
)

type CustomerInfo struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Address   string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state"`
	ZipCode   string `json:"zip_code"`
	Country   string `json:"country"`
	Phone     string `json:"phone,omitempty"`
}

// FieldErrors maps a field name to a human-readable validation message.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fmt.Sprintf("validation failed for fields: %s", strings.Join(fields, ", "))
}

// Validate checks that every required field is non-empty after trimming.
// Phone is optional.
func (c *CustomerInfo) Validate() FieldErrors {
	errs := FieldErrors{}
	required := map[string]string{
		"email":      c.Email,
		"first_name": c.FirstName,
		"last_name":  c.LastName,
		"address":    c.Address,
		"city":       c.City,
		"state":      c.State,
		"zip_code":   c.ZipCode,
		"country":    c.Country,
	}
	for field, value := range required {
		if strings.TrimSpace(value) == "" {
			errs[field] = "is required"
		}
	}
	if strings.TrimSpace(c.Email) != "" && !strings.Contains(c.Email, "@") {
		errs["email"] = "must be a valid email address"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Trimmed returns a copy with surrounding whitespace removed from every field.
func (c *CustomerInfo) Trimmed() CustomerInfo {
	return CustomerInfo{
		Email:     strings.TrimSpace(c.Email),
		FirstName: strings.TrimSpace(c.FirstName),
		LastName:  strings.TrimSpace(c.LastName),
		Address:   strings.TrimSpace(c.Address),
		City:      strings.TrimSpace(c.City),
		State:     strings.TrimSpace(c.State),
		ZipCode:   strings.TrimSpace(c.ZipCode),
		Country:   strings.TrimSpace(c.Country),
		Phone:     strings.TrimSpace(c.Phone),
	}
}
