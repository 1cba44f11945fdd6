package shop

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

// ErrValidation marks input rejected at the form boundary.
var ErrValidation = errors.New("validation failed")

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// ProductInput is what the admin product form submits.
type ProductInput struct {
	Name          string   `json:"name"`
	Price         float64  `json:"price"`
	DiscountPrice float64  `json:"discountPrice,omitempty"`
	Category      string   `json:"category"`
	Image         string   `json:"image"`
	Description   string   `json:"description"`
	Sizes         []string `json:"sizes,omitempty"`
	SizesString   string   `json:"sizesString,omitempty"`
}

// Product validates the input and builds a product with the given id. A
// discount of zero means no discount.
func (in ProductInput) Product(id int64) (Product, error) {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return Product{}, validationf("name is required")
	case in.Price <= 0:
		return Product{}, validationf("price must be positive")
	case strings.TrimSpace(in.Category) == "":
		return Product{}, validationf("category is required")
	case strings.TrimSpace(in.Image) == "":
		return Product{}, validationf("image is required")
	case in.DiscountPrice < 0:
		return Product{}, validationf("discount price cannot be negative")
	}
	p := Product{
		ID:          id,
		Name:        strings.TrimSpace(in.Name),
		Price:       in.Price,
		Category:    strings.TrimSpace(in.Category),
		Image:       strings.TrimSpace(in.Image),
		Description: strings.TrimSpace(in.Description),
	}
	if in.DiscountPrice > 0 {
		d := in.DiscountPrice
		p.DiscountPrice = &d
	}
	sizes := cleanSizes(in.Sizes)
	if len(sizes) == 0 {
		sizes = ParseSizes(in.SizesString)
	}
	if len(sizes) > 0 {
		p.Sizes = sizes
	}
	return p, nil
}

// ParseSizes splits the comma separated size field of the admin form.
func ParseSizes(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return cleanSizes(strings.Split(s, ","))
}

func cleanSizes(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks the checkout form.
func (c Customer) Validate() error {
	switch {
	case strings.TrimSpace(c.Name) == "":
		return validationf("name is required")
	case strings.TrimSpace(c.Phone) == "":
		return validationf("phone is required")
	case strings.TrimSpace(c.Email) == "":
		return validationf("email is required")
	case strings.TrimSpace(c.Address) == "":
		return validationf("address is required")
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(c.Email)); err != nil {
		return validationf("email is not valid")
	}
	return nil
}
