// internal/utils/validator.go
package utils

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate *validator.Validate

var settlementIDPattern = regexp.MustCompile(`^[\x21-\x7E]{1,128}$`)

var txHashPattern = regexp.MustCompile(`^0[xX][0-9a-fA-F]{64}$`)

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(jsonFieldName)
	validate.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
	validate.RegisterValidation("wallet_address", validateWalletAddress)
	validate.RegisterValidation("settlement_id", validateSettlementID)
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

// jsonFieldName reports fields by their wire name.
func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

// decimalValue lets numeric tags (gt, min, max) apply to decimal fields.
func decimalValue(field reflect.Value) interface{} {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		f, _ := d.Float64()
		return f
	}
	return nil
}

func validateWalletAddress(fl validator.FieldLevel) bool {
	return IsWalletAddress(fl.Field().String())
}

// Settlement identifiers are opaque: printable ASCII without spaces.
func validateSettlementID(fl validator.FieldLevel) bool {
	return settlementIDPattern.MatchString(fl.Field().String())
}

// NormalizeSettlementID lowercases ids shaped like a transaction hash, since
// hex is case-insensitive on chain. Any other id is opaque and kept as sent.
func NormalizeSettlementID(id string) string {
	if txHashPattern.MatchString(id) {
		return strings.ToLower(id)
	}
	return id
}

// Validation tags for common fields
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func GetValidationErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		for _, e := range validationErrs {
			validationErrors = append(validationErrors, ValidationError{
				Field:   e.Field(),
				Tag:     e.Tag(),
				Message: getValidationMessage(e),
			})
		}
	}

	return validationErrors
}

func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "min":
		return e.Field() + " must be at least " + e.Param()
	case "max":
		return e.Field() + " must be at most " + e.Param()
	case "gt":
		return e.Field() + " must be greater than " + e.Param()
	case "wallet_address":
		return "Wallet address must be a 0x-prefixed 40 character hex address with a valid checksum"
	case "settlement_id":
		return "Settlement id must be 1-128 printable characters without spaces"
	default:
		return e.Field() + " is invalid"
	}
}
