package validation

import (
	"bytes"
	"errors"
	"reflect"
	"sort"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"payment-service/internal/types"
)

const (
	MsgInvalidOrderID  = "invalid order id format"
	MsgEmptyCustomerID = "customer id must not be empty"
	MsgInvalidAmount   = "amount must be greater than 0"
	MsgInvalidPayload  = "payload must be a JSON object"
)

var fieldMessages = map[string]string{
	"order_id":     MsgInvalidOrderID,
	"customer_id":  MsgEmptyCustomerID,
	"total_amount": MsgInvalidAmount,
}

var validatorInstance = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("orderid", isOrderID); err != nil {
		panic(err)
	}
	return v
}

// isOrderID accepts the hyphenated 36 character UUID form in any case.
func isOrderID(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors holds every violation found in a payload.
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return strings.Join(parts, "; ")
}

// Has reports whether field failed validation.
func (e Errors) Has(field string) bool {
	for _, fe := range e {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// Validate decodes raw event data and checks it against the payment schema.
// raw may be a JSON object or a JSON string that holds one. On failure the
// returned error is always of type Errors.
func Validate(raw []byte) (types.PaymentRequest, error) {
	fields, err := decode(raw)
	if err != nil {
		return types.PaymentRequest{}, Errors{{Field: "payload", Message: MsgInvalidPayload}}
	}

	var (
		req  types.PaymentRequest
		errs Errors
	)

	if v, ok := fields["order_id"].(string); ok {
		req.OrderID = v
	} else {
		errs = append(errs, FieldError{Field: "order_id", Message: MsgInvalidOrderID})
	}
	if v, ok := fields["customer_id"].(string); ok {
		req.CustomerID = v
	} else {
		errs = append(errs, FieldError{Field: "customer_id", Message: MsgEmptyCustomerID})
	}
	if v, ok := fields["total_amount"].(float64); ok {
		req.TotalAmount = v
	} else {
		errs = append(errs, FieldError{Field: "total_amount", Message: MsgInvalidAmount})
	}

	if err := validatorInstance.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return types.PaymentRequest{}, Errors{{Field: "payload", Message: err.Error()}}
		}
		for _, fe := range verrs {
			if errs.Has(fe.Field()) {
				continue
			}
			errs = append(errs, FieldError{Field: fe.Field(), Message: fieldMessages[fe.Field()]})
		}
	}

	if len(errs) > 0 {
		sortByField(errs)
		return types.PaymentRequest{}, errs
	}
	return req, nil
}

func decode(raw []byte) (map[string]interface{}, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errors.New("empty payload")
	}
	var v interface{}
	if err := sonic.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	if s, ok := v.(string); ok {
		if err := sonic.UnmarshalString(s, &v); err != nil {
			return nil, err
		}
	}
	fields, ok := v.(map[string]interface{})
	if !ok {
		return nil, errors.New("payload is not an object")
	}
	return fields, nil
}

var fieldOrder = map[string]int{"order_id": 0, "customer_id": 1, "total_amount": 2}

func sortByField(errs Errors) {
	sort.SliceStable(errs, func(i, j int) bool {
		return fieldOrder[errs[i].Field] < fieldOrder[errs[j].Field]
	})
}
