package ledger

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"merchledger/internal/core/apperror"
	"merchledger/internal/core/id"
	"merchledger/internal/core/types"
)

// Payload is the input for creating a document of any kind.
type Payload struct {
	Items []ItemInput `json:"items" validate:"required,min=1,max=500,dive"`

	WarehouseID            *id.ID `json:"warehouseId,omitempty"`
	DestinationWarehouseID *id.ID `json:"destinationWarehouseId,omitempty"`
	CounterpartyID         *id.ID `json:"counterpartyId,omitempty"`
	SourceDocumentID       *id.ID `json:"sourceDocumentId,omitempty"`

	// Reserve asks a new customer order to hold its stock right away.
	Reserve bool   `json:"reserve,omitempty"`
	Comment string `json:"comment,omitempty" validate:"max=1000"`
}

// ItemInput is one requested line.
type ItemInput struct {
	ProductID id.ID          `json:"productId" validate:"required"`
	Quantity  types.Quantity `json:"quantity"`
	// UnitPrice is the selling price, or the purchase cost for inbound kinds.
	// Zero falls back to the product's selling price or current cost.
	UnitPrice   types.Money `json:"unitPrice" validate:"gte=0"`
	WarehouseID *id.ID      `json:"warehouseId,omitempty"`
	// CountedQuantity is the physically counted stock on inventory counts.
	CountedQuantity *types.Quantity `json:"countedQuantity,omitempty"`
}

// newValidator builds a validator aware of uuid and decimal fields.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if u, ok := field.Interface().(uuid.UUID); ok && u != uuid.Nil {
			return u.String()
		}
		return nil
	}, uuid.UUID{})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// validationError folds validator output into an AppError.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.NewValidation("invalid payload").WithCause(err)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[strings.TrimPrefix(fe.Namespace(), "Payload.")] = fe.Tag()
	}
	return apperror.NewValidation("invalid payload").WithDetail("fields", fields)
}
