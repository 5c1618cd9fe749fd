package dto

import (
	"merchledger/internal/core/types"
	"merchledger/internal/domain/stock"
)

// RegisterProductRequest creates a product with an empty stock record.
type RegisterProductRequest struct {
	Name         string         `json:"name" binding:"required,max=255"`
	Unit         string         `json:"unit" binding:"max=32"`
	UnitType     stock.UnitType `json:"unitType"`
	SellingPrice types.Money    `json:"sellingPrice"`
	MinStock     types.Quantity `json:"minStock"`
}

// ToInput maps the request to the stock service input.
// An empty unit type means discrete.
func (r RegisterProductRequest) ToInput() stock.RegisterInput {
	unitType := r.UnitType
	if unitType == "" {
		unitType = stock.UnitDiscrete
	}
	unit := r.Unit
	if unit == "" {
		unit = "pcs"
	}
	return stock.RegisterInput{
		Name:         r.Name,
		Unit:         unit,
		UnitType:     unitType,
		SellingPrice: r.SellingPrice,
		MinStock:     r.MinStock,
	}
}

// ProductResponse is a stock record with derived figures.
type ProductResponse struct {
	*stock.Record
	Available    types.Quantity `json:"available"`
	BelowMinimum bool           `json:"belowMinimum"`
}

// FromRecord creates ProductResponse from a stock record.
func FromRecord(rec *stock.Record) ProductResponse {
	return ProductResponse{
		Record:       rec,
		Available:    rec.Available(),
		BelowMinimum: rec.IsBelowMinimum(),
	}
}
