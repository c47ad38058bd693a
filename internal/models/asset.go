package models

import "github.com/shopspring/decimal"

// PriceObservation is one ordinal price point for an asset.
type PriceObservation struct {
	Index int             `json:"index"`
	Price decimal.Decimal `json:"price"`
}

// Asset is a tradable simulated instrument as listed by /azioni.
type Asset struct {
	ID           int64              `json:"id"`
	Name         string             `json:"nome"`
	CurrentPrice decimal.Decimal    `json:"valoreAttuale"`
	Variation    decimal.Decimal    `json:"variazione"`
	Description  string             `json:"descrizione,omitempty"`
	Quantity     *int               `json:"quantita,omitempty"`
	History      []PriceObservation `json:"storico,omitempty"`
}

// FindAsset returns the asset with the given id, or nil.
func FindAsset(assets []Asset, id int64) *Asset {
	for i := range assets {
		if assets[i].ID == id {
			return &assets[i]
		}
	}
	return nil
}
