package auction

import (
	"time"

	"github.com/xtrntr/cadran/internal/models"
)

// DefaultCatalog is the opening line-up of a fresh market
var DefaultCatalog = []models.LotDescriptor{
	{Product: "Arachide Grade A – Diourbel", Quantity: "500 kg", StartPrice: 350, FloorPrice: 250},
	{Product: "Mil local – Kaolack", Quantity: "1 tonne", StartPrice: 220, FloorPrice: 160},
}

// NewLot builds an INACTIVE lot from d. A zero budget in d is replaced by defaultBudget.
func NewLot(id string, d models.LotDescriptor, defaultBudget int, now time.Time) (models.Lot, error) {
	budget := d.Budget
	if budget == 0 {
		budget = defaultBudget
	}
	if err := validateConfig(d.StartPrice, d.FloorPrice, budget); err != nil {
		return models.Lot{}, err
	}
	return models.Lot{
		ID:            id,
		Product:       d.Product,
		Quantity:      d.Quantity,
		StartPrice:    d.StartPrice,
		FloorPrice:    d.FloorPrice,
		Budget:        budget,
		CurrentPrice:  d.StartPrice,
		TimeRemaining: budget,
		Status:        models.StatusInactive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}
