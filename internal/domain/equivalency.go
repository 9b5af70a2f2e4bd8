package domain

import (
	"fmt"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// EPA greenhouse gas equivalency divisors, kg CO2e per unit.
const (
	milesDrivenFactor      = 0.192
	smartphoneChargeFactor = 0.00822
	treeSeedlingFactor     = 60.0

	// Below this, equivalencies are too small to be meaningful.
	minEquivalencyKg = 1.0
)

var printer = message.NewPrinter(language.English)

// Equivalency restates a carbon amount in everyday terms.
type Equivalency struct {
	InputKg            float64 `json:"input_kg"`
	MilesDriven        float64 `json:"miles_driven"`
	SmartphonesCharged float64 `json:"smartphones_charged"`
	TreeSeedlings      float64 `json:"tree_seedlings"`
	DisplayText        string  `json:"display_text,omitempty"`
}

// Equivalencies converts kg CO2e into equivalent everyday activities. Amounts
// under 1 kg only carry InputKg.
func Equivalencies(kg float64) Equivalency {
	if math.IsNaN(kg) || math.IsInf(kg, 0) || kg < minEquivalencyKg {
		if kg < 0 || math.IsNaN(kg) || math.IsInf(kg, 0) {
			kg = 0
		}
		return Equivalency{InputKg: kg}
	}
	miles := kg / milesDrivenFactor
	phones := kg / smartphoneChargeFactor
	return Equivalency{
		InputKg:            kg,
		MilesDriven:        round2(miles),
		SmartphonesCharged: round2(phones),
		TreeSeedlings:      round2(kg / treeSeedlingFactor),
		DisplayText: fmt.Sprintf("Equivalent to driving ~%s miles or charging ~%s smartphones",
			printer.Sprintf("%d", int64(math.Round(miles))),
			printer.Sprintf("%d", int64(math.Round(phones)))),
	}
}
