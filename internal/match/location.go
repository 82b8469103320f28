package match

import (
	"strings"

	"github.com/rentsearchrs/lviv-pject/internal/model"
)

// DefaultCityAnchor is the token a "city" channel looks for in the location
// text when no anchor is configured.
const DefaultCityAnchor = "Львів"

// suburbs is the fixed set of outskirt place names matched exactly by
// suburbs-type channels. Addresses inside these villages carry just the
// place name, without a street part.
var suburbs = map[string]struct{}{
	"Малехів":    {},
	"Грибовичі":  {},
	"Дубляни":    {},
	"Сокільники": {},
	"Солонка":    {},
	"Зубра":      {},
	"Рудно":      {},
	"Лапаївка":   {},
	"Зимна Вода": {},
	"Винники":    {},
	"Підберізці": {},
	"Лисиничі":   {},
	"Давидів":    {},
	"Підгірці":   {},
}

// matchLocation applies the channel's location rule to the listing's raw
// location text.
//
// "region" means "no comma in the address" — a heuristic for non-city
// addresses inherited from the ingestion data contract (city addresses always
// carry a street part after a comma).
func matchLocation(lt model.LocationType, location, cityAnchor string) bool {
	switch lt {
	case model.LocationCity:
		if cityAnchor == "" {
			cityAnchor = DefaultCityAnchor
		}
		return strings.Contains(location, cityAnchor)
	case model.LocationRegion:
		return !strings.Contains(location, ",")
	case model.LocationSuburbs:
		_, ok := suburbs[location]
		return ok
	default:
		return true
	}
}
