package device

import (
	"errors"
	"fmt"
	"sort"
)

// VendorID is the USB vendor id shared by every supported printer.
const VendorID uint16 = 0x04F9

// Model is one catalog entry describing a supported hardware variant.
type Model struct {
	ProductID         uint16
	Name              string
	DPI               int
	RasterWidthPixels int
}

var (
	// ErrUnknownModel means the product id is not in the catalog. This is
	// distinct from ErrNotFound, which means no matching device is on the bus.
	ErrUnknownModel = errors.New("unknown printer model")

	// ErrNotFound means no connected device matched the selection criteria.
	ErrNotFound = errors.New("no matching printer found")
)

var catalog = map[uint16]Model{
	0x20F2: {ProductID: 0x20F2, Name: "TD-4210D", DPI: 203, RasterWidthPixels: 832},
	0x20B6: {ProductID: 0x20B6, Name: "TD-4410D", DPI: 203, RasterWidthPixels: 832},
	0x20B7: {ProductID: 0x20B7, Name: "TD-4420DN", DPI: 203, RasterWidthPixels: 832},
	0x20B8: {ProductID: 0x20B8, Name: "TD-4510D", DPI: 300, RasterWidthPixels: 1280},
	0x20B9: {ProductID: 0x20B9, Name: "TD-4520DN", DPI: 300, RasterWidthPixels: 1280},
	0x20BA: {ProductID: 0x20BA, Name: "TD-4550DNWB", DPI: 300, RasterWidthPixels: 1280},
}

// Lookup resolves a model by its USB product id.
func Lookup(productID uint16) (Model, error) {
	m, ok := catalog[productID]
	if !ok {
		return Model{}, fmt.Errorf("product id 0x%04X: %w", productID, ErrUnknownModel)
	}
	return m, nil
}

// LookupByName resolves a model by its exact human-readable name.
func LookupByName(name string) (Model, error) {
	for _, m := range catalog {
		if m.Name == name {
			return m, nil
		}
	}
	return Model{}, fmt.Errorf("model %q: %w", name, ErrUnknownModel)
}

// Models returns all catalog entries sorted by product id. Map iteration
// order is unstable, so selection always walks this canonical order.
func Models() []Model {
	models := make([]Model, 0, len(catalog))
	for _, m := range catalog {
		models = append(models, m)
	}
	sort.Slice(models, func(i, j int) bool {
		return models[i].ProductID < models[j].ProductID
	})
	return models
}
