package checks

import (
	"fmt"

	"entitlement-manager/core/reconcile"
)

// CatalogReport summarizes the product catalog.
type CatalogReport struct {
	Products int                           `json:"products"`
	ByKind   map[reconcile.ProductKind]int `json:"by_kind"`
	Errors   []string                      `json:"errors"`
}

// CheckCatalog verifies every product has a known kind.
func CheckCatalog(catalog reconcile.Catalog) (*CatalogReport, error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog is nil")
	}
	report := &CatalogReport{ByKind: make(map[reconcile.ProductKind]int), Errors: []string{}}
	for _, id := range catalog.ProductIDs() {
		kind, ok := catalog.Lookup(id)
		if !ok || !kind.Valid() {
			report.Errors = append(report.Errors, fmt.Sprintf("product %s has invalid kind %q", id, kind))
			continue
		}
		report.Products++
		report.ByKind[kind]++
	}
	if report.Products == 0 && len(report.Errors) == 0 {
		report.Errors = append(report.Errors, "catalog has no products")
	}
	return report, nil
}
