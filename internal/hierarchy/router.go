// Package hierarchy composes an order-level classifier with per-family
// species classifiers into a single species predictor.
package hierarchy

import (
	"fmt"
	"sort"

	"aunp-classifier/internal/dataset"
	"aunp-classifier/internal/taxonomy"

	"gonum.org/v1/gonum/mat"
)

// Predictor is anything that maps feature rows to class indices.
// model.Classifier satisfies it.
type Predictor interface {
	Predict(X mat.Matrix) ([]int, error)
}

// MissingSubmodelError reports rows routed to a composite order that has no
// registered family model.
type MissingSubmodelError struct {
	Order string
}

func (e *MissingSubmodelError) Error() string {
	return fmt.Sprintf("no sub-model registered for order %q", e.Order)
}

type submodel struct {
	predictor Predictor
	names     []string
}

// Router runs the order model on every row, then sends the rows of each
// composite order to that order's family model. Rows predicted as a leaf
// order keep the order name as their final label.
type Router struct {
	catalog    *taxonomy.Catalog
	order      Predictor
	orderNames []string
	subs       map[string]submodel
}

// New returns a router around the order model. orderNames maps the order
// model's class indices to order names; nil uses catalog.Orders().
func New(catalog *taxonomy.Catalog, order Predictor, orderNames []string) *Router {
	if orderNames == nil {
		orderNames = catalog.Orders()
	}
	return &Router{
		catalog:    catalog,
		order:      order,
		orderNames: append([]string(nil), orderNames...),
		subs:       make(map[string]submodel),
	}
}

// Register attaches the family model of a composite order. names maps the
// sub-model's class indices to species names; nil uses
// catalog.Members(order).
func (r *Router) Register(order string, p Predictor, names []string) error {
	if !r.catalog.IsComposite(order) {
		return fmt.Errorf("order %q is not a composite order", order)
	}
	if names == nil {
		names = r.catalog.Members(order)
	}
	r.subs[order] = submodel{predictor: p, names: append([]string(nil), names...)}
	return nil
}

// Registered returns the orders with a family model, sorted.
func (r *Router) Registered() []string {
	out := make([]string, 0, len(r.subs))
	for order := range r.subs {
		out = append(out, order)
	}
	sort.Strings(out)
	return out
}

// Predict returns one species name per row of X, in row order.
func (r *Router) Predict(X mat.Matrix) ([]string, error) {
	rows, _ := X.Dims()
	orders, err := r.order.Predict(X)
	if err != nil {
		return nil, fmt.Errorf("order model: %w", err)
	}
	if len(orders) != rows {
		return nil, &dataset.MismatchError{What: "order prediction count", Want: rows, Got: len(orders)}
	}

	out := make([]string, rows)
	groups := make(map[string][]int)
	for i, idx := range orders {
		name, err := lookup(r.orderNames, idx, "order index")
		if err != nil {
			return nil, err
		}
		if r.catalog.IsComposite(name) {
			groups[name] = append(groups[name], i)
			continue
		}
		out[i] = name
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, order := range names {
		sub, ok := r.subs[order]
		if !ok {
			return nil, &MissingSubmodelError{Order: order}
		}
		idx := groups[order]
		pred, err := sub.predictor.Predict(dataset.Rows(X, idx))
		if err != nil {
			return nil, fmt.Errorf("%s sub-model: %w", order, err)
		}
		if len(pred) != len(idx) {
			return nil, &dataset.MismatchError{What: order + " prediction count", Want: len(idx), Got: len(pred)}
		}
		for j, p := range pred {
			name, err := lookup(sub.names, p, order+" species index")
			if err != nil {
				return nil, err
			}
			out[idx[j]] = name
		}
	}
	return out, nil
}

// PredictIndices is Predict with names mapped to global species indices.
func (r *Router) PredictIndices(X mat.Matrix) ([]int, error) {
	names, err := r.Predict(X)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(names))
	for i, n := range names {
		idx, ok := r.catalog.SpeciesIndex(n)
		if !ok {
			return nil, &dataset.MismatchError{What: "species name", Want: "a catalog species", Got: n}
		}
		out[i] = idx
	}
	return out, nil
}

func lookup(names []string, idx int, what string) (string, error) {
	if idx < 0 || idx >= len(names) {
		return "", &dataset.MismatchError{What: what, Want: fmt.Sprintf("[0, %d)", len(names)), Got: idx}
	}
	return names[idx], nil
}
