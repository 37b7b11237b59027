package catalogue

import (
	"fmt"

	"github.com/artifex-heritage/artifex/internal/models"
)

// Catalogue is one normalized snapshot of the remote collection, in remote order.
type Catalogue []models.CatalogueRecord

// ViewState names what a reader of the catalogue should render.
type ViewState string

const (
	StateLoading   ViewState = "loading"
	StateFailed    ViewState = "failed"
	StateEmpty     ViewState = "empty"
	StateNoResults ViewState = "no_results"
	StateReady     ViewState = "ready"
)

// Status is the load status of a snapshot holder at one instant.
type Status struct {
	Loaded bool  // at least one fetch has been committed
	Err    error // error of the most recent settled fetch, nil if it succeeded
}

// View is the filtered, grouped catalogue together with the state it is in.
type View struct {
	State    ViewState
	Message  string
	Query    Query
	Total    int
	Sections []Section
}

// Retryable reports whether the caller should offer a retry.
func (v View) Retryable() bool {
	return v.State == StateFailed
}

// BuildView runs the filter and grouping over records and classifies the result.
// A failed latest fetch takes precedence over whatever snapshot is still held.
func BuildView(records Catalogue, status Status, q Query) View {
	v := View{Query: q, Sections: []Section{}}

	switch {
	case status.Err != nil:
		v.State = StateFailed
		v.Message = "Could not load the collections. Please try again."
		return v
	case !status.Loaded:
		v.State = StateLoading
		v.Message = "Loading collections..."
		return v
	case len(records) == 0:
		v.State = StateEmpty
		v.Message = "The catalogue has no artifacts yet."
		return v
	}

	matched := Filter(records, q)
	if len(matched) == 0 {
		v.State = StateNoResults
		v.Message = NoResultsMessage(q)
		return v
	}

	v.State = StateReady
	v.Total = len(matched)
	v.Sections = Group(matched)
	return v
}

// NoResultsMessage echoes the literal query back to the user.
func NoResultsMessage(q Query) string {
	if q.FreeText == "" {
		return fmt.Sprintf("No artifacts in \"%s\". Try another category.", q.Category)
	}
	return fmt.Sprintf("No results for \"%s\". Try another search term.", q.FreeText)
}
