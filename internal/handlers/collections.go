package handlers

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/artifex-heritage/artifex/internal/catalogue"
	"github.com/artifex-heritage/artifex/internal/models"
)

type recordResponse struct {
	models.CatalogueRecord
	HasImage bool   `json:"hasImage"`
	ImageSrc string `json:"imageSrc,omitempty"`
}

type sectionResponse struct {
	Title    string           `json:"title"`
	Total    int              `json:"total"`
	Expanded bool             `json:"expanded"`
	Items    []recordResponse `json:"items"`
}

type collectionsResponse struct {
	Status    catalogue.ViewState `json:"status"`
	Message   string              `json:"message,omitempty"`
	Retryable bool                `json:"retryable"`
	Query     catalogue.Query     `json:"query"`
	Total     int                 `json:"total"`
	Sections  []sectionResponse   `json:"sections"`
}

func queryFromRequest(r *http.Request) catalogue.Query {
	q := r.URL.Query()
	category := q.Get("category")
	if category == "" {
		category = catalogue.AllCategories
	}
	return catalogue.Query{FreeText: q.Get("search"), Category: category}
}

// HandleCollections serves the filtered, grouped catalogue.
func (h *Handler) HandleCollections(w http.ResponseWriter, r *http.Request) {
	query := queryFromRequest(r)

	preview := catalogue.DefaultPreview
	if p := r.URL.Query().Get("preview"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			h.writeError(w, "preview must be a non-negative integer", http.StatusBadRequest)
			return
		}
		preview = n
	}
	expanded := make(map[string]bool)
	for _, title := range r.URL.Query()["expand"] {
		expanded[title] = true
	}

	records, status := h.snapshots.Snapshot()
	view := catalogue.BuildView(records, status, query)

	if view.State == catalogue.StateFailed {
		h.RetryAsync("retry after failed fetch")
	}

	resp := collectionsResponse{
		Status:    view.State,
		Message:   view.Message,
		Retryable: view.Retryable(),
		Query:     view.Query,
		Total:     view.Total,
		Sections:  make([]sectionResponse, 0, len(view.Sections)),
	}
	for _, section := range view.Sections {
		items := section.Items
		if !expanded[section.Title] {
			items = section.Preview(preview)
		}
		sr := sectionResponse{
			Title:    section.Title,
			Total:    len(section.Items),
			Expanded: len(items) == len(section.Items),
			Items:    make([]recordResponse, 0, len(items)),
		}
		for _, rec := range items {
			sr.Items = append(sr.Items, h.recordResponse(rec))
		}
		resp.Sections = append(resp.Sections, sr)
	}

	code := http.StatusOK
	if view.State == catalogue.StateFailed {
		code = http.StatusServiceUnavailable
	}
	h.writeJSONStatus(w, code, resp)
}

func (h *Handler) recordResponse(rec models.CatalogueRecord) recordResponse {
	resp := recordResponse{CatalogueRecord: rec, HasImage: rec.HasImage()}
	if resp.HasImage && h.uploader != nil {
		resp.ImageSrc = h.uploader.PublicURL(rec.ImageURL)
	}
	return resp
}

type suggestion struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

type suggestionsResponse struct {
	Query       string       `json:"query"`
	Suggestions []suggestion `json:"suggestions"`
}

// HandleSuggestions serves autocomplete entries; following an href commits
// the suggestion as the search text.
func (h *Handler) HandleSuggestions(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("q")
	category := r.URL.Query().Get("category")
	records, _ := h.snapshots.Snapshot()

	resp := suggestionsResponse{Query: text, Suggestions: []suggestion{}}
	for _, s := range catalogue.Suggest(records, text) {
		q := catalogue.Query{Category: category}.WithSuggestion(s)
		params := url.Values{"search": {q.FreeText}}
		if q.Category != "" {
			params.Set("category", q.Category)
		}
		resp.Suggestions = append(resp.Suggestions, suggestion{
			Text: s,
			Href: "/api/collections?" + params.Encode(),
		})
	}
	h.writeJSON(w, resp)
}

type categoryCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
	Known bool   `json:"known"`
}

// HandleCategories lists the curated categories with how many records each holds.
// Categories present in the data but outside the curated list follow, in first-seen order.
func (h *Handler) HandleCategories(w http.ResponseWriter, r *http.Request) {
	records, _ := h.snapshots.Snapshot()

	counts := make(map[string]int)
	var extra []string
	for _, rec := range records {
		if _, seen := counts[rec.Category]; !seen && !catalogue.IsKnownCategory(rec.Category) {
			extra = append(extra, rec.Category)
		}
		counts[rec.Category]++
	}

	out := make([]categoryCount, 0, len(catalogue.Categories)+len(extra))
	for _, name := range catalogue.Categories {
		out = append(out, categoryCount{Name: name, Count: counts[name], Known: true})
	}
	for _, name := range extra {
		out = append(out, categoryCount{Name: name, Count: counts[name]})
	}

	h.writeJSON(w, map[string]any{
		"all":        catalogue.AllCategories,
		"total":      len(records),
		"categories": out,
	})
}

// HandleRefresh starts a new fetch and returns immediately.
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	h.RefreshAsync("requested")
	h.writeJSONStatus(w, http.StatusAccepted, map[string]string{"status": "refreshing"})
}
