package demo

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vango-dev/spindle/pkg/dom"
	"github.com/vango-dev/spindle/pkg/fetch"
)

// APIPrefix is where the catalogue is served.
const APIPrefix = "/api/items"

// Item is a catalogue entry.
type Item struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price int    `json:"price"`
}

// Catalogue is a fixed list of items.
type Catalogue []Item

// DefaultCatalogue is what the demo shows.
var DefaultCatalogue = Catalogue{
	{ID: "spool", Name: "Spool of thread", Price: 350},
	{ID: "needle", Name: "Darning needle", Price: 120},
	{ID: "bobbin", Name: "Bobbin", Price: 90},
}

func (c Catalogue) find(id string) (Item, bool) {
	for _, it := range c {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// lookup answers a catalogue path with a status and a JSON body.
func (c Catalogue) lookup(path string) (int, string) {
	rest := strings.TrimPrefix(path, APIPrefix)
	var v any = c
	if id := strings.Trim(rest, "/"); id != "" {
		it, ok := c.find(id)
		if !ok {
			return http.StatusNotFound, `{"error":"not found"}`
		}
		v = it
	}
	b, err := json.Marshal(v)
	if err != nil {
		return http.StatusInternalServerError, `{"error":"encode"}`
	}
	return http.StatusOK, string(b)
}

// Fetcher answers catalogue requests in process and passes every other
// request to next.
func (c Catalogue) Fetcher(next fetch.Func) fetch.Func {
	return func(ctx context.Context, req dom.FetchRequest) dom.FetchResult {
		if req.URL != APIPrefix && !strings.HasPrefix(req.URL, APIPrefix+"/") {
			return next(ctx, req)
		}
		if err := ctx.Err(); err != nil {
			return dom.FetchResult{Err: err}
		}
		status, body := c.lookup(req.URL)
		return dom.FetchResult{Status: status, Body: body}
	}
}

// Routes serves the catalogue over HTTP for browsers.
func (c Catalogue) Routes(r chi.Router) {
	serve := func(w http.ResponseWriter, req *http.Request) {
		status, body := c.lookup(req.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}
	r.Get(APIPrefix, serve)
	r.Get(APIPrefix+"/{id}", serve)
}
