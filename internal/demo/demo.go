// Package demo is a small application served by the spindle CLI: a counter
// page and a catalogue browsed through the router.
package demo

import (
	"fmt"
	"strconv"
	"strings"

	spindle "github.com/vango-dev/spindle"
	"github.com/vango-dev/spindle/pkg/dom"
	"github.com/vango-dev/spindle/pkg/reactive"
	"github.com/vango-dev/spindle/pkg/resource"
	"github.com/vango-dev/spindle/pkg/router"
)

// Page identifies a demo page.
type Page uint8

const (
	PageHome Page = iota
	PageItems
	PageItem
	PageNotFound
)

// Route is the demo's route type.
type Route struct {
	Page Page
	ID   string
}

// Pages lists the path patterns the demo answers.
var Pages = []string{"/", "/items", "/items/:id"}

// Paths lists every page path, for publishing.
func Paths(c Catalogue) []string {
	out := []string{"/", "/items"}
	for _, it := range c {
		out = append(out, Route{Page: PageItem, ID: it.ID}.String())
	}
	return out
}

// ParseRoute maps a location to a route.
func ParseRoute(location string) Route {
	path, _, _ := strings.Cut(location, "?")
	switch {
	case path == "/" || path == "":
		return Route{Page: PageHome}
	case path == "/items":
		return Route{Page: PageItems}
	}
	if params, ok := router.Match("/items/:id", path); ok {
		return Route{Page: PageItem, ID: params["id"]}
	}
	return Route{Page: PageNotFound, ID: path}
}

// String formats the route as a path.
func (r Route) String() string {
	switch r.Page {
	case PageItems:
		return "/items"
	case PageItem:
		return "/items/" + r.ID
	case PageNotFound:
		return r.ID
	default:
		return "/"
	}
}

func (r Route) title() string {
	switch r.Page {
	case PageItems:
		return "Items"
	case PageItem:
		return "Item " + r.ID
	case PageNotFound:
		return "Not found"
	default:
		return "Counter"
	}
}

// Mount builds the demo document.
func Mount(app *spindle.App) dom.Node {
	doc := app.Document()
	r := router.New(app, router.History, ParseRoute, Route.String)
	title := reactive.Map(r.Route(), func(rt Route) string { return rt.title() + " - spindle" })

	nav := dom.NewElement(doc, "nav").Css("display: flex; gap: 1em;").Children(
		r.Link(doc, Route{Page: PageHome}).Text("Counter"),
		r.Link(doc, Route{Page: PageItems}).Text("Items"),
	)
	content := dom.Dynamic(doc, r.Route(), func(rt Route) dom.Node {
		switch rt.Page {
		case PageHome:
			return counter(app)
		case PageItems:
			return items(app, r)
		case PageItem:
			return item(app, r, rt.ID)
		default:
			return notFound(app, r)
		}
	})

	body := dom.NewElement(doc, "body").Children(nav, dom.NewElement(doc, "main").Child(content))
	body.AddCleanup(func() {
		title.Drop()
		r.Drop()
	})

	return dom.NewElement(doc, "html").Attr("lang", "en").Children(
		dom.NewElement(doc, "head").Children(
			dom.NewElement(doc, "meta").Attr("charset", "utf-8"),
			dom.NewElement(doc, "title").Child(dom.NewTextComputed(doc, title)),
		),
		body,
	)
}

func counter(app *spindle.App) dom.Node {
	doc, g := app.Document(), app.Graph()
	count := reactive.NewValue(g, 0)
	name := reactive.NewValue(g, "")
	label := reactive.Map(count, func(n int) string { return "Count: " + strconv.Itoa(n) })
	greeting := reactive.Map(name, func(s string) string {
		if s == "" {
			return "Type your name"
		}
		return "Hello, " + s
	})

	el := dom.NewElement(doc, "section").Children(
		dom.NewElement(doc, "h1").Child(dom.NewTextComputed(doc, label)),
		dom.NewElement(doc, "button").Text("-").OnClick(func() {
			count.Change(func(n *int) { *n-- })
		}),
		dom.NewElement(doc, "button").Css("font-weight: bold;").Text("+").OnClick(func() {
			count.Change(func(n *int) { *n++ })
		}),
		dom.NewElement(doc, "input").Attr("placeholder", "name").OnInput(name.Set),
		dom.NewElement(doc, "p").Child(dom.NewTextComputed(doc, greeting)),
	)
	el.AddCleanup(func() {
		label.Drop()
		greeting.Drop()
		count.Drop()
		name.Drop()
	})
	return el
}

func items(app *spindle.App, r *router.Router[Route]) dom.Node {
	doc := app.Document()
	res := resource.New[[]Item](app, dom.FetchRequest{URL: APIPrefix}, resource.JSON[[]Item])
	state := res.State()

	el := dom.NewElement(doc, "section").Children(
		dom.NewElement(doc, "h1").Text("Items"),
		dom.Dynamic(doc, state, func(s resource.State[[]Item]) dom.Node {
			switch s.Status {
			case resource.Loading:
				return dom.NewElement(doc, "p").Text("Loading...")
			case resource.Failed:
				return failure(doc, "items", s.Err)
			}
			ul := dom.NewElement(doc, "ul")
			for _, it := range s.Value {
				ul.Child(dom.NewElement(doc, "li").Children(
					r.Link(doc, Route{Page: PageItem, ID: it.ID}).Text(it.Name),
					dom.NewText(doc, " "+price(it.Price)),
				))
			}
			return ul
		}),
	)
	el.AddCleanup(func() {
		state.Drop()
		res.Drop()
	})
	return el
}

func item(app *spindle.App, r *router.Router[Route], id string) dom.Node {
	doc := app.Document()
	res := resource.New[Item](app, dom.FetchRequest{URL: APIPrefix + "/" + id}, resource.JSON[Item])
	state := res.State()

	el := dom.NewElement(doc, "section").Children(
		dom.Dynamic(doc, state, func(s resource.State[Item]) dom.Node {
			switch s.Status {
			case resource.Loading:
				return dom.NewElement(doc, "p").Text("Loading...")
			case resource.Failed:
				return failure(doc, id, s.Err)
			}
			return dom.NewElement(doc, "article").Children(
				dom.NewElement(doc, "h1").Text(s.Value.Name),
				dom.NewElement(doc, "p").Text(price(s.Value.Price)),
			)
		}),
		r.Link(doc, Route{Page: PageItems}).Text("Back to items"),
	)
	el.AddCleanup(func() {
		state.Drop()
		res.Drop()
	})
	return el
}

func notFound(app *spindle.App, r *router.Router[Route]) dom.Node {
	doc := app.Document()
	return dom.NewElement(doc, "section").Children(
		dom.NewElement(doc, "h1").Text("Nothing here"),
		r.Link(doc, Route{Page: PageHome}).Text("Go home"),
	)
}

func failure(doc *dom.Document, what string, err error) dom.Node {
	return dom.NewElement(doc, "p").Css("color: #b00;").Text(fmt.Sprintf("Could not load %s: %v", what, err))
}

func price(cents int) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
