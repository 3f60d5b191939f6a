// Package router keeps an application's route in a reactive value that is
// synchronised with the browser location.
//
// A Router reads the initial route from the driver, pushes every Set to the
// driver's history, and updates the value when the browser navigates on its
// own (back and forward buttons, hash edits). Routes are any comparable type
// with a parse function and a format function:
//
//	type Page struct{ Name, ID string }
//
//	r := router.New(app, router.History, parsePage, formatPage)
//	title := reactive.Map(r.Route(), func(p Page) string { return p.Name })
//
// Two modes are available. History uses the whole path and query. Hash keeps
// the path and stores the route in the fragment after '#'.
//
// Patterns such as "/items/:id" or "/files/*path" can be matched with Match,
// which is convenient for writing parse functions.
package router
