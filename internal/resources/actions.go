package resources

import "net/url"

type action struct {
	label   string
	href    string // GET link
	post    string // POST form action
	confirm string
	copy    string // value copied to the clipboard
	// table links open a modal over the current page and keep its state.
	table bool
}

func (a action) link(state url.Values) string {
	if !a.table || len(state) == 0 {
		return a.href
	}
	return a.href + "?" + state.Encode()
}
