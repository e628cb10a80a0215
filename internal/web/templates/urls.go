// Package templates holds the templ components served by the web package.
//
// Edit the .templ sources and run `templ generate` to refresh the _templ.go files.
package templates

import (
	"net/url"

	"github.com/a-h/templ"
)

// exportURL is the CSV download link for one labeler.
func exportURL(labelerID string) templ.SafeURL {
	return templ.SafeURL("/api/labels/export?labeler_id=" + url.QueryEscape(labelerID))
}
