package main

import (
	"github.com/tturner/absim/internal/config"
	"github.com/tturner/absim/internal/tagstore"
)

// tagstoreFromTemplate builds the immutable-after-construction Store the
// server core is handed, from the tags the CLI and/or --tagfile resolved.
func tagstoreFromTemplate(tmpl config.Template) *tagstore.Store {
	return tagstore.NewStore(tmpl.Tags)
}
