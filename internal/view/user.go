package view

import (
	"fmt"

	"github.com/mad-auth/console/internal/apiclient"
	"github.com/mad-auth/console/internal/resources"
)

const timestampLayout = "2006-01-02 15:04:05"

func userURL(id int) string { return fmt.Sprintf("/users/%d", id) }

func userTabs(id int) []tab {
	base := userURL(id)
	return []tab{{"Account", base}, {"Metadata", base + "/metadata"}}
}

type MetadataProps struct {
	User apiclient.User
	// Raw is the editor content; empty shows the stored metadata.
	Raw   string
	Error string
}

func (p MetadataProps) raw() string {
	if p.Raw == "" {
		return resources.FormatMetadata(p.User.Metadata)
	}
	return p.Raw
}
