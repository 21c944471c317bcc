package engine

import (
	"regexp"

	"github.com/groblegark/funnel/internal/model"
)

var tagPattern = regexp.MustCompile(`\{\{\s*(contact|campaign)\.([a-z_]+)\s*\}\}`)

// RenderTags substitutes {{contact.*}} and {{campaign.*}} merge tags in s.
// Unknown tags are left in place so broken copy is visible in the ledger
// instead of silently vanishing.
func RenderTags(s string, contact *model.Contact, campaign *model.Campaign) string {
	if s == "" {
		return s
	}
	var contactFields, campaignFields map[string]string
	if contact != nil {
		contactFields = contact.MergeFields()
	}
	if campaign != nil {
		campaignFields = campaign.MergeFields()
	}
	return tagPattern.ReplaceAllStringFunc(s, func(tag string) string {
		m := tagPattern.FindStringSubmatch(tag)
		var val string
		var ok bool
		switch m[1] {
		case "contact":
			val, ok = contactFields[m[2]]
		case "campaign":
			val, ok = campaignFields[m[2]]
		}
		if !ok {
			return tag
		}
		return val
	})
}
