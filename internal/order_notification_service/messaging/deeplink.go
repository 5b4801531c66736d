package messaging

import (
	"net/url"
	"strings"
)

const deepLinkBase = "https://wa.me/"

// BuildDeepLink returns a click-to-send link carrying text for phone.
// Construction cannot fail; an empty phone yields the recipient picker link.
func BuildDeepLink(phone, text string) string {
	link := deepLinkBase + Digits(phone)
	if text == "" {
		return link
	}
	return link + "?text=" + strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
}
