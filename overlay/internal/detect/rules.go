package detect

import "regexp"

// builtinRules are evaluated in order during the rule pass.
var builtinRules = []string{
	// Google
	`iframe[src*="ads"]`,
	`iframe[src*="doubleclick"]`,
	`iframe[src*="adservice"]`,
	`iframe[id*="google_ads"]`,
	`iframe[src*="googlesyndication"]`,
	`iframe[src*="googleads"]`,
	`ins.adsbygoogle`,
	`div[id^="div-gpt-ad"]`,
	`div[data-ad-client]`,
	`div[data-ad-slot]`,
	// images
	`img[src*="adservice"]`,
	`img[src*="doubleclick"]`,
	`img[src*="adsystem"]`,
	`img[src*="/ads/"]`,
	`img[src*="ad."]`,
	// containers
	`div[id*="ad-container"]`,
	`div[id*="ad_container"]`,
	`div[id*="adContainer"]`,
	`div[class*="ad-slot"]`,
	`div[class*="ad_slot"]`,
	`div[class*="adSlot"]`,
	`div[class*="sponsored"]`,
	`div[class*="advertisement"]`,
	`div[class*="ad-wrapper"]`,
	`div[class*="ad_wrapper"]`,
	`section[data-ad]`,
	`aside[data-ad]`,
	// networks
	`div[id*="taboola"]`,
	`div[id*="outbrain"]`,
	`div[class*="taboola"]`,
	`div[class*="outbrain"]`,
	`div[id*="amzn-assoc"]`,
	`iframe[src*="amazon-adsystem"]`,
}

// Rules returns a copy of the built-in rule list.
func Rules() []string {
	return append([]string(nil), builtinRules...)
}

const (
	heuristicSelector = `[id*="ad"], [class*="ad"], [id*="banner"], [class*="banner"]`
	frameSelector     = `iframe`
)

// adVocabulary matches lower-cased ids and class strings that start with an
// advertising word.
var adVocabulary = regexp.MustCompile(`^(ad|ads|advert|advertisement|banner|sponsor|promo|commercial)`)

// Size is a standard ad slot.
type Size struct{ Width, Height int }

// StandardSizes are the IAB slots recognised by size.
var StandardSizes = []Size{
	{728, 90},  // leaderboard
	{300, 250}, // medium rectangle
	{336, 280}, // large rectangle
	{300, 600}, // half page
	{320, 50},  // mobile banner
	{320, 100}, // large mobile banner
	{160, 600}, // wide skyscraper
	{970, 250}, // billboard
}

// DefaultTolerance is the per-axis slack, exclusive, of IsAdSize.
const DefaultTolerance = 20

// IsAdSize reports whether w×h is within DefaultTolerance of a standard size
// on both axes independently.
func IsAdSize(w, h int) bool {
	return isAdSize(w, h, DefaultTolerance)
}

func isAdSize(w, h, tolerance int) bool {
	for _, s := range StandardSizes {
		if abs(w-s.Width) < tolerance && abs(h-s.Height) < tolerance {
			return true
		}
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
