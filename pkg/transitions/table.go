// Package transitions maps user-facing transition names onto the effects
// the engine's cross-fade filter understands.
package transitions

import "sort"

// effects is the full set of xfade transitions, keyed by canonical name.
var effects = map[string]struct{}{
	"fade": {}, "fadeblack": {}, "fadewhite": {}, "fadegrays": {}, "fadefast": {}, "fadeslow": {},
	"dissolve": {}, "distance": {}, "pixelize": {}, "radial": {}, "hblur": {}, "zoomin": {},

	"wipeleft": {}, "wiperight": {}, "wipeup": {}, "wipedown": {},
	"wipetl": {}, "wipetr": {}, "wipebl": {}, "wipebr": {},

	"slideleft": {}, "slideright": {}, "slideup": {}, "slidedown": {},
	"smoothleft": {}, "smoothright": {}, "smoothup": {}, "smoothdown": {},

	"circlecrop": {}, "rectcrop": {}, "circleopen": {}, "circleclose": {},
	"vertopen": {}, "vertclose": {}, "horzopen": {}, "horzclose": {},

	"diagtl": {}, "diagtr": {}, "diagbl": {}, "diagbr": {},

	"hlslice": {}, "hrslice": {}, "vuslice": {}, "vdslice": {},
	"hlwind": {}, "hrwind": {}, "vuwind": {}, "vdwind": {},

	"coverleft": {}, "coverright": {}, "coverup": {}, "coverdown": {},
	"revealleft": {}, "revealright": {}, "revealup": {}, "revealdown": {},

	"squeezeh": {}, "squeezev": {},
}

// aliases keeps older show files working.
var aliases = map[string]string{
	"slide":     "slideleft",
	"zoom":      "zoomin",
	"crossfade": "fade",
}

// Lookup returns the canonical effect for name, following aliases.
func Lookup(name string) (string, bool) {
	name = normalizeName(name)
	if target, ok := aliases[name]; ok {
		return target, true
	}
	if _, ok := effects[name]; ok {
		return name, true
	}
	return "", false
}

// Names lists every canonical effect in lexical order.
func Names() []string {
	names := make([]string, 0, len(effects))
	for name := range effects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Aliases returns a copy of the alias table.
func Aliases() map[string]string {
	out := make(map[string]string, len(aliases))
	for k, v := range aliases {
		out[k] = v
	}
	return out
}
