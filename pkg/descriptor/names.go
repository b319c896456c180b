package descriptor

import "strings"

type matchMode int

const (
	matchExact matchMode = iota
	matchPrefix
)

type namePattern struct {
	pattern    string
	mode       matchMode
	descriptor Descriptor
}

func (p namePattern) matches(name string) bool {
	switch p.mode {
	case matchExact:
		return strings.EqualFold(name, p.pattern)
	case matchPrefix:
		return len(name) >= len(p.pattern) && strings.EqualFold(name[:len(p.pattern)], p.pattern)
	}
	return false
}

func exact(pattern, vendor, product string) namePattern {
	return namePattern{pattern, matchExact, lookupProduct(vendor, product)}
}

func prefix(pattern, vendor, product string) namePattern {
	return namePattern{pattern, matchPrefix, lookupProduct(vendor, product)}
}

// nameTable maps advertised names to descriptors. Order matters: the first matching entry wins, so
// longer prefixes precede the shorter prefixes they extend.
var nameTable = []namePattern{
	exact("Petrel", "Shearwater", "Petrel"),
	exact("Petrel 2", "Shearwater", "Petrel 2"),
	exact("Petrel 3", "Shearwater", "Petrel 3"),
	exact("Perdix", "Shearwater", "Perdix"),
	exact("Perdix AI", "Shearwater", "Perdix AI"),
	exact("Perdix 2", "Shearwater", "Perdix 2"),
	exact("Teric", "Shearwater", "Teric"),
	exact("Peregrine", "Shearwater", "Peregrine"),
	exact("Peregrine TX", "Shearwater", "Peregrine TX"),
	exact("Tern", "Shearwater", "Tern"),
	exact("NERD 2", "Shearwater", "NERD 2"),

	prefix("EON Steel Black", "Suunto", "EON Steel Black"),
	prefix("EON Steel", "Suunto", "EON Steel"),
	prefix("EON Core", "Suunto", "EON Core"),
	prefix("Suunto D5", "Suunto", "D5"),

	exact("G2", "Scubapro", "G2"),
	exact("G2 TEK", "Scubapro", "G2 TEK"),
	exact("G2 Console", "Scubapro", "G2 Console"),
	exact("HUD", "Scubapro", "G2 HUD"),
	exact("G3", "Scubapro", "G3"),
	exact("Aladin A1", "Scubapro", "Aladin A1"),
	exact("A1", "Scubapro", "Aladin A1"),
	exact("Aladin A2", "Scubapro", "Aladin A2"),
	exact("A2", "Scubapro", "Aladin A2"),
	exact("Luna 2.0 AI", "Scubapro", "Luna 2.0 AI"),
	exact("Luna 2.0", "Scubapro", "Luna 2.0"),

	prefix("OSTC 2 TR", "Heinrichs Weikamp", "OSTC 2 TR"),
	prefix("OSTC2", "Heinrichs Weikamp", "OSTC 2"),
	prefix("OSTC3", "Heinrichs Weikamp", "OSTC 3"),
	prefix("OSTC4", "Heinrichs Weikamp", "OSTC 4"),
	prefix("OSTC+", "Heinrichs Weikamp", "OSTC Plus"),
	prefix("OSTC Sport", "Heinrichs Weikamp", "OSTC Sport"),
	prefix("OSTCs", "Heinrichs Weikamp", "OSTC Sport"),

	prefix("i330R", "Aqualung", "i330R"),
	prefix("DSX", "Apeks", "DSX"),
	prefix("i770R", "Aqualung", "i770R"),
	prefix("i550C", "Aqualung", "i550C"),
	prefix("i300C", "Aqualung", "i300C"),
	prefix("i200C", "Aqualung", "i200C"),
	prefix("Geo 4.0", "Oceanic", "Geo 4.0"),
	prefix("Geo Air", "Oceanic", "Geo Air"),
	prefix("Veo 4.0", "Oceanic", "Veo 4.0"),
	prefix("Pro Plus 4", "Oceanic", "Pro Plus 4"),
	prefix("Atom 3.1", "Oceanic", "Atom 3.1"),
	prefix("Wisdom 3", "Sherwood", "Wisdom 3"),
	exact("Sage", "Sherwood", "Sage"),

	prefix("Mares Genius", "Mares", "Genius"),
	prefix("Genius", "Mares", "Genius"),
	prefix("Puck Pro", "Mares", "Puck Pro"),
	prefix("Puck 4", "Mares", "Puck 4"),
	prefix("Quad Air", "Mares", "Quad Air"),
	prefix("Quad", "Mares", "Quad"),
	prefix("Smart Air", "Mares", "Smart Air"),
	prefix("Mares Smart", "Mares", "Smart"),
	prefix("Icon HD", "Mares", "Icon HD"),

	prefix("EXCURSION", "Deep Six", "Excursion"),
	prefix("COSMIQ", "Deepblu", "Cosmiq+"),
	exact("S1", "Oceans", "S1"),
	prefix("McLean Extreme", "McLean", "Extreme"),

	prefix("Freedom", "Divesoft", "Freedom"),
	prefix("Liberty", "Divesoft", "Liberty"),

	prefix("CARESIO_", "Cressi", "Cartesio"),
	prefix("CARTESIO", "Cressi", "Cartesio"),
	prefix("GOA_", "Cressi", "Goa"),
	prefix("LEONARDO", "Cressi", "Leonardo 2.0"),
	prefix("DONATELLO", "Cressi", "Donatello"),

	prefix("iDive Color Easy", "Ratio", "iDive Color Easy"),
	prefix("iDive Color Free", "Ratio", "iDive Color Free"),
	prefix("iDive Color Deep", "Ratio", "iDive Color Deep"),
	prefix("iDive 2 Easy", "Ratio", "iDive 2 Easy"),
	prefix("iDive 2 Free", "Ratio", "iDive 2 Free"),
	prefix("iDive 2 Deep", "Ratio", "iDive 2 Deep"),
	prefix("iDive Easy", "DiveSystem", "iDive Easy"),
	prefix("iDive Free", "DiveSystem", "iDive Free"),
	prefix("iDive Deep", "DiveSystem", "iDive Deep"),
}

// FromName resolves a BLE advertised name. The first table entry whose pattern matches, exactly or
// as a prefix, wins; matching ignores case and surrounding whitespace.
func FromName(advertised string) (Descriptor, bool) {
	name := strings.TrimSpace(advertised)
	if name == "" {
		return Descriptor{}, false
	}
	for _, p := range nameTable {
		if p.matches(name) {
			return p.descriptor, true
		}
	}
	return Descriptor{}, false
}

// DisplayName returns "Vendor Product" for a recognised advertised name and the advertised name
// itself otherwise.
func DisplayName(advertised string) string {
	if d, ok := FromName(advertised); ok {
		return d.Name()
	}
	return advertised
}
