/*
Package descriptor maps dive computers to the protocol family and model number a driver needs to
talk to them.

A [Descriptor] is resolved from a (family, model) pair with [ByModel] or from a BLE advertised name
with [FromName]. [DisplayName] turns an advertised name into a "Vendor Product" label and falls back
to the advertised name when nothing matches, so it can be used unconditionally in user interfaces
and as a stable storage key.
*/
package descriptor

// Descriptor identifies a wire protocol variant together with display metadata.
type Descriptor struct {
	Vendor  string
	Product string
	Family  Family
	Model   uint32
}

// Name returns "Vendor Product".
func (d Descriptor) Name() string {
	if d.Vendor == "" {
		return d.Product
	}
	return d.Vendor + " " + d.Product
}

// Valid reports whether d names a known family.
func (d Descriptor) Valid() bool {
	return d.Family.Known()
}

// Same compares the protocol-relevant fields and ignores display metadata.
func (d Descriptor) Same(other Descriptor) bool {
	return d.Family == other.Family && d.Model == other.Model
}

// catalogue lists the selectable models. Several products share a model number; ByModel returns
// the first.
var catalogue = []Descriptor{
	{"Shearwater", "Peregrine", FamilyShearwaterPetrel, 9},
	{"Shearwater", "Peregrine TX", FamilyShearwaterPetrel, 13},
	{"Shearwater", "Petrel", FamilyShearwaterPetrel, 3},
	{"Shearwater", "Petrel 2", FamilyShearwaterPetrel, 3},
	{"Shearwater", "Petrel 3", FamilyShearwaterPetrel, 10},
	{"Shearwater", "Perdix", FamilyShearwaterPetrel, 5},
	{"Shearwater", "Perdix AI", FamilyShearwaterPetrel, 6},
	{"Shearwater", "Perdix 2", FamilyShearwaterPetrel, 11},
	{"Shearwater", "Teric", FamilyShearwaterPetrel, 8},
	{"Shearwater", "Tern", FamilyShearwaterPetrel, 12},
	{"Shearwater", "NERD 2", FamilyShearwaterPetrel, 7},

	{"Suunto", "EON Steel", FamilySuuntoEonSteel, 0},
	{"Suunto", "EON Core", FamilySuuntoEonSteel, 1},
	{"Suunto", "D5", FamilySuuntoEonSteel, 2},
	{"Suunto", "EON Steel Black", FamilySuuntoEonSteel, 3},

	{"Scubapro", "G2", FamilyUwatecSmart, 0x32},
	{"Scubapro", "G2 TEK", FamilyUwatecSmart, 0x31},
	{"Scubapro", "G2 Console", FamilyUwatecSmart, 0x32},
	{"Scubapro", "G2 HUD", FamilyUwatecSmart, 0x42},
	{"Scubapro", "G3", FamilyUwatecSmart, 0x34},
	{"Scubapro", "Aladin A1", FamilyUwatecSmart, 0x25},
	{"Scubapro", "Aladin A2", FamilyUwatecSmart, 0x28},
	{"Scubapro", "Luna 2.0", FamilyUwatecSmart, 0x51},
	{"Scubapro", "Luna 2.0 AI", FamilyUwatecSmart, 0x50},

	{"Heinrichs Weikamp", "OSTC 3", FamilyHWOstc3, 0x0A},
	{"Heinrichs Weikamp", "OSTC 4", FamilyHWOstc3, 0x3B},
	{"Heinrichs Weikamp", "OSTC Plus", FamilyHWOstc3, 0x13},
	{"Heinrichs Weikamp", "OSTC 2", FamilyHWOstc3, 0x11},
	{"Heinrichs Weikamp", "OSTC Sport", FamilyHWOstc3, 0x12},
	{"Heinrichs Weikamp", "OSTC 2 TR", FamilyHWOstc3, 0x33},

	{"Oceanic", "Geo 4.0", FamilyOceanicAtom2, 0x4653},
	{"Oceanic", "Veo 4.0", FamilyOceanicAtom2, 0x4654},
	{"Oceanic", "Pro Plus 4", FamilyOceanicAtom2, 0x4656},
	{"Oceanic", "Atom 3.1", FamilyOceanicAtom2, 0x4456},
	{"Oceanic", "Geo Air", FamilyOceanicAtom2, 0x474B},
	{"Aqualung", "i770R", FamilyOceanicAtom2, 0x4651},
	{"Aqualung", "i550C", FamilyOceanicAtom2, 0x4652},
	{"Aqualung", "i300C", FamilyOceanicAtom2, 0x4648},
	{"Aqualung", "i200C", FamilyOceanicAtom2, 0x4649},
	{"Sherwood", "Wisdom 3", FamilyOceanicAtom2, 0x4458},
	{"Sherwood", "Sage", FamilyOceanicAtom2, 0x4647},

	{"Aqualung", "i330R", FamilyPelagicI330R, 0x4744},
	{"Aqualung", "i330R Console", FamilyPelagicI330R, 0x474D},
	{"Apeks", "DSX", FamilyPelagicI330R, 0x4741},

	{"Mares", "Icon HD", FamilyMaresIconHD, 0x14},
	{"Mares", "Puck Pro", FamilyMaresIconHD, 0x18},
	{"Mares", "Smart", FamilyMaresIconHD, 0x10},
	{"Mares", "Quad", FamilyMaresIconHD, 0x29},
	{"Mares", "Quad Air", FamilyMaresIconHD, 0x23},
	{"Mares", "Smart Air", FamilyMaresIconHD, 0x24},
	{"Mares", "Genius", FamilyMaresIconHD, 0x1C},
	{"Mares", "Puck 4", FamilyMaresIconHD, 0x35},

	{"Deep Six", "Excursion", FamilyDeepSixExcursion, 0},
	{"Deepblu", "Cosmiq+", FamilyDeepbluCosmiq, 0},
	{"Oceans", "S1", FamilyOceansS1, 0},
	{"McLean", "Extreme", FamilyMcLeanExtreme, 0},

	{"Divesoft", "Freedom", FamilyDivesoftFreedom, 19},
	{"Divesoft", "Liberty", FamilyDivesoftFreedom, 10},

	{"Cressi", "Goa", FamilyCressiGoa, 2},
	{"Cressi", "Cartesio", FamilyCressiGoa, 1},
	{"Cressi", "Leonardo 2.0", FamilyCressiGoa, 3},
	{"Cressi", "Donatello", FamilyCressiGoa, 4},

	{"DiveSystem", "iDive Easy", FamilyDiveSystemIDive, 0x09},
	{"DiveSystem", "iDive Free", FamilyDiveSystemIDive, 0x08},
	{"DiveSystem", "iDive Deep", FamilyDiveSystemIDive, 0x0B},
	{"Ratio", "iDive 2 Easy", FamilyDiveSystemIDive, 0x82},
	{"Ratio", "iDive 2 Free", FamilyDiveSystemIDive, 0x80},
	{"Ratio", "iDive 2 Deep", FamilyDiveSystemIDive, 0x84},
	{"Ratio", "iDive Color Easy", FamilyDiveSystemIDive, 0x52},
	{"Ratio", "iDive Color Free", FamilyDiveSystemIDive, 0x50},
	{"Ratio", "iDive Color Deep", FamilyDiveSystemIDive, 0x54},
}

// SupportedModels returns a copy of the model catalogue.
func SupportedModels() []Descriptor {
	out := make([]Descriptor, len(catalogue))
	copy(out, catalogue)
	return out
}

// ByModel returns the first catalogue entry for (family, model).
func ByModel(family Family, model uint32) (Descriptor, bool) {
	for _, d := range catalogue {
		if d.Family == family && d.Model == model {
			return d, true
		}
	}
	return Descriptor{}, false
}

// lookupProduct finds a catalogue entry by vendor and product name. It panics on a miss because
// it is only used to build the static name table.
func lookupProduct(vendor, product string) Descriptor {
	for _, d := range catalogue {
		if d.Vendor == vendor && d.Product == product {
			return d
		}
	}
	panic("descriptor: no catalogue entry for " + vendor + " " + product)
}
