package descriptor

import (
	"fmt"
	"strings"
)

// Family enumerates the vendor protocol families that can be reached over BLE. Each family selects
// a wire protocol; the numeric model distinguishes hardware revisions within it.
type Family int

const (
	FamilyNull Family = iota
	FamilySuuntoEonSteel
	FamilyShearwaterPetrel
	FamilyHWOstc3
	FamilyUwatecSmart
	FamilyOceanicAtom2
	FamilyPelagicI330R
	FamilyMaresIconHD
	FamilyDeepSixExcursion
	FamilyDeepbluCosmiq
	FamilyOceansS1
	FamilyMcLeanExtreme
	FamilyDivesoftFreedom
	FamilyCressiGoa
	FamilyDiveSystemIDive
)

// Wire values are the dc_family_t constants used by libdivecomputer drivers. The vendor is
// encoded in the upper 16 bits.
const (
	wireSuuntoEonSteel   uint32 = 1<<16 + 5
	wireUwatecSmart      uint32 = 3<<16 + 2
	wireOceanicAtom2     uint32 = 4<<16 + 2
	wirePelagicI330R     uint32 = 4<<16 + 3
	wireMaresIconHD      uint32 = 5<<16 + 3
	wireHWOstc3          uint32 = 6<<16 + 2
	wireCressiGoa        uint32 = 7<<16 + 2
	wireShearwaterPetrel uint32 = 10<<16 + 1
	wireDiveSystemIDive  uint32 = 13 << 16
	wireMcLeanExtreme    uint32 = 16 << 16
	wireDeepSixExcursion uint32 = 19 << 16
	wireDeepbluCosmiq    uint32 = 21 << 16
	wireOceansS1         uint32 = 22 << 16
	wireDivesoftFreedom  uint32 = 23 << 16
	wireNull             uint32 = 0
)

type familyInfo struct {
	name string
	wire uint32
}

var families = map[Family]familyInfo{
	FamilySuuntoEonSteel:   {"suuntoEonSteel", wireSuuntoEonSteel},
	FamilyShearwaterPetrel: {"shearwaterPetrel", wireShearwaterPetrel},
	FamilyHWOstc3:          {"hwOstc3", wireHWOstc3},
	FamilyUwatecSmart:      {"uwatecSmart", wireUwatecSmart},
	FamilyOceanicAtom2:     {"oceanicAtom2", wireOceanicAtom2},
	FamilyPelagicI330R:     {"pelagicI330R", wirePelagicI330R},
	FamilyMaresIconHD:      {"maresIconHD", wireMaresIconHD},
	FamilyDeepSixExcursion: {"deepsixExcursion", wireDeepSixExcursion},
	FamilyDeepbluCosmiq:    {"deepbluCosmiq", wireDeepbluCosmiq},
	FamilyOceansS1:         {"oceansS1", wireOceansS1},
	FamilyMcLeanExtreme:    {"mcleanExtreme", wireMcLeanExtreme},
	FamilyDivesoftFreedom:  {"divesoftFreedom", wireDivesoftFreedom},
	FamilyCressiGoa:        {"cressiGoa", wireCressiGoa},
	FamilyDiveSystemIDive:  {"diveSystem", wireDiveSystemIDive},
}

// Families returns every known family in declaration order. FamilyNull is not included.
func Families() []Family {
	out := make([]Family, 0, len(families))
	for f := FamilySuuntoEonSteel; f <= FamilyDiveSystemIDive; f++ {
		out = append(out, f)
	}
	return out
}

// Known reports whether f is one of the supported families.
func (f Family) Known() bool {
	_, ok := families[f]
	return ok
}

// Wire returns the driver-level family constant. FamilyNull and unknown values map to zero.
func (f Family) Wire() uint32 {
	if info, ok := families[f]; ok {
		return info.wire
	}
	return wireNull
}

// FamilyFromWire maps a driver-level family constant back to a Family.
func FamilyFromWire(wire uint32) (Family, bool) {
	for f, info := range families {
		if info.wire == wire {
			return f, true
		}
	}
	return FamilyNull, false
}

func (f Family) String() string {
	if info, ok := families[f]; ok {
		return info.name
	}
	if f == FamilyNull {
		return "null"
	}
	return fmt.Sprintf("Family(%d)", int(f))
}

// ParseFamily accepts the names produced by Family.String, ignoring case.
func ParseFamily(name string) (Family, error) {
	if strings.EqualFold(name, "null") {
		return FamilyNull, nil
	}
	for f, info := range families {
		if strings.EqualFold(info.name, name) {
			return f, nil
		}
	}
	return FamilyNull, fmt.Errorf("descriptor: unknown family '%s'", name)
}

// MarshalText lets families appear by name in YAML and JSON documents.
func (f Family) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *Family) UnmarshalText(text []byte) error {
	parsed, err := ParseFamily(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
