package descriptor

// knownServiceUUIDs are the GATT services dive computers expose for log download. Scanners use
// them to pick dive computers out of nearby advertisements.
var knownServiceUUIDs = []string{
	"0000fefb-0000-1000-8000-00805f9b34fb", // Heinrichs Weikamp, Telit/Stollmann module
	"2456e1b9-26e2-8f83-e744-f34f01e9d701", // Heinrichs Weikamp, u-blox module
	"544e326b-5b72-c6b0-1c46-41c1bc448118", // Mares BlueLink Pro
	"6e400001-b5a3-f393-e0a9-e50e24dcca9e", // Nordic UART
	"98ae7120-e62e-11e3-badd-0002a5d5c51b", // Suunto EON Steel/Core
	"cb3c4555-d670-4670-bc20-b61dbc851e9a", // Pelagic i770R/i200C
	"ca7b0001-f785-4c38-b599-c7c5fbadb034", // Pelagic i330R/DSX
	"fdcdeaaa-295d-470e-bf15-04217b7aa0a0", // Scubapro G2/G3
	"fe25c237-0ece-443c-b0aa-e02033e7029d", // Shearwater
	"0000fcef-0000-1000-8000-00805f9b34fb", // Divesoft Freedom
}

// KnownServiceUUIDs returns the 128-bit service UUIDs of supported dive computers in canonical
// dashed form.
func KnownServiceUUIDs() []string {
	out := make([]string, len(knownServiceUUIDs))
	copy(out, knownServiceUUIDs)
	return out
}
