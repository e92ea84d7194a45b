package types

// Hardfork enumerates the protocol upgrades EDR's chain-spec activation
// tables key gas rules, precompile sets, and tx-type support on (§4.L).
type Hardfork uint8

const (
	Frontier Hardfork = iota
	Homestead
	TangerineWhistle
	SpuriousDragon
	Byzantium
	Constantinople
	Petersburg
	Istanbul
	Berlin
	London
	ArrowGlacier
	GrayGlacier
	Paris
	Shanghai
	Cancun
	Prague
)

func (h Hardfork) String() string {
	names := [...]string{
		"Frontier", "Homestead", "TangerineWhistle", "SpuriousDragon",
		"Byzantium", "Constantinople", "Petersburg", "Istanbul", "Berlin",
		"London", "ArrowGlacier", "GrayGlacier", "Paris", "Shanghai",
		"Cancun", "Prague",
	}
	if int(h) < len(names) {
		return names[h]
	}
	return "Unknown"
}

func (h Hardfork) AtLeast(other Hardfork) bool { return h >= other }
