package chainspec

// ForChainID returns the canonical Spec for well-known chain IDs, falling
// back to a permissive GenericSpec for anything else (§4.L: "Generic... L1
// superset, permissive validation for unknown chains").
func ForChainID(chainID uint64) Spec {
	switch chainID {
	case 1:
		return NewL1Spec()
	case 10, 8453, 7777777:
		return NewOPSpec(chainID)
	default:
		return NewGenericSpec(chainID)
	}
}
