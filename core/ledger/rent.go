package ledger

// AccountStorageOverhead is the number of bytes charged for every account on
// top of its data length.
const AccountStorageOverhead = 128

// Rent holds the parameters used to decide whether an account may persist
// indefinitely.
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionThreshold  float64
}

// DefaultRent mirrors the mainnet parameters: 3480 lamports per byte-year and
// a two-year exemption threshold.
func DefaultRent() Rent {
	return Rent{LamportsPerByteYear: 3480, ExemptionThreshold: 2.0}
}

// MinimumBalance returns the lamports required for an account holding size
// bytes of data to be rent exempt.
func (r Rent) MinimumBalance(size int) uint64 {
	if size < 0 {
		size = 0
	}
	bytes := uint64(AccountStorageOverhead + size)
	return uint64(float64(bytes*r.LamportsPerByteYear) * r.ExemptionThreshold)
}

// IsExempt reports whether lamports cover the exemption minimum for size.
func (r Rent) IsExempt(lamports uint64, size int) bool {
	return lamports >= r.MinimumBalance(size)
}
