package ddr3

// A Mapper decomposes block-aligned addresses into DDR3 address vectors.
// Bits are peeled from the low end in column, channel, bank, rank order,
// leaving the row as the highest bits, so that consecutive blocks stream
// through a row before moving to the next bank.
type Mapper struct {
	NumChannels int
	NumRanks    int
	NumBanks    int
	NumRows     int
	NumColumns  int
	BlockSize   int
}

// MakeMapper creates a mapper with a small single-channel geometry.
func MakeMapper() Mapper {
	return Mapper{
		NumChannels: 1,
		NumRanks:    2,
		NumBanks:    8,
		NumRows:     32768,
		NumColumns:  1024,
		BlockSize:   64,
	}
}

// Map returns the address vector of addr, indexed by the Level* constants.
func (m Mapper) Map(addr uint64) []int {
	tmp := addr / uint64(m.BlockSize)

	column := int(tmp % uint64(m.NumColumns))
	tmp /= uint64(m.NumColumns)
	channel := int(tmp % uint64(m.NumChannels))
	tmp /= uint64(m.NumChannels)
	bank := int(tmp % uint64(m.NumBanks))
	tmp /= uint64(m.NumBanks)
	rank := int(tmp % uint64(m.NumRanks))
	tmp /= uint64(m.NumRanks)
	row := int(tmp % uint64(m.NumRows))

	vec := make([]int, numLevels)
	vec[LevelChannel] = channel
	vec[LevelRank] = rank
	vec[LevelBank] = bank
	vec[LevelRow] = row
	vec[LevelColumn] = column

	return vec
}
