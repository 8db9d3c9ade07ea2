package dram

// An AddressMapper decomposes a flat physical address into the address
// vector of a DRAM standard's levels.
type AddressMapper interface {
	Map(addr uint64) []int
}
