package model

import "fmt"

// ContractSpec describes a tradable instrument.
type ContractSpec struct {
	Symbol    string
	Venue     string
	Size      float64
	PriceTick float64

	// NativeStop marks venues that accept conditional orders directly,
	// so the runtime does not need to simulate them client-side.
	NativeStop bool
}

// ContractRegistry stores venue and contract mappings.
type ContractRegistry struct {
	venues    []string
	contracts []ContractSpec

	venueByName      map[string]int
	contractBySymbol map[string]int
}

// NewContractRegistry creates an empty registry.
func NewContractRegistry() *ContractRegistry {
	return &ContractRegistry{
		venueByName:      make(map[string]int),
		contractBySymbol: make(map[string]int),
	}
}

// AddVenue registers a venue name.
func (r *ContractRegistry) AddVenue(name string) error {
	if name == "" {
		return fmt.Errorf("venue name is empty")
	}
	if _, ok := r.venueByName[name]; ok {
		return fmt.Errorf("venue already exists: %s", name)
	}
	r.venueByName[name] = len(r.venues)
	r.venues = append(r.venues, name)
	return nil
}

// AddContract registers a contract under a known venue.
func (r *ContractRegistry) AddContract(spec ContractSpec) error {
	if spec.Symbol == "" {
		return fmt.Errorf("contract symbol is empty")
	}
	if _, ok := r.venueByName[spec.Venue]; !ok {
		return fmt.Errorf("venue not found: %s", spec.Venue)
	}
	if _, ok := r.contractBySymbol[spec.Symbol]; ok {
		return fmt.Errorf("contract already exists: %s", spec.Symbol)
	}
	if spec.Size <= 0 {
		spec.Size = 1
	}
	r.contractBySymbol[spec.Symbol] = len(r.contracts)
	r.contracts = append(r.contracts, spec)
	return nil
}

// Contract returns the spec for a symbol.
func (r *ContractRegistry) Contract(symbol string) (ContractSpec, bool) {
	idx, ok := r.contractBySymbol[symbol]
	if !ok {
		return ContractSpec{}, false
	}
	return r.contracts[idx], true
}

// Venues returns registered venue names in insertion order.
func (r *ContractRegistry) Venues() []string {
	out := make([]string, len(r.venues))
	copy(out, r.venues)
	return out
}

// HasVenue reports whether a venue is registered.
func (r *ContractRegistry) HasVenue(name string) bool {
	_, ok := r.venueByName[name]
	return ok
}

// ContractCount returns the number of contracts in the registry.
func (r *ContractRegistry) ContractCount() int {
	return len(r.contracts)
}

// ContractAt returns the contract by zero-based index.
func (r *ContractRegistry) ContractAt(index int) (ContractSpec, bool) {
	if index < 0 || index >= len(r.contracts) {
		return ContractSpec{}, false
	}
	return r.contracts[index], true
}
