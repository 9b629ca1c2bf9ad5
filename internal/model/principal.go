package model

// Principal is the authenticated caller, identified by wallet address.
type Principal struct {
	Address string
}

func (p Principal) Zero() bool {
	return p.Address == ""
}
