package fulfillment

// TierSelector picks the premium processor for every Modulus-th member id.
// A zero Modulus makes everyone regular.
type TierSelector struct {
	Modulus int64
}

func (t TierSelector) Premium(memberID int64) bool {
	return t.Modulus > 0 && memberID%t.Modulus == 0
}
