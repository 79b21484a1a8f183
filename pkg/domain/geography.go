package domain

// GeoLevel is the precision of a geography reference within the party's
// territorial hierarchy. Ward is the leaf level.
type GeoLevel string

const (
	GeoLevelCountry      GeoLevel = "country"
	GeoLevelRegion       GeoLevel = "region"
	GeoLevelConstituency GeoLevel = "constituency"
	GeoLevelWard         GeoLevel = "ward"
)

var geoLevelRank = map[GeoLevel]int{
	GeoLevelCountry:      0,
	GeoLevelRegion:       1,
	GeoLevelConstituency: 2,
	GeoLevelWard:         3,
}

// Known reports whether l is a level in the hierarchy.
func (l GeoLevel) Known() bool {
	_, ok := geoLevelRank[l]
	return ok
}

// AtOrBelow reports whether l is at least as precise as min.
func (l GeoLevel) AtOrBelow(min GeoLevel) bool {
	lr, ok := geoLevelRank[l]
	if !ok {
		return false
	}
	mr, ok := geoLevelRank[min]
	if !ok {
		return false
	}
	return lr >= mr
}

// IsLeaf reports whether l is the finest level. Activation requires leaf
// precision so the member lands in exactly one ward.
func (l GeoLevel) IsLeaf() bool { return l == GeoLevelWard }
