package models

const (
	DefaultTake = 10
	MaxTake     = 100
)

// NormalizePage clamps skip/take to the list defaults.
func NormalizePage(skip, take int) (int, int) {
	if skip < 0 {
		skip = 0
	}
	if take <= 0 {
		take = DefaultTake
	}
	if take > MaxTake {
		take = MaxTake
	}
	return skip, take
}
