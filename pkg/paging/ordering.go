package paging

// Ordering is the capability the engine needs from ids and keys: a total
// order and a distance. Distance must be symmetric and non-negative.
type Ordering[T any] interface {
	Compare(a, b T) int
	Distance(a, b T) float64
}

// Number is the set of built-in numeric types Numeric can order.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Numeric orders numbers naturally; distance is the absolute difference.
type Numeric[T Number] struct{}

// Compare implements Ordering.
func (Numeric[T]) Compare(a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Distance implements Ordering.
func (Numeric[T]) Distance(a, b T) float64 {
	// subtract in the larger-minus-smaller direction so unsigned types never wrap
	if a < b {
		return float64(b - a)
	}
	return float64(a - b)
}

// OrderingFunc builds an Ordering from two functions, for cursors and other
// non-numeric identifiers.
type OrderingFunc[T any] struct {
	CompareFn  func(a, b T) int
	DistanceFn func(a, b T) float64
}

// Compare implements Ordering.
func (o OrderingFunc[T]) Compare(a, b T) int {
	return o.CompareFn(a, b)
}

// Distance implements Ordering. Without a DistanceFn, unequal values are one
// step apart.
func (o OrderingFunc[T]) Distance(a, b T) float64 {
	if o.DistanceFn != nil {
		return o.DistanceFn(a, b)
	}
	if o.CompareFn(a, b) == 0 {
		return 0
	}
	return 1
}

// Min returns the smaller of a and b under ord.
func Min[T any](ord Ordering[T], a, b T) T {
	if ord.Compare(b, a) < 0 {
		return b
	}
	return a
}

// Max returns the larger of a and b under ord.
func Max[T any](ord Ordering[T], a, b T) T {
	if ord.Compare(b, a) > 0 {
		return b
	}
	return a
}
