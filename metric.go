package aodvv2

// MetricType selects how route cost is measured.
type MetricType uint8

const (
	// MetricHopCount counts forwarding hops. It is the only metric type
	// currently assigned.
	MetricHopCount MetricType = 3
)

// MetricMax returns the largest value the given metric can reach, which
// doubles as the initial hop limit for route requests. Unknown metric types
// report 0, making any message built with them immediately undeliverable.
func MetricMax(t MetricType) uint8 {
	switch t {
	case MetricHopCount:
		return 255
	default:
		return 0
	}
}
