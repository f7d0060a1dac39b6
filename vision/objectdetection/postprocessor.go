package objectdetection

// Postprocessor defines a function that filters/modifies on an incoming array of Detections.
type Postprocessor func([]Detection) []Detection

// NewAreaFilter returns a function that filters out detections below a certain area.
func NewAreaFilter(area float64) Postprocessor {
	return func(in []Detection) []Detection {
		out := make([]Detection, 0, len(in))
		for _, d := range in {
			if d.Area() >= area {
				out = append(out, d)
			}
		}
		return out
	}
}

// NewClassFilter returns a function that keeps only detections of the given classes.
func NewClassFilter(classIDs ...int) Postprocessor {
	keep := make(map[int]struct{}, len(classIDs))
	for _, id := range classIDs {
		keep[id] = struct{}{}
	}
	return func(in []Detection) []Detection {
		out := make([]Detection, 0, len(in))
		for _, d := range in {
			if _, ok := keep[d.ClassID]; ok {
				out = append(out, d)
			}
		}
		return out
	}
}

// NewMaxCountFilter returns a function that keeps at most n detections, in order.
func NewMaxCountFilter(n int) Postprocessor {
	return func(in []Detection) []Detection {
		if n < 0 || len(in) <= n {
			return in
		}
		return in[:n]
	}
}

// Chain runs the postprocessors in order.
func Chain(posts ...Postprocessor) Postprocessor {
	return func(in []Detection) []Detection {
		for _, p := range posts {
			if p != nil {
				in = p(in)
			}
		}
		return in
	}
}
