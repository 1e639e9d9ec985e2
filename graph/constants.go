package graph

const (
	// Link weight constants
	defaultLinkWeight  = 1.0 // Measured mappings
	identityLinkWeight = 2.0 // Identity mappings pull same-frame clocks into one cluster

	// Default color/label for clock types outside the palette
	defaultClockColor = "rgba(149, 165, 166, 0.3)" // Transparent gray
)

// clockColors keys the node legend by clock type. Approximate variants use a
// washed-out version of their trusted counterpart.
var clockColors = map[string]string{
	"utc":                    "#2980b9",
	"approx_utc":             "rgba(41, 128, 185, 0.5)",
	"exp_global_time":        "#27ae60",
	"approx_exp_global_time": "rgba(39, 174, 96, 0.5)",
	"dev_global_time":        "#e67e22",
	"approx_dev_global_time": "rgba(230, 126, 34, 0.5)",
	"dev_local_time":         "#c0392b",
	"no_time":                "#7f8c8d",
	"inherited":              "#8e44ad",
}

// clockLabels holds legend display names per clock type.
var clockLabels = map[string]string{
	"utc":                    "UTC",
	"approx_utc":             "Approximate UTC",
	"exp_global_time":        "Experiment global",
	"approx_exp_global_time": "Approximate experiment global",
	"dev_global_time":        "Device global",
	"approx_dev_global_time": "Approximate device global",
	"dev_local_time":         "Device local",
	"no_time":                "No time",
	"inherited":              "Inherited",
}
