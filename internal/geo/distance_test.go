package geo

import (
	"testing"

	"social-app/internal/models"
	"social-app/pkg/testutil"
)

func loc(lon, lat float64) models.Location {
	return models.Location{Longitude: lon, Latitude: lat}
}

func TestDistanceKnownValues(t *testing.T) {
	cases := []struct {
		name string
		a, b models.Location
		want float64
	}{
		{"nearby points", loc(121.5, 31.2), loc(121.5001, 31.2001), 0.01},
		{"shanghai to beijing", loc(121.47, 31.23), loc(116.40, 39.90), 1067.08},
		{"one degree of latitude", loc(0, 0), loc(0, 1), 111.19},
		{"same point", loc(10, 10), loc(10, 10), 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			testutil.Assert(t, tc.want, Distance(tc.a, tc.b), "distance")
		})
	}
}

func TestDistanceDeterministic(t *testing.T) {
	first := Distance(loc(121.5, 31.2), loc(121.5001, 31.2001))
	for i := 0; i < 100; i++ {
		testutil.Assert(t, first, Distance(loc(121.5, 31.2), loc(121.5001, 31.2001)), "repeat call")
	}
}

func TestDistanceSymmetric(t *testing.T) {
	points := []models.Location{
		loc(121.5, 31.2), loc(-73.98, 40.75), loc(2.35, 48.86), loc(151.21, -33.87), loc(0, 0), loc(-179.9, 89.9),
	}
	for _, a := range points {
		for _, b := range points {
			testutil.Assert(t, Distance(a, b), Distance(b, a), "symmetry")
		}
	}
}

func TestBetweenRequiresBothSides(t *testing.T) {
	a := loc(121.5, 31.2)
	b := loc(0, 0)

	testutil.Assert(t, true, Between(&a, nil) == nil, "missing right side")
	testutil.Assert(t, true, Between(nil, &b) == nil, "missing left side")

	d := Between(&a, &b)
	testutil.Assert(t, true, d != nil, "both present")
	testutil.Assert(t, Distance(a, b), *d, "matches Distance")
}
