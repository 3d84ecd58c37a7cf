package model

import (
	"math"
	"testing"
)

func TestSkyPointingIsValid(t *testing.T) {
	cases := []struct {
		name string
		pt   SkyPointing
		want bool
	}{
		{"equator", SkyPointing{Theta: math.Pi / 2, Phi: 1}, true},
		{"north pole", SkyPointing{Theta: 0, Phi: 0}, true},
		{"south pole", SkyPointing{Theta: math.Pi, Phi: 0}, true},
		{"negative longitude wraps", SkyPointing{Theta: 1, Phi: -0.5}, true},
		{"colatitude below range", SkyPointing{Theta: -0.1, Phi: 0}, false},
		{"colatitude above range", SkyPointing{Theta: math.Pi + 0.1, Phi: 0}, false},
		{"nan colatitude", SkyPointing{Theta: math.NaN(), Phi: 0}, false},
		{"nan longitude", SkyPointing{Theta: 1, Phi: math.NaN()}, false},
		{"infinite longitude", SkyPointing{Theta: 1, Phi: math.Inf(1)}, false},
	}
	for _, tc := range cases {
		if got := tc.pt.IsValid(); got != tc.want {
			t.Errorf("%s: IsValid = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestEffectiveWeight(t *testing.T) {
	if got := (Sample{}).EffectiveWeight(); got != 1 {
		t.Errorf("zero weight: EffectiveWeight = %g, want 1", got)
	}
	if got := (Sample{Weight: 2.5}).EffectiveWeight(); got != 2.5 {
		t.Errorf("explicit weight: EffectiveWeight = %g, want 2.5", got)
	}
}

func TestReasonsStable(t *testing.T) {
	a, b := Reasons(), Reasons()
	if len(a) == 0 {
		t.Fatalf("Reasons returned an empty taxonomy")
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("Reasons order is not stable: %v vs %v", a, b)
		}
	}
}
