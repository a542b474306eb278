// AccessMate - Accessible Place Recommendations
// Copyright 2026 TudorG03
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TudorG03/accessmate-sub003

package geo

import (
	"math"
	"testing"
)

func TestHaversineKnownDistances(t *testing.T) {
	tests := []struct {
		name   string
		a, b   Point
		meters float64
		tol    float64
	}{
		{
			name:   "same point",
			a:      Point{Lat: 37.78, Lng: -122.43},
			b:      Point{Lat: 37.78, Lng: -122.43},
			meters: 0,
			tol:    0.001,
		},
		{
			name: "san francisco to oakland",
			a:    Point{Lat: 37.7749, Lng: -122.4194},
			b:    Point{Lat: 37.8044, Lng: -122.2712},
			// ~13.5km straight line
			meters: 13500,
			tol:    500,
		},
		{
			name:   "one degree of latitude",
			a:      Point{Lat: 0, Lng: 0},
			b:      Point{Lat: 1, Lng: 0},
			meters: 111195,
			tol:    200,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Haversine(tt.a, tt.b)
			if math.Abs(got-tt.meters) > tt.tol {
				t.Errorf("Haversine() = %.1f, want %.1f ± %.1f", got, tt.meters, tt.tol)
			}
		})
	}
}

func TestHaversineSymmetric(t *testing.T) {
	a := Point{Lat: 37.78, Lng: -122.43}
	b := Point{Lat: 40.71, Lng: -74.0}

	if Haversine(a, b) != Haversine(b, a) {
		t.Error("Haversine should be symmetric")
	}
}

func TestPointValid(t *testing.T) {
	tests := []struct {
		name  string
		p     Point
		valid bool
	}{
		{"origin", Point{0, 0}, true},
		{"san francisco", Point{37.78, -122.43}, true},
		{"north pole", Point{90, 0}, true},
		{"lat too high", Point{90.1, 0}, false},
		{"lat too low", Point{-90.1, 0}, false},
		{"lng too high", Point{0, 180.1}, false},
		{"lng too low", Point{0, -180.1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.Valid(); got != tt.valid {
				t.Errorf("Valid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestNormalizeLng(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{180, 180},
		{-180, -180},
		{190, -170},
		{-190, 170},
		{360, 0},
	}

	for _, tt := range tests {
		if got := NormalizeLng(tt.in); got != tt.want {
			t.Errorf("NormalizeLng(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestBucketCoordDeterministic(t *testing.T) {
	// Nearby coordinates in the same cell map to the same bucket.
	const cell = 0.005

	a := BucketCoord(37.7801, cell)
	b := BucketCoord(37.7803, cell)
	if a != b {
		t.Errorf("coordinates in the same cell bucketed differently: %d vs %d", a, b)
	}

	// Coordinates a full cell apart map to different buckets.
	c := BucketCoord(37.7801+cell, cell)
	if a == c {
		t.Error("coordinates a full cell apart share a bucket")
	}

	// Negative coordinates floor toward negative infinity, keeping cells disjoint.
	if BucketCoord(-0.0001, cell) != -1 {
		t.Errorf("BucketCoord(-0.0001) = %d, want -1", BucketCoord(-0.0001, cell))
	}
}
