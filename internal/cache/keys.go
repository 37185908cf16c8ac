package cache

import "fmt"

const (
	KeyAllStops = "stops:all"
	KeyVersion  = "version"
)

func KeyStopsOnTrip(tripID string) string {
	return fmt.Sprintf("trip:%s:stops", tripID)
}

func KeyTripDetail(tripID string) string {
	return fmt.Sprintf("trip:%s:detail", tripID)
}
