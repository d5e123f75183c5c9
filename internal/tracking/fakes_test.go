package tracking

import (
	"context"
	"errors"
	"sync"
)

var errSensor = errors.New("sensor unavailable")

type fakeIMU struct {
	mu              sync.Mutex
	heading         float64
	failing         bool
	calibrationErrs []error
	calibrations    int
	zeroed          bool
}

func (f *fakeIMU) Heading() (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return 0, errSensor
	}
	return f.heading, nil
}

func (f *fakeIMU) Calibrate(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calibrations++
	if len(f.calibrationErrs) > 0 {
		err := f.calibrationErrs[0]
		f.calibrationErrs = f.calibrationErrs[1:]
		return err
	}
	return nil
}

func (f *fakeIMU) SetHeading(heading float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heading = heading
	f.zeroed = true
	return nil
}

// turn rotates the fake counter-clockwise; the sensor itself reports
// clockwise-positive headings.
func (f *fakeIMU) turn(ccw float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heading -= ccw
}

func (f *fakeIMU) setFailing(failing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = failing
}

type fakeWheel struct {
	mu       sync.Mutex
	distance float64
	offset   float64
	missing  bool
}

func (f *fakeWheel) Distance() (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missing {
		return 0, false
	}
	return f.distance, true
}

func (f *fakeWheel) Offset() float64 { return f.offset }

func (f *fakeWheel) advance(d float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.distance += d
}

func (f *fakeWheel) setMissing(missing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.missing = missing
}

func wheels(ws ...*fakeWheel) []TrackingWheel {
	out := make([]TrackingWheel, len(ws))
	for i, w := range ws {
		out[i] = w
	}
	return out
}
