package physics_test

import (
	"context"
	"math"
	"testing"

	"github.com/pkg/errors"

	"github.com/san-kum/motionlab/internal/motion"
	"github.com/san-kum/motionlab/internal/physics"
	"github.com/san-kum/motionlab/internal/tracking"
)

func TestSimIMUClockwise(t *testing.T) {
	plant := physics.NewDiffDrive(10, 10, 0)
	imu := physics.NewSimIMU(plant, physics.IMUModel{}, 1)
	if err := imu.Calibrate(context.Background()); err != nil {
		t.Fatal(err)
	}

	_ = plant.SetVelocityFraction(motion.Left, -0.5)
	_ = plant.SetVelocityFraction(motion.Right, 0.5)
	for i := 0; i < 10; i++ {
		plant.Step(0.01)
	}

	heading, err := imu.Heading()
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(heading+plant.Heading()) > 1e-12 {
		t.Errorf("expected %f, got %f", -plant.Heading(), heading)
	}
}

func TestSimIMUFailsCalibration(t *testing.T) {
	plant := physics.NewDiffDrive(10, 10, 0)
	imu := physics.NewSimIMU(plant, physics.IMUModel{FailCalibrations: 1}, 1)
	if err := imu.Calibrate(context.Background()); !errors.Is(err, physics.ErrCalibrationFailed) {
		t.Errorf("expected calibration failure, got %v", err)
	}
	if err := imu.Calibrate(context.Background()); err != nil {
		t.Errorf("expected second calibration to succeed, got %v", err)
	}
}

func TestSimIMUDropout(t *testing.T) {
	plant := physics.NewDiffDrive(10, 10, 0)
	imu := physics.NewSimIMU(plant, physics.IMUModel{Dropout: 1}, 1)
	if _, err := imu.Heading(); !errors.Is(err, physics.ErrDropout) {
		t.Errorf("expected dropout, got %v", err)
	}
	wheel := physics.NewSimWheel(plant, 1, true, physics.WheelModel{Dropout: 1}, 1)
	if _, ok := wheel.Distance(); ok {
		t.Error("expected wheel dropout")
	}
}

// The tracker fed by ideal simulated sensors reproduces the plant's path.
func TestTrackerFollowsPlant(t *testing.T) {
	plant := physics.NewDiffDrive(12, 20, 0)
	imu := physics.NewSimIMU(plant, physics.IMUModel{}, 1)
	sensors := tracking.NewSensorSet(
		[]tracking.Inertial{{Sensor: imu, Scalar: 1, Weight: 1}},
		[]tracking.TrackingWheel{physics.NewSimWheel(plant, 2, false, physics.WheelModel{}, 2)},
		[]tracking.TrackingWheel{
			physics.NewSimWheel(plant, -5, true, physics.WheelModel{}, 3),
			physics.NewSimWheel(plant, 5, true, physics.WheelModel{}, 4),
		},
		1, 1, 1,
	)
	tracker := tracking.New(sensors)
	tracker.Update()

	_ = plant.SetVelocityFraction(motion.Left, 0.4)
	_ = plant.SetVelocityFraction(motion.Right, 0.7)
	for i := 0; i < 300; i++ {
		plant.Step(0.01)
		tracker.Update()
	}

	got, want := tracker.Position(), plant.Pose()
	if got.DistanceTo(want) > 1e-6 || math.Abs(got.Heading-want.Heading) > 1e-9 {
		t.Errorf("tracker drifted: got %v, want %v", got, want)
	}
	if !got.IsValid() {
		t.Errorf("invalid pose %v", got)
	}
}
