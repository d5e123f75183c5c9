package motion_test

import (
	"context"
	"math"
	"time"

	"github.com/golang/geo/r2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"

	"github.com/san-kum/motionlab/internal/control"
	"github.com/san-kum/motionlab/internal/geom"
	"github.com/san-kum/motionlab/internal/motion"
)

var _ = Describe("Chassis", func() {
	var (
		drive   *lockstep
		rec     *recorder
		chassis *motion.Chassis
		ctx     context.Context
		cancel  context.CancelFunc
	)

	newChassis := func(settings motion.Settings) {
		chassis = motion.NewChassis(drive, drive, settings,
			motion.WithWriteInterval(time.Millisecond),
			motion.WithObserver(rec))
	}

	params := func(mutate func(*motion.MoveToPointParameters)) *motion.MoveToPointParameters {
		p := motion.DefaultMoveToPointParameters()
		mutate(&p)
		return &p
	}

	BeforeEach(func() {
		drive = newLockstep(12, 50)
		rec = &recorder{}
		ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		newChassis(proportional(0.1, 0.5))
	})

	AfterEach(func() {
		chassis.Cancel()
		Expect(chassis.WaitUntilComplete(ctx)).To(Succeed())
		cancel()
	})

	Describe("MoveToPoint", func() {
		It("exits on the first tick when already at the target", func() {
			chassis.SetPose(geom.NewPose(3, 4, 0.7))

			err := chassis.MoveToPoint(ctx, r2.Point{X: 3, Y: 4}, motion.MoveOptions{
				Params:   params(func(p *motion.MoveToPointParameters) { p.EarlyExitRange = 0.1 }),
				Blocking: true,
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Ticks()).To(BeEmpty())
			Expect(rec.Exits()).To(HaveLen(1))
			Expect(rec.Exits()[0].reason).To(Equal(motion.ExitEarly))
			left, right := drive.plant.Command()
			Expect(left).To(BeZero())
			Expect(right).To(BeZero())
			Expect(chassis.IsInMotion()).To(BeFalse())
		})

		It("drives straight with equal sides and a shrinking error", func() {
			err := chassis.MoveToPoint(ctx, r2.Point{X: 10}, motion.MoveOptions{
				Timeout:  5 * time.Second,
				Params:   params(func(p *motion.MoveToPointParameters) { p.EarlyExitRange = 0.5 }),
				Blocking: true,
			})
			Expect(err).NotTo(HaveOccurred())

			ticks := rec.Ticks()
			Expect(len(ticks)).To(BeNumerically(">", 10))
			for i, tick := range ticks {
				Expect(tick.Left).To(Equal(tick.Right), "tick %d", i)
				Expect(tick.Left).To(BeNumerically(">", 0), "tick %d", i)
				if i > 0 {
					Expect(tick.LinearError).To(BeNumerically("<", ticks[i-1].LinearError), "tick %d", i)
				}
			}
			Expect(rec.Exits()[0].reason).To(Equal(motion.ExitEarly))

			pose := drive.plant.Pose()
			Expect(pose.X).To(BeNumerically("~", 10, 0.5))
			Expect(pose.Y).To(BeNumerically("~", 0, 1e-9))
		})

		It("caps the linear speed once near the target", func() {
			newChassis(proportional(1, 0.5))
			err := chassis.MoveToPoint(ctx, r2.Point{X: 10}, motion.MoveOptions{
				Timeout:  5 * time.Second,
				Params:   params(func(p *motion.MoveToPointParameters) { p.EarlyExitRange = 0.5 }),
				Blocking: true,
			})
			Expect(err).NotTo(HaveOccurred())

			sawFull, sawNear := false, false
			for _, tick := range rec.Ticks() {
				if tick.Near {
					sawNear = true
					Expect(math.Abs(tick.LinearOutput)).To(BeNumerically("<=", motion.DefaultNearMaxSpeed))
				} else if tick.LinearOutput == 1 {
					sawFull = true
				}
			}
			Expect(sawFull).To(BeTrue())
			Expect(sawNear).To(BeTrue())
		})

		It("snaps small outputs up to the minimum speed", func() {
			newChassis(proportional(0.01, 0))
			err := chassis.MoveToPoint(ctx, r2.Point{X: 10}, motion.MoveOptions{
				Timeout: 5 * time.Second,
				Params: params(func(p *motion.MoveToPointParameters) {
					p.MinLinearSpeed = 0.3
					p.EarlyExitRange = 0.5
				}),
				Blocking: true,
			})
			Expect(err).NotTo(HaveOccurred())

			for _, tick := range rec.Ticks() {
				Expect(tick.LinearOutput).To(BeNumerically("~", 0.3, 1e-12))
			}
		})

		It("keeps outputs within the slew limits", func() {
			err := chassis.MoveToPoint(ctx, r2.Point{X: 10, Y: 5}, motion.MoveOptions{
				Timeout: 5 * time.Second,
				Params: params(func(p *motion.MoveToPointParameters) {
					p.EarlyExitRange = 0.5
					p.LinearSlew = 0.05
					p.AngularSlew = 0.02
				}),
				Blocking: true,
			})
			Expect(err).NotTo(HaveOccurred())

			var prevLinear, prevAngular float64
			for i, tick := range rec.Ticks() {
				Expect(math.Abs(tick.LinearOutput-prevLinear)).To(BeNumerically("<=", 0.05+1e-12), "tick %d", i)
				Expect(math.Abs(tick.AngularOutput-prevAngular)).To(BeNumerically("<=", 0.02+1e-12), "tick %d", i)
				prevLinear, prevAngular = tick.LinearOutput, tick.AngularOutput
			}
		})

		It("settles through the tolerance group once near", func() {
			newChassis(proportional(0.1, 0.5, control.Tolerance{Band: 1, Samples: 3}))
			err := chassis.MoveToPoint(ctx, r2.Point{X: 10}, motion.MoveOptions{
				Timeout:  5 * time.Second,
				Blocking: true,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Exits()[0].reason).To(Equal(motion.ExitSettled))
			Expect(drive.plant.Pose().X).To(BeNumerically("~", 10, 1))
		})

		It("stops at the timeout", func() {
			err := chassis.MoveToPoint(ctx, r2.Point{X: 1e6}, motion.MoveOptions{
				Timeout:  20 * time.Millisecond,
				Blocking: true,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Exits()[0].reason).To(Equal(motion.ExitTimeout))
		})

		It("reports drivetrain failures and frees the slot", func() {
			drive.failWith = errStalled
			err := chassis.MoveToPoint(ctx, r2.Point{X: 10}, motion.MoveOptions{Blocking: true})
			Expect(errors.Is(err, errStalled)).To(BeTrue())
			Expect(rec.Exits()[0].reason).To(Equal(motion.ExitDriveError))
			Expect(chassis.IsInMotion()).To(BeFalse())

			drive.failWith = nil
			err = chassis.MoveToPoint(ctx, r2.Point{X: 10}, motion.MoveOptions{
				Params:   params(func(p *motion.MoveToPointParameters) { p.EarlyExitRange = 0.5 }),
				Timeout:  5 * time.Second,
				Blocking: true,
			})
			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects settings without controllers", func() {
			err := chassis.MoveToPoint(ctx, r2.Point{X: 1}, motion.MoveOptions{Settings: &motion.Settings{}})
			Expect(errors.Is(err, motion.ErrMissingController)).To(BeTrue())
			Expect(chassis.IsInMotion()).To(BeFalse())
		})
	})

	Describe("async motions", func() {
		It("returns once the motion is running", func() {
			Expect(chassis.MoveToPoint(ctx, r2.Point{X: 1e6}, motion.MoveOptions{})).To(Succeed())
			Expect(chassis.IsInMotion()).To(BeTrue())
			_, ok := chassis.DistanceTraveled()
			Expect(ok).To(BeTrue())
		})

		It("never runs two motions at once", func() {
			opts := motion.MoveOptions{
				Timeout: 5 * time.Second,
				Params:  params(func(p *motion.MoveToPointParameters) { p.EarlyExitRange = 0.5 }),
			}
			Expect(chassis.MoveToPoint(ctx, r2.Point{X: 10}, opts)).To(Succeed())
			Expect(chassis.MoveToPoint(ctx, r2.Point{X: 20}, opts)).To(Succeed())
			Expect(chassis.WaitUntilComplete(ctx)).To(Succeed())

			exits := rec.Exits()
			Expect(exits).To(HaveLen(2))
			Expect(exits[0].seq).To(BeNumerically("<", exits[1].seq))
			for i, tick := range rec.Ticks() {
				if i < exits[0].after {
					Expect(tick.Seq).To(Equal(exits[0].seq), "tick %d", i)
				} else {
					Expect(tick.Seq).To(Equal(exits[1].seq), "tick %d", i)
				}
			}
			Expect(drive.overlap.Load()).To(BeFalse())
			Expect(drive.plant.Pose().X).To(BeNumerically("~", 20, 0.5))
		})

		It("cancels within a few ticks", func() {
			Expect(chassis.MoveToPoint(ctx, r2.Point{X: 1e6}, motion.MoveOptions{})).To(Succeed())
			Eventually(func() int { return len(rec.Ticks()) }).Should(BeNumerically(">", 3))

			chassis.Cancel()
			Expect(chassis.WaitUntilComplete(ctx)).To(Succeed())
			Expect(chassis.IsInMotion()).To(BeFalse())
			Expect(rec.Exits()[0].reason).To(Equal(motion.ExitCancelled))
			_, ok := chassis.DistanceTraveled()
			Expect(ok).To(BeFalse())
		})

		It("waits until a distance has been covered", func() {
			Expect(chassis.MoveToPoint(ctx, r2.Point{X: 100}, motion.MoveOptions{})).To(Succeed())
			Expect(chassis.WaitUntil(ctx, 10)).To(Succeed())

			traveled, ok := chassis.DistanceTraveled()
			if ok {
				Expect(traveled).To(BeNumerically(">=", 10))
			}
			Expect(drive.plant.Pose().X).To(BeNumerically(">=", 10))
		})
	})

	Describe("drive after exit", func() {
		expectStopped := func() {
			left, right := drive.plant.Command()
			Expect(left).To(BeZero())
			Expect(right).To(BeZero())
		}

		It("stops the drive after an early exit", func() {
			err := chassis.MoveToPoint(ctx, r2.Point{X: 10}, motion.MoveOptions{
				Timeout: 5 * time.Second,
				Params: params(func(p *motion.MoveToPointParameters) {
					p.MinLinearSpeed = 0.3
					p.EarlyExitRange = 0.5
				}),
				Blocking: true,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Exits()[0].reason).To(Equal(motion.ExitEarly))
			expectStopped()
		})

		It("stops the drive after a timeout", func() {
			err := chassis.MoveToPoint(ctx, r2.Point{X: 1e6}, motion.MoveOptions{
				Timeout:  20 * time.Millisecond,
				Blocking: true,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Exits()[0].reason).To(Equal(motion.ExitTimeout))
			expectStopped()
		})

		It("stops the drive after a cancel", func() {
			Expect(chassis.MoveToPoint(ctx, r2.Point{X: 1e6}, motion.MoveOptions{})).To(Succeed())
			Eventually(func() int { return len(rec.Ticks()) }).Should(BeNumerically(">", 3))

			chassis.Cancel()
			Expect(chassis.WaitUntilComplete(ctx)).To(Succeed())
			Expect(rec.Exits()[0].reason).To(Equal(motion.ExitCancelled))
			expectStopped()
		})

		It("stops the drive when a blocking motion's context ends", func() {
			short, stop := context.WithTimeout(ctx, 20*time.Millisecond)
			defer stop()
			err := chassis.MoveToPoint(short, r2.Point{X: 1e6}, motion.MoveOptions{Blocking: true})
			Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())
			Expect(rec.Exits()[0].reason).To(Equal(motion.ExitCancelled))
			expectStopped()
		})
	})

	Describe("MoveRelative", func() {
		It("drives backwards for a negative distance", func() {
			chassis.SetPose(geom.NewPose(0, 0, math.Pi/2))

			err := chassis.MoveRelative(ctx, -10, motion.MoveRelativeOptions{
				Timeout: 5 * time.Second,
				Params: &motion.MoveRelativeParameters{
					MaxLinearSpeed: 1,
					EarlyExitRange: 0.5,
				},
				Blocking: true,
			})
			Expect(err).NotTo(HaveOccurred())

			ticks := rec.Ticks()
			Expect(ticks).NotTo(BeEmpty())
			Expect(ticks[0].Target.X).To(BeNumerically("~", 0, 1e-9))
			Expect(ticks[0].Target.Y).To(BeNumerically("~", -10, 1e-9))
			Expect(ticks[0].Left).To(BeNumerically("<", 0))
			Expect(ticks[0].Right).To(BeNumerically("<", 0))

			pose := drive.plant.Pose()
			Expect(pose.Y).To(BeNumerically("~", -10, 0.6))
			Expect(pose.Heading).To(BeNumerically("~", math.Pi/2, 0.05))
		})

		It("starts after the running motion finishes", func() {
			opts := motion.MoveOptions{
				Timeout: 5 * time.Second,
				Params:  params(func(p *motion.MoveToPointParameters) { p.EarlyExitRange = 0.5 }),
			}
			Expect(chassis.MoveToPoint(ctx, r2.Point{X: 10}, opts)).To(Succeed())
			err := chassis.MoveRelative(ctx, 5, motion.MoveRelativeOptions{
				Timeout:  5 * time.Second,
				Params:   &motion.MoveRelativeParameters{MaxLinearSpeed: 1, EarlyExitRange: 0.5},
				Blocking: true,
			})
			Expect(err).NotTo(HaveOccurred())

			exits := rec.Exits()
			Expect(exits).To(HaveLen(2))
			second := rec.Ticks()[exits[0].after]
			Expect(second.Target.X).To(BeNumerically(">", 14))
		})
	})
})
