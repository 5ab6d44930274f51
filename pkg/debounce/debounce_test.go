package debounce_test

import (
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/grove/pkg/debounce"
)

var _ = Describe("Scheduler", func() {
	var s *debounce.Scheduler

	BeforeEach(func() {
		s = debounce.New(debounce.Config{Window: 30 * time.Millisecond})
		DeferCleanup(s.Stop)
	})

	It("defaults the window", func() {
		Expect(debounce.New(debounce.Config{}).Window()).To(Equal(debounce.DefaultWindow))
	})

	It("runs a task after the window", func() {
		var ran atomic.Int32
		Expect(s.Schedule("k", func() { ran.Add(1) })).To(BeTrue())
		Expect(s.Pending("k")).To(BeTrue())

		Eventually(ran.Load).Should(Equal(int32(1)))
		Expect(s.Pending("k")).To(BeFalse())
	})

	It("coalesces a burst into the last task", func() {
		var runs atomic.Int32
		var last atomic.Int32

		for i := 1; i <= 10; i++ {
			s.Schedule("k", func() {
				runs.Add(1)
				last.Store(int32(i))
			})
			time.Sleep(2 * time.Millisecond)
		}

		Eventually(runs.Load).Should(Equal(int32(1)))
		Consistently(runs.Load, 100*time.Millisecond).Should(Equal(int32(1)))
		Expect(last.Load()).To(Equal(int32(10)))
	})

	It("keeps keys independent", func() {
		var a, b atomic.Int32
		s.Schedule("a", func() { a.Add(1) })
		s.Schedule("b", func() { b.Add(1) })

		Eventually(a.Load).Should(Equal(int32(1)))
		Eventually(b.Load).Should(Equal(int32(1)))
	})

	It("cancels pending tasks", func() {
		var ran atomic.Int32
		s.Schedule("k", func() { ran.Add(1) })

		Expect(s.Cancel("k")).To(BeTrue())
		Expect(s.Cancel("k")).To(BeFalse())
		Consistently(ran.Load, 80*time.Millisecond).Should(BeZero())
	})

	It("refuses work after Stop", func() {
		var ran atomic.Int32
		s.Schedule("k", func() { ran.Add(1) })
		s.Stop()

		Expect(s.Schedule("k", func() { ran.Add(1) })).To(BeFalse())
		Consistently(ran.Load, 80*time.Millisecond).Should(BeZero())
	})
})
