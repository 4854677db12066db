package cache

import (
	"bytes"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/wbcache/hooking"
)

var _ = Describe("Cache", func() {
	var (
		store *fakeStore
		c     *Cache
	)

	BeforeEach(func() {
		store = newFakeStore()
		for i, id := range []string{"A", "B", "C", "D", "E"} {
			store.put(id, uint32(100+i))
		}

		var err error
		c, err = New(3, 4, 1, store)
		Expect(err).ToNot(HaveOccurred())
	})

	It("should load on miss and serve later reads from the cache", func() {
		v, err := readUint32(c, "A")
		Expect(err).ToNot(HaveOccurred())
		Expect(v).To(Equal(uint32(100)))

		v, err = readUint32(c, "A")
		Expect(err).ToNot(HaveOccurred())
		Expect(v).To(Equal(uint32(100)))

		Expect(store.loads).To(Equal([]string{"A"}))
		Expect(store.stores).To(BeEmpty())
	})

	It("should advance the clock once per access", func() {
		_, _ = readUint32(c, "A")
		_, _ = readUint32(c, "B")
		Expect(c.Write(key("A"), val(7))).To(Succeed())

		Expect(c.Clock()).To(Equal(uint64(3)))

		lines := c.Lines()
		Expect(lines[0].LastAccess).To(Equal(uint64(3)))
		Expect(lines[1].LastAccess).To(Equal(uint64(2)))
		Expect(lines[2].LastAccess).To(BeZero())
	})

	It("should never hold more lines than its capacity", func() {
		for i := 0; i < 20; i++ {
			id := string(rune('A' + i%5))
			_, err := readUint32(c, id)
			Expect(err).ToNot(HaveOccurred())
			Expect(c.NumOccupied()).To(BeNumerically("<=", 3))
		}
	})

	It("should return the last written value", func() {
		Expect(c.Write(key("B"), val(1))).To(Succeed())
		Expect(c.Write(key("B"), val(2))).To(Succeed())

		v, err := readUint32(c, "B")
		Expect(err).ToNot(HaveOccurred())
		Expect(v).To(Equal(uint32(2)))
		Expect(store.get("B")).To(Equal(uint32(101)))
	})

	It("should evict the least recently used entry first", func() {
		for _, id := range []string{"A", "B", "C", "D"} {
			_, err := readUint32(c, id)
			Expect(err).ToNot(HaveOccurred())
		}

		Expect(residentIDs(c)).To(ConsistOf("B", "C", "D"))
		Expect(store.stores).To(Equal([]storeCall{{id: "A", value: 100}}))
	})

	It("should keep recently accessed entries", func() {
		for _, id := range []string{"A", "B", "C"} {
			Expect(c.Write(key(id), val(uint32(id[0])))).To(Succeed())
		}

		_, err := readUint32(c, "A")
		Expect(err).ToNot(HaveOccurred())

		_, err = readUint32(c, "D")
		Expect(err).ToNot(HaveOccurred())

		Expect(residentIDs(c)).To(ConsistOf("A", "C", "D"))
		Expect(store.stores).To(Equal([]storeCall{{id: "B", value: uint32('B')}}))

		store.loads = nil
		v, err := readUint32(c, "B")
		Expect(err).ToNot(HaveOccurred())
		Expect(v).To(Equal(uint32('B')))
		Expect(store.loads).To(Equal([]string{"B"}))
	})

	It("should write back the written value when evicting", func() {
		Expect(c.Write(key("A"), val(99))).To(Succeed())

		for _, id := range []string{"B", "C", "D"} {
			_, err := readUint32(c, id)
			Expect(err).ToNot(HaveOccurred())
		}

		Expect(store.stores).To(Equal([]storeCall{{id: "A", value: 99}}))
		Expect(store.get("A")).To(Equal(uint32(99)))
	})

	It("should fail a read of an unknown identifier without changing lines", func() {
		_, _ = readUint32(c, "A")
		before := c.Lines()

		out := []byte{1, 2, 3, 4}
		err := c.Read(key("Z"), out)

		Expect(errors.Is(err, ErrLoad)).To(BeTrue())
		Expect(errors.Is(err, ErrNotFound)).To(BeTrue())

		var loadErr *LoadError
		Expect(errors.As(err, &loadErr)).To(BeTrue())
		Expect(loadErr.ID).To(Equal(key("Z")))

		Expect(out).To(Equal([]byte{1, 2, 3, 4}))
		Expect(c.Lines()).To(Equal(before))
		Expect(c.Clock()).To(Equal(uint64(1)))
	})

	It("should not create identifiers on write", func() {
		err := c.Write(key("Z"), val(1))

		Expect(errors.Is(err, ErrLoad)).To(BeTrue())
		Expect(c.NumOccupied()).To(BeZero())
		Expect(store.data).ToNot(HaveKey("Z"))
	})

	It("should still serve the read when the write-back fails", func() {
		for _, id := range []string{"A", "B", "C"} {
			_, _ = readUint32(c, id)
		}

		store.storeErr = errors.New("disk full")

		v, err := readUint32(c, "D")

		Expect(errors.Is(err, ErrWriteBack)).To(BeTrue())

		var wbErr *WriteBackError
		Expect(errors.As(err, &wbErr)).To(BeTrue())
		Expect(wbErr.ID).To(Equal(key("A")))
		Expect(v).To(Equal(uint32(103)))
		Expect(residentIDs(c)).To(ConsistOf("B", "C", "D"))
	})

	It("should still apply the write when the write-back fails", func() {
		for _, id := range []string{"A", "B", "C"} {
			_, _ = readUint32(c, id)
		}

		store.storeErr = errors.New("disk full")

		err := c.Write(key("D"), val(42))

		var wbErr *WriteBackError
		Expect(errors.As(err, &wbErr)).To(BeTrue())
		Expect(wbErr.ID).To(Equal(key("A")))
		Expect(residentIDs(c)).To(ConsistOf("B", "C", "D"))

		store.storeErr = nil
		v, err := readUint32(c, "D")
		Expect(err).ToNot(HaveOccurred())
		Expect(v).To(Equal(uint32(42)))

		Expect(c.Lines()[0].ID).To(Equal(key("D")))
		Expect(c.Lines()[0].LastAccess).To(Equal(uint64(5)))
	})

	It("should stamp the written line even if the write-back fails", func() {
		for _, id := range []string{"A", "B", "C"} {
			_, _ = readUint32(c, id)
		}

		store.storeErr = errors.New("disk full")

		Expect(c.Write(key("D"), val(42))).To(MatchError(ErrWriteBack))

		Expect(c.Clock()).To(Equal(uint64(4)))
		Expect(c.Lines()[0].LastAccess).To(Equal(uint64(4)))
	})

	It("should leave a populated cache untouched on unknown write", func() {
		_, _ = readUint32(c, "A")
		Expect(c.Write(key("B"), val(9))).To(Succeed())
		before := c.Lines()
		clock := c.Clock()

		err := c.Write(key("Z"), val(1))

		Expect(errors.Is(err, ErrLoad)).To(BeTrue())
		Expect(c.Lines()).To(Equal(before))
		Expect(c.Clock()).To(Equal(clock))
		Expect(store.stores).To(BeEmpty())
	})

	It("should flush every occupied line on close", func() {
		Expect(c.Write(key("A"), val(1))).To(Succeed())
		_, _ = readUint32(c, "B")
		Expect(c.Write(key("A"), val(2))).To(Succeed())

		Expect(c.Close()).To(Succeed())

		Expect(store.stores).To(ConsistOf(
			storeCall{id: "A", value: 2},
			storeCall{id: "B", value: 101},
		))
		Expect(c.IsClosed()).To(BeTrue())
		Expect(c.NumLines()).To(BeZero())
	})

	It("should release the lines even if flushing fails", func() {
		_, _ = readUint32(c, "A")
		_, _ = readUint32(c, "B")
		store.storeErr = errors.New("disk full")

		err := c.Close()

		Expect(errors.Is(err, ErrWriteBack)).To(BeTrue())
		Expect(store.stores).To(HaveLen(2))
		Expect(c.IsClosed()).To(BeTrue())
	})

	It("should refuse operations after close", func() {
		Expect(c.Close()).To(Succeed())

		Expect(c.Close()).To(MatchError(ErrClosed))
		Expect(c.Read(key("A"), make([]byte, 4))).To(MatchError(ErrClosed))
		Expect(c.Write(key("A"), val(1))).To(MatchError(ErrClosed))
		Expect(c.Lines()).To(BeEmpty())
	})

	It("should panic on identifiers of the wrong size", func() {
		Expect(func() { _ = c.Read(key("AB"), make([]byte, 4)) }).To(Panic())
		Expect(func() { _ = c.Write(key("A"), []byte{1}) }).To(Panic())
	})

	It("should follow the documented eviction scenario", func() {
		for i, id := range []string{"A", "B", "C"} {
			Expect(c.Write(key(id), val(uint32(i)))).To(Succeed())
		}
		Expect(residentIDs(c)).To(ConsistOf("A", "B", "C"))

		_, err := readUint32(c, "A")
		Expect(err).ToNot(HaveOccurred())

		_, err = readUint32(c, "D")
		Expect(err).ToNot(HaveOccurred())

		Expect(store.stores).To(Equal([]storeCall{{id: "B", value: 1}}))

		store.loads = nil
		_, err = readUint32(c, "B")
		Expect(err).ToNot(HaveOccurred())
		Expect(store.loads).To(Equal([]string{"B"}))
	})

	Context("with hooks", func() {
		var counter *hooking.EventCounter

		BeforeEach(func() {
			counter = hooking.NewEventCounter()
			c.AcceptHook(counter)
		})

		It("should report hits, misses, evictions and flushes", func() {
			for _, id := range []string{"A", "A", "B", "C", "D"} {
				_, _ = readUint32(c, id)
			}
			_ = c.Read(key("Z"), make([]byte, 4))
			_ = c.Close()

			Expect(counter.GetCount(HookPosHit)).To(Equal(uint64(1)))
			Expect(counter.GetCount(HookPosMiss)).To(Equal(uint64(5)))
			Expect(counter.GetCount(HookPosEvict)).To(Equal(uint64(1)))
			Expect(counter.GetCount(HookPosWriteBack)).To(Equal(uint64(1)))
			Expect(counter.GetCount(HookPosLoadFailure)).To(Equal(uint64(1)))
			Expect(counter.GetCount(HookPosFlush)).To(Equal(uint64(3)))
		})

		It("should pass the failure as detail", func() {
			var detail interface{}
			c.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
				if ctx.Pos == HookPosLoadFailure {
					detail = ctx.Detail
				}
			}))

			_ = c.Read(key("Z"), make([]byte, 4))

			Expect(detail).To(BeAssignableToTypeOf(&LoadError{}))
		})
	})

	Context("inspection", func() {
		It("should visit every line in index order", func() {
			_, _ = readUint32(c, "A")

			var indices []int
			c.Visit(func(line LineView) {
				indices = append(indices, line.Index)
			})

			Expect(indices).To(Equal([]int{0, 1, 2}))
		})

		It("should mark written lines as dirty", func() {
			_, _ = readUint32(c, "A")
			Expect(c.Write(key("B"), val(5))).To(Succeed())

			lines := c.Lines()
			Expect(lines[0].Dirty).To(BeFalse())
			Expect(lines[1].Dirty).To(BeTrue())
			Expect(lines[1].Guard).To(Equal(GuardValue))
		})

		It("should report overwritten guards", func() {
			_, _ = readUint32(c, "A")
			Expect(c.Verify()).To(Succeed())

			c.lines.lineAt(0).Guard = 0x00

			err := c.Verify()
			Expect(errors.Is(err, ErrCorrupted)).To(BeTrue())

			var corruption *CorruptionError
			Expect(errors.As(err, &corruption)).To(BeTrue())
			Expect(corruption.Index).To(Equal(0))
		})

		It("should dump the lines", func() {
			_, _ = readUint32(c, "A")

			buf := new(bytes.Buffer)
			Expect(c.Dump(buf, nil)).To(Succeed())

			Expect(strings.Split(buf.String(), "\n")).To(Equal([]string{
				"0. [1] 41 => 64000000",
				"1. (empty)",
				"2. (empty)",
				"",
			}))
		})
	})
})

var _ = Describe("Cache with mocked collaborators", func() {
	var (
		mockCtrl     *gomock.Controller
		store        *MockBackingStore
		victimFinder *MockVictimFinder
		c            *Cache
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		store = NewMockBackingStore(mockCtrl)
		victimFinder = NewMockVictimFinder(mockCtrl)

		store.EXPECT().
			Compare(gomock.Any(), gomock.Any()).
			DoAndReturn(CompareBytes).
			AnyTimes()

		var err error
		c, err = MakeBuilder().
			WithNumLines(2).
			WithEntrySize(4).
			WithIDSize(1).
			WithBackingStore(store).
			WithVictimFinder(victimFinder).
			Build("Cache")
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	loadValue := func(v uint32) func(id, out []byte) error {
		return func(_, out []byte) error {
			copy(out, val(v))
			return nil
		}
	}

	It("should install into the line chosen by the victim finder", func() {
		victimFinder.EXPECT().FindVictim(gomock.Any()).Return(1)
		store.EXPECT().Load(key("A"), gomock.Any()).DoAndReturn(loadValue(5))

		v, err := readUint32(c, "A")

		Expect(err).ToNot(HaveOccurred())
		Expect(v).To(Equal(uint32(5)))
		Expect(c.Lines()[1].ID).To(Equal(key("A")))
		Expect(c.Lines()[1].Checksum).To(Equal(Checksum(val(5))))
	})

	It("should load before writing the victim back", func() {
		victimFinder.EXPECT().FindVictim(gomock.Any()).Return(0).Times(2)

		gomock.InOrder(
			store.EXPECT().Load(key("A"), gomock.Any()).DoAndReturn(loadValue(1)),
			store.EXPECT().Load(key("B"), gomock.Any()).DoAndReturn(loadValue(2)),
			store.EXPECT().Store(key("A"), val(9)).Return(nil),
		)

		Expect(c.Write(key("A"), val(9))).To(Succeed())

		v, err := readUint32(c, "B")
		Expect(err).ToNot(HaveOccurred())
		Expect(v).To(Equal(uint32(2)))
	})

	It("should not write back when the load fails", func() {
		victimFinder.EXPECT().FindVictim(gomock.Any()).Return(0).Times(2)
		store.EXPECT().Load(key("A"), gomock.Any()).DoAndReturn(loadValue(1))
		store.EXPECT().
			Load(key("B"), gomock.Any()).
			Return(errors.New("io error"))

		_, err := readUint32(c, "A")
		Expect(err).ToNot(HaveOccurred())

		_, err = readUint32(c, "B")
		Expect(errors.Is(err, ErrLoad)).To(BeTrue())
		Expect(residentIDs(c)).To(Equal([]string{"A"}))
	})

	It("should store each occupied line exactly once on close", func() {
		gomock.InOrder(
			victimFinder.EXPECT().FindVictim(gomock.Any()).Return(0),
			victimFinder.EXPECT().FindVictim(gomock.Any()).Return(1),
		)
		store.EXPECT().Load(key("A"), gomock.Any()).DoAndReturn(loadValue(1))
		store.EXPECT().Load(key("B"), gomock.Any()).DoAndReturn(loadValue(2))
		store.EXPECT().Store(key("A"), val(1)).Return(nil).Times(1)
		store.EXPECT().Store(key("B"), val(3)).Return(nil).Times(1)

		_, _ = readUint32(c, "A")
		Expect(c.Write(key("B"), val(3))).To(Succeed())

		Expect(c.Close()).To(Succeed())
	})
})
