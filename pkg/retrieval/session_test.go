package retrieval_test

import (
	"bytes"
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/libdcgo/divesync/internal/log"
	"github.com/libdcgo/divesync/mocks"
	"github.com/libdcgo/divesync/pkg/descriptor"
	"github.com/libdcgo/divesync/pkg/device"
	"github.com/libdcgo/divesync/pkg/identify"
	"github.com/libdcgo/divesync/pkg/parser"
	"github.com/libdcgo/divesync/pkg/protocol"
	"github.com/libdcgo/divesync/pkg/retrieval"
	"github.com/libdcgo/divesync/pkg/store"
)

const (
	deviceType = "Shearwater Perdix 2"
	serial     = "0000abcd"
)

var perdixInfo = device.Info{Serial: 0xabcd, Model: 11, Family: descriptor.FamilyShearwaterPetrel}

func payloads(records []*parser.DiveRecord) [][]byte {
	var out [][]byte
	for _, r := range records {
		out = append(out, r.Content.([]byte))
	}
	return out
}

var _ = Describe("Session", func() {
	var (
		ctx       context.Context
		mem       *store.Memory
		registry  *retrieval.Registry
		collector *retrieval.Collector
		dev       *fakeDevice
	)

	newSession := func(opts ...retrieval.Option) *retrieval.Session {
		opts = append([]retrieval.Option{
			retrieval.WithFingerprints(mem),
			retrieval.WithIdentifier(identify.New(mem)),
			retrieval.WithRegistry(registry),
			retrieval.WithConsumer(collector),
			retrieval.WithProgressInterval(5 * time.Millisecond),
		}, opts...)
		return retrieval.New(dev, opts...)
	}

	run := func(opts ...retrieval.Option) retrieval.Result {
		res, err := newSession(opts...).Run(ctx)
		Expect(err).ToNot(HaveOccurred())
		return res
	}

	BeforeEach(func() {
		ctx = context.Background()
		mem = store.NewMemory()
		registry = retrieval.NewRegistry()
		collector = &retrieval.Collector{}
		dev = newFakeDevice("Perdix 2", 3)
	})

	AfterEach(func() {
		Expect(registry.Live()).To(Equal(0))
	})

	Context("with new dives", func() {
		It("delivers every record in order and saves the newest fingerprint", func() {
			dev.setInfo(perdixInfo)

			res := run()
			Expect(res.State).To(Equal(retrieval.Completed))
			Expect(res.Success()).To(BeTrue())
			Expect(res.Status).To(Equal(protocol.StatusSuccess))
			Expect(res.Err).ToNot(HaveOccurred())
			Expect(res.Serial).To(Equal(serial))
			Expect(payloads(res.Records)).To(Equal([][]byte{{0xd0, 1}, {0xd0, 2}, {0xd0, 3}}))
			Expect(res.Records[0].Number).To(Equal(1))
			Expect(res.Records[2].Number).To(Equal(3))
			Expect(res.Records[1].Descriptor.Name()).To(Equal(deviceType))
			Expect(res.Fingerprint).To(Equal([]byte{0xf0, 1}))

			fp, err := mem.Fingerprint(ctx, deviceType, serial)
			Expect(err).ToNot(HaveOccurred())
			Expect(fp).To(Equal([]byte{0xf0, 1}))

			Expect(payloads(collector.Records())).To(Equal(payloads(res.Records)))
			completion, ok := collector.Result()
			Expect(ok).To(BeTrue())
			Expect(completion.State).To(Equal(retrieval.Completed))
			Expect(registry.Releases()).To(Equal(1))
		})

		It("downloads only the dives newer than the stored fingerprint", func() {
			dev.setInfo(perdixInfo)
			Expect(mem.SaveFingerprint(ctx, deviceType, serial, []byte{0xf0, 3})).To(Succeed())

			res := run()
			Expect(res.State).To(Equal(retrieval.Completed))
			Expect(payloads(res.Records)).To(Equal([][]byte{{0xd0, 1}, {0xd0, 2}}))
			Expect(dev.callCount()).To(Equal(3))

			fp, err := mem.Fingerprint(ctx, deviceType, serial)
			Expect(err).ToNot(HaveOccurred())
			Expect(fp).To(Equal([]byte{0xf0, 1}))
		})

		It("hands the stored fingerprint to the device before enumerating", func() {
			dev.setInfo(perdixInfo)
			Expect(mem.SaveFingerprint(ctx, deviceType, serial, []byte{0xf0, 2})).To(Succeed())

			run()
			Expect(dev.fingerprint).To(Equal([]byte{0xf0, 2}))
			Expect(dev.hook()).To(BeNil())
		})

		It("identifies the device from the hardware report and stores the correction", func() {
			dev = newFakeDevice("Perdix", 2)
			dev.report = &device.Info{Serial: 7, Model: 6, Family: descriptor.FamilyShearwaterPetrel}

			res := run()
			Expect(res.State).To(Equal(retrieval.Completed))
			Expect(res.Records).To(HaveLen(2))
			Expect(res.Records[0].Descriptor.Name()).To(Equal("Shearwater Perdix AI"))

			cfg, err := mem.Device(ctx, dev.address)
			Expect(err).ToNot(HaveOccurred())
			Expect(cfg.Model).To(BeEquivalentTo(6))

			fp, err := mem.Fingerprint(ctx, "Shearwater Perdix", "00000007")
			Expect(err).ToNot(HaveOccurred())
			Expect(fp).To(Equal([]byte{0xf0, 1}))
		})

		It("keeps the first resolution when hardware info arrives mid-run", func() {
			dev = newFakeDevice("Perdix", 3)
			dev.before = func(i int) {
				if i == 1 {
					dev.setInfo(device.Info{Serial: 7, Model: 6, Family: descriptor.FamilyShearwaterPetrel})
				}
			}

			res := run()
			Expect(res.State).To(Equal(retrieval.Completed))
			Expect(res.Records).To(HaveLen(3))
			for _, rec := range res.Records {
				Expect(rec.Descriptor).To(Equal(res.Records[0].Descriptor))
			}
			Expect(res.Records[0].Descriptor.Name()).To(Equal("Shearwater Perdix"))
			Expect(res.Records[0].Descriptor.Model).To(BeEquivalentTo(5))
		})

		It("does not save a fingerprint without a serial", func() {
			res := run()
			Expect(res.State).To(Equal(retrieval.Completed))
			Expect(res.Records).To(HaveLen(3))
			Expect(res.Fingerprint).To(BeNil())
		})
	})

	Context("at the sync boundary", func() {
		It("stops after one callback when the newest record is already synced", func() {
			dev.setInfo(perdixInfo)
			Expect(mem.SaveFingerprint(ctx, deviceType, serial, []byte{0xf0, 1})).To(Succeed())

			res := run()
			Expect(dev.callCount()).To(Equal(1))
			Expect(res.Records).To(BeEmpty())
			Expect(res.State).To(Equal(retrieval.NoNewData))
			Expect(res.Success()).To(BeTrue())
			Expect(res.Fingerprint).To(BeNil())
			Expect(collector.Records()).To(BeEmpty())

			fp, err := mem.Fingerprint(ctx, deviceType, serial)
			Expect(err).ToNot(HaveOccurred())
			Expect(fp).To(Equal([]byte{0xf0, 1}))
			Expect(registry.Releases()).To(Equal(1))
		})

		It("serves the lookup hook for drivers that stop on their own", func() {
			dev.report = &perdixInfo
			dev.deviceSideBoundary = true
			Expect(mem.SaveFingerprint(ctx, deviceType, serial, []byte{0xf0, 1})).To(Succeed())

			res := run()
			Expect(dev.lookups).To(Equal(1))
			Expect(dev.callCount()).To(Equal(0))
			Expect(res.State).To(Equal(retrieval.NoNewData))
		})

		It("looks up the fingerprint once hardware info arrives", func() {
			dev.report = &perdixInfo
			Expect(mem.SaveFingerprint(ctx, deviceType, serial, []byte{0xf0, 1})).To(Succeed())

			res := run()
			Expect(dev.callCount()).To(Equal(1))
			Expect(res.State).To(Equal(retrieval.NoNewData))
		})
	})

	Context("with an unknown device", func() {
		It("delivers nothing", func() {
			dev = newFakeDevice("Garmin Descent", 3)

			res := run()
			Expect(res.Records).To(BeEmpty())
			Expect(res.Skipped).To(Equal(3))
			Expect(collector.Records()).To(BeEmpty())
			Expect(dev.callCount()).To(Equal(3))
			Expect(res.Fingerprint).To(BeNil())
			Expect(registry.Releases()).To(Equal(1))
		})
	})

	Context("when cancelled", func() {
		It("stops before the next record", func() {
			dev.setInfo(perdixInfo)
			s := newSession()
			dev.before = func(i int) {
				if i == 1 {
					s.Cancel()
				}
			}
			Expect(s.Start(ctx)).To(Succeed())
			res := s.Wait()

			Expect(res.State).To(Equal(retrieval.Cancelled))
			Expect(res.Success()).To(BeFalse())
			Expect(res.Err).ToNot(HaveOccurred())
			Expect(res.Status).To(Equal(protocol.StatusCancelled))
			Expect(res.Records).To(HaveLen(1))
			Expect(s.State()).To(Equal(retrieval.Cancelled))
			Expect(registry.Releases()).To(Equal(1))

			_, err := mem.Fingerprint(ctx, deviceType, serial)
			Expect(err).To(MatchError(store.ErrNotFound))
		})

		It("follows the context", func() {
			runCtx, cancel := context.WithCancel(ctx)
			dev.before = func(i int) {
				if i == 1 {
					cancel()
				}
			}
			res, err := newSession().Run(runCtx)
			Expect(err).ToNot(HaveOccurred())
			Expect(res.State).To(Equal(retrieval.Cancelled))
			Expect(res.Records).To(HaveLen(1))
		})
	})

	Context("when the transfer fails", func() {
		It("reports the status and keeps delivered records", func() {
			dev.setInfo(perdixInfo)
			dev.err = protocol.NewStatusError(protocol.StatusTimeout, "read")

			res := run()
			Expect(res.State).To(Equal(retrieval.Failed))
			Expect(res.Success()).To(BeFalse())
			Expect(res.Status).To(Equal(protocol.StatusTimeout))
			Expect(errors.Is(res.Err, dev.err)).To(BeTrue())
			Expect(res.Records).To(HaveLen(3))
			Expect(registry.Releases()).To(Equal(1))

			_, err := mem.Fingerprint(ctx, deviceType, serial)
			Expect(err).To(MatchError(store.ErrNotFound))
		})

		It("maps unclassified errors to IO", func() {
			dev.err = errors.New("link reset")
			res := run()
			Expect(res.Status).To(Equal(protocol.StatusIO))
		})
	})

	Context("when the device is not connected", func() {
		It("fails without creating a context", func() {
			dev.connected = false

			res := run()
			Expect(res.State).To(Equal(retrieval.Failed))
			Expect(res.Status).To(Equal(protocol.StatusIO))
			Expect(res.Err).To(MatchError(protocol.ErrNotConnected))
			Expect(dev.callCount()).To(Equal(0))
			Expect(registry.Releases()).To(Equal(0))
			completion, ok := collector.Result()
			Expect(ok).To(BeTrue())
			Expect(completion.State).To(Equal(retrieval.Failed))
		})
	})

	It("releases the context exactly once on every terminal path", func() {
		paths := []func(){
			func() { dev.setInfo(perdixInfo) },
			func() {
				dev.setInfo(perdixInfo)
				Expect(mem.SaveFingerprint(ctx, deviceType, serial, []byte{0xf0, 1})).To(Succeed())
			},
			func() { dev.name = "Garmin Descent" },
			func() { dev.err = protocol.NewStatusError(protocol.StatusProtocol, "nak") },
		}
		for i, setup := range paths {
			mem = store.NewMemory()
			dev = newFakeDevice("Perdix 2", 3)
			setup()
			run()
			Expect(registry.Releases()).To(Equal(i + 1))
			Expect(registry.Live()).To(Equal(0))
		}

		s := newSession()
		dev.before = func(int) { s.Cancel() }
		res, err := s.Run(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(res.State).To(Equal(retrieval.Cancelled))
		Expect(registry.Releases()).To(Equal(len(paths) + 1))
	})

	It("rejects a second run for the same device while one is in flight", func() {
		dev.release = make(chan struct{})
		first := newSession()
		Expect(first.Start(ctx)).To(Succeed())
		Eventually(func() bool { return registry.Busy(dev.address) }).Should(BeTrue())

		res := run()
		Expect(res.State).To(Equal(retrieval.Failed))
		Expect(errors.Is(res.Err, protocol.ErrBusy)).To(BeTrue())

		close(dev.release)
		Expect(first.Wait().State).To(Equal(retrieval.Completed))
		Expect(registry.Busy(dev.address)).To(BeFalse())
		Expect(registry.Releases()).To(Equal(1))
	})

	It("refuses to start twice", func() {
		s := newSession()
		_, err := s.Run(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(s.Start(ctx)).To(MatchError(retrieval.ErrAlreadyStarted))
	})

	It("reports progress while enumerating", func() {
		dev.release = make(chan struct{})
		s := newSession()
		Expect(s.Start(ctx)).To(Succeed())
		Expect(s.State()).To(Equal(retrieval.Enumerating))
		Eventually(collector.Progress).ShouldNot(BeEmpty())
		Expect(collector.Progress()[0]).To(Equal(device.Progress{Current: 1, Maximum: 3}))
		close(dev.release)
		s.Wait()
	})

	Context("with a parser", func() {
		failSecond := parser.ParserFunc(func(pc *parser.Context, req parser.Request) (*parser.DiveRecord, error) {
			if req.Data[1] == 2 {
				return nil, errors.New("bad checksum")
			}
			return parser.Raw{}.Parse(pc, req)
		})

		It("skips records that fail to parse", func() {
			dev.setInfo(perdixInfo)
			res := run(retrieval.WithParser(failSecond, nil))
			Expect(res.State).To(Equal(retrieval.Completed))
			Expect(payloads(res.Records)).To(Equal([][]byte{{0xd0, 1}, {0xd0, 3}}))
			Expect(res.Records[1].Number).To(Equal(2))
			Expect(res.Skipped).To(Equal(1))
			Expect(res.Fingerprint).To(Equal([]byte{0xf0, 1}))
		})

		It("treats a missing record as a parse failure", func() {
			dev.setInfo(perdixInfo)
			empty := parser.ParserFunc(func(pc *parser.Context, req parser.Request) (*parser.DiveRecord, error) {
				if req.Data[1] == 2 {
					return nil, nil
				}
				return parser.Raw{}.Parse(pc, req)
			})

			res := run(retrieval.WithParser(empty, nil))
			Expect(res.State).To(Equal(retrieval.Completed))
			Expect(payloads(res.Records)).To(Equal([][]byte{{0xd0, 1}, {0xd0, 3}}))
			Expect(res.Skipped).To(Equal(1))

			mem = store.NewMemory()
			res = run(retrieval.WithParser(empty, nil), retrieval.WithMaxConsecutiveFailures(1))
			Expect(res.State).To(Equal(retrieval.Failed))
			Expect(res.Err).To(MatchError(retrieval.ErrTooManyFailures))
		})

		It("logs record failures as warnings", func() {
			var buf bytes.Buffer
			previous := log.SetOutput(&buf)
			log.SetLevel(log.LevelError)
			DeferCleanup(func() {
				log.SetLevel(log.LevelNone)
				log.SetOutput(previous)
			})

			dev.setInfo(perdixInfo)
			res := run(retrieval.WithParser(failSecond, nil))
			Expect(res.Skipped).To(Equal(1))
			dev = newFakeDevice("Garmin Descent", 2)
			res = run()
			Expect(res.Skipped).To(Equal(2))
			Expect(buf.String()).To(BeEmpty())

			log.SetLevel(log.LevelWarning)
			run()
			Expect(buf.String()).To(ContainSubstring("[warn ]"))
			Expect(buf.String()).To(ContainSubstring("unknown device configuration for 'Garmin Descent'"))
			Expect(buf.String()).ToNot(ContainSubstring("[error]"))
		})

		It("can give up after consecutive failures", func() {
			res := run(retrieval.WithParser(failSecond, nil), retrieval.WithMaxConsecutiveFailures(1))
			Expect(res.State).To(Equal(retrieval.Failed))
			Expect(res.Err).To(MatchError(retrieval.ErrTooManyFailures))
			Expect(res.Status).To(Equal(protocol.StatusDataFormat))
			Expect(res.Records).To(HaveLen(1))
			Expect(dev.callCount()).To(Equal(2))
		})

		It("holds a reference to a shared parser context for the run", func() {
			shared := parser.NewContext()
			var seen int
			counting := parser.ParserFunc(func(pc *parser.Context, req parser.Request) (*parser.DiveRecord, error) {
				seen = pc.Refs()
				return parser.Raw{}.Parse(pc, req)
			})
			run(retrieval.WithParser(counting, shared))
			Expect(seen).To(Equal(2))
			Expect(shared.Refs()).To(Equal(1))
		})

		It("fails to start with a closed parser context", func() {
			closed := parser.NewContext()
			closed.Release()
			res := run(retrieval.WithParser(parser.Raw{}, closed))
			Expect(res.State).To(Equal(retrieval.Failed))
			Expect(res.Status).To(Equal(protocol.StatusInvalidArgs))
			Expect(registry.Releases()).To(Equal(0))
		})
	})

	Context("with mocked collaborators", func() {
		var ctrl *gomock.Controller

		BeforeEach(func() {
			ctrl = gomock.NewController(GinkgoT())
			dev.setInfo(perdixInfo)
		})

		It("keys the saved fingerprint by display name and serial", func() {
			fps := mocks.NewFingerprintStore(ctrl)
			fps.EXPECT().Fingerprint(gomock.Any(), deviceType, serial).Return(nil, store.ErrNotFound).AnyTimes()
			fps.EXPECT().SaveFingerprint(gomock.Any(), deviceType, serial, []byte{0xf0, 1}).Return(nil)

			res := run(retrieval.WithFingerprints(fps))
			Expect(res.State).To(Equal(retrieval.Completed))
			Expect(res.Fingerprint).To(Equal([]byte{0xf0, 1}))
		})

		It("completes when the fingerprint cannot be saved", func() {
			fps := mocks.NewFingerprintStore(ctrl)
			fps.EXPECT().Fingerprint(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("disk on fire")).AnyTimes()
			fps.EXPECT().SaveFingerprint(gomock.Any(), deviceType, serial, gomock.Any()).Return(errors.New("disk on fire"))

			res := run(retrieval.WithFingerprints(fps))
			Expect(res.State).To(Equal(retrieval.Completed))
			Expect(res.Records).To(HaveLen(3))
			Expect(res.Fingerprint).To(BeNil())
		})

		It("numbers records and passes the resolved model to the parser", func() {
			p := mocks.NewParser(ctrl)
			var requests []parser.Request
			p.EXPECT().Parse(gomock.Any(), gomock.Any()).DoAndReturn(func(pc *parser.Context, req parser.Request) (*parser.DiveRecord, error) {
				requests = append(requests, req)
				return parser.Raw{}.Parse(pc, req)
			}).Times(3)

			res := run(retrieval.WithParser(p, nil))
			Expect(res.Records).To(HaveLen(3))
			Expect(requests).To(HaveLen(3))
			for i, req := range requests {
				Expect(req.Number).To(Equal(i + 1))
				Expect(req.Family).To(Equal(descriptor.FamilyShearwaterPetrel))
				Expect(req.Model).To(BeEquivalentTo(11))
			}
		})
	})
})

var _ = Describe("State", func() {
	It("names states", func() {
		Expect(retrieval.NoNewData.String()).To(Equal("no new data"))
		Expect(retrieval.State(99).String()).To(Equal("unknown"))
		Expect(retrieval.Enumerating.Terminal()).To(BeFalse())
		Expect(retrieval.Cancelled.Terminal()).To(BeTrue())
	})
})
