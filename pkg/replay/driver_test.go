package replay_test

import (
	"context"
	"errors"
	"io"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/libdcgo/divesync/pkg/descriptor"
	"github.com/libdcgo/divesync/pkg/device"
	"github.com/libdcgo/divesync/pkg/identify"
	"github.com/libdcgo/divesync/pkg/protocol"
	"github.com/libdcgo/divesync/pkg/replay"
	"github.com/libdcgo/divesync/pkg/retrieval"
	"github.com/libdcgo/divesync/pkg/store"
)

func openReplay(c *replay.Capture) *device.Handle {
	desc, _ := descriptor.FromName(c.Name)
	h, err := device.Open(c.Name, c.Address, desc, &replay.Link{}, replay.NewDriver(c))
	Expect(err).ToNot(HaveOccurred())
	return h
}

func collect(h *device.Handle) [][]byte {
	var got [][]byte
	Expect(h.Foreach(func(data, fingerprint []byte) bool {
		got = append(got, append([]byte(nil), data...))
		return true
	})).To(Succeed())
	return got
}

var _ = Describe("Driver", func() {
	It("reports hardware info and progress", func() {
		h := openReplay(testCapture())
		Expect(collect(h)).To(HaveLen(3))
		info, ok := h.Info()
		Expect(ok).To(BeTrue())
		Expect(info.SerialString()).To(Equal("0000abcd"))
		p, ok := h.Progress()
		Expect(ok).To(BeTrue())
		Expect(p).To(Equal(device.Progress{Current: 3, Maximum: 3}))
	})

	It("stops at an explicit fingerprint", func() {
		h := openReplay(testCapture())
		h.SetFingerprint([]byte{0xf0, 2})
		Expect(collect(h)).To(Equal([][]byte{{0xd0, 3}}))
	})

	It("asks the lookup hook for the fingerprint", func() {
		h := openReplay(testCapture())
		var gotType, gotSerial string
		h.SetFingerprintLookup(func(deviceType, serial string) []byte {
			gotType, gotSerial = deviceType, serial
			return []byte{0xf0, 3}
		})
		Expect(collect(h)).To(BeEmpty())
		Expect(gotType).To(Equal("Perdix 2"))
		Expect(gotSerial).To(Equal("0000abcd"))
	})

	It("stops when the callback says so", func() {
		h := openReplay(testCapture())
		calls := 0
		Expect(h.Foreach(func(data, fingerprint []byte) bool {
			calls++
			return false
		})).To(Succeed())
		Expect(calls).To(Equal(1))
	})

	It("returns the configured error", func() {
		d := replay.NewDriver(testCapture())
		d.Err = protocol.NewStatusError(protocol.StatusTimeout, "replay")
		h, err := device.Open("Perdix 2", "x", descriptor.Descriptor{}, &replay.Link{}, d)
		Expect(err).ToNot(HaveOccurred())
		Expect(protocol.StatusOf(h.Foreach(func([]byte, []byte) bool { return true }))).To(Equal(protocol.StatusTimeout))
	})
})

var _ = Describe("Link", func() {
	It("loops bytes back until closed", func() {
		l := &replay.Link{}
		Expect(l.Connected()).To(BeTrue())
		_, err := l.Write([]byte("ping"))
		Expect(err).ToNot(HaveOccurred())
		buf := make([]byte, 8)
		n, err := l.Read(buf)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(buf[:n])).To(Equal("ping"))
		_, err = l.Read(buf)
		Expect(err).To(MatchError(io.EOF))

		Expect(l.Close()).To(Succeed())
		Expect(l.Connected()).To(BeFalse())
		_, err = l.Write([]byte("x"))
		Expect(errors.Is(err, io.ErrClosedPipe)).To(BeTrue())
	})
})

var _ = Describe("Incremental sync over a replayed device", func() {
	It("downloads only what is new on each run", func() {
		ctx := context.Background()
		mem := store.NewMemory()
		registry := retrieval.NewRegistry()
		capture := testCapture()

		sync := func() retrieval.Result {
			h := openReplay(capture)
			defer h.Close()
			res, err := retrieval.New(h,
				retrieval.WithFingerprints(mem),
				retrieval.WithIdentifier(identify.New(mem)),
				retrieval.WithRegistry(registry),
			).Run(ctx)
			Expect(err).ToNot(HaveOccurred())
			return res
		}

		first := sync()
		Expect(first.State).To(Equal(retrieval.Completed))
		Expect(first.Records).To(HaveLen(3))

		second := sync()
		Expect(second.State).To(Equal(retrieval.NoNewData))
		Expect(second.Records).To(BeEmpty())

		capture.Records = append([]replay.Record{{Data: []byte{0xd0, 4}, Fingerprint: []byte{0xf0, 4}}}, capture.Records...)
		third := sync()
		Expect(third.State).To(Equal(retrieval.Completed))
		Expect(third.Records).To(HaveLen(1))
		Expect(third.Records[0].Content).To(Equal([]byte{0xd0, 4}))

		fp, err := mem.Fingerprint(ctx, "Shearwater Perdix 2", "0000abcd")
		Expect(err).ToNot(HaveOccurred())
		Expect(fp).To(Equal([]byte{0xf0, 4}))
		Expect(registry.Releases()).To(Equal(3))
	})
})
