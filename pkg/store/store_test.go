package store_test

import (
	"context"
	"path/filepath"

	"github.com/99designs/keyring"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/libdcgo/divesync/pkg/descriptor"
	"github.com/libdcgo/divesync/pkg/store"
)

func behavesLikeAStore(open func() store.Store) {
	var (
		ctx = context.Background()
		s   store.Store
	)

	BeforeEach(func() {
		s = open()
	})

	AfterEach(func() {
		Expect(s.Close()).To(Succeed())
	})

	It("reports missing fingerprints", func() {
		_, err := s.Fingerprint(ctx, "Shearwater Perdix 2", "0000abcd")
		Expect(err).To(MatchError(store.ErrNotFound))
	})

	It("round trips fingerprints per device", func() {
		Expect(s.SaveFingerprint(ctx, "Shearwater Perdix 2", "0000abcd", []byte{1, 2, 3})).To(Succeed())
		Expect(s.SaveFingerprint(ctx, "Shearwater Perdix 2", "0000beef", []byte{9})).To(Succeed())

		fp, err := s.Fingerprint(ctx, "Shearwater Perdix 2", "0000abcd")
		Expect(err).ToNot(HaveOccurred())
		Expect(fp).To(Equal([]byte{1, 2, 3}))

		fp, err = s.Fingerprint(ctx, "Shearwater Perdix 2", "0000beef")
		Expect(err).ToNot(HaveOccurred())
		Expect(fp).To(Equal([]byte{9}))

		_, err = s.Fingerprint(ctx, "Suunto EON Steel", "0000abcd")
		Expect(err).To(MatchError(store.ErrNotFound))
	})

	It("overwrites fingerprints", func() {
		Expect(s.SaveFingerprint(ctx, "Shearwater Teric", "1", []byte{1})).To(Succeed())
		Expect(s.SaveFingerprint(ctx, "Shearwater Teric", "1", []byte{2, 2})).To(Succeed())
		fp, err := s.Fingerprint(ctx, "Shearwater Teric", "1")
		Expect(err).ToNot(HaveOccurred())
		Expect(fp).To(Equal([]byte{2, 2}))
	})

	It("forgets fingerprints of one device", func() {
		Expect(s.SaveFingerprint(ctx, "Shearwater Teric", "1", []byte{1})).To(Succeed())
		Expect(s.SaveFingerprint(ctx, "Shearwater Teric", "2", []byte{2})).To(Succeed())
		Expect(s.ForgetFingerprint(ctx, "Shearwater Teric", "1")).To(Succeed())

		_, err := s.Fingerprint(ctx, "Shearwater Teric", "1")
		Expect(err).To(MatchError(store.ErrNotFound))
		fp, err := s.Fingerprint(ctx, "Shearwater Teric", "2")
		Expect(err).ToNot(HaveOccurred())
		Expect(fp).To(Equal([]byte{2}))

		Expect(s.ForgetFingerprint(ctx, "Shearwater Teric", "1")).To(Succeed())
	})

	It("does not alias saved fingerprints", func() {
		fp := []byte{1, 2, 3}
		Expect(s.SaveFingerprint(ctx, "Shearwater Teric", "1", fp)).To(Succeed())
		fp[0] = 0xff
		loaded, err := s.Fingerprint(ctx, "Shearwater Teric", "1")
		Expect(err).ToNot(HaveOccurred())
		loaded[1] = 0xff
		again, err := s.Fingerprint(ctx, "Shearwater Teric", "1")
		Expect(err).ToNot(HaveOccurred())
		Expect(again).To(Equal([]byte{1, 2, 3}))
	})

	It("saves, lists and forgets devices", func() {
		_, err := s.Device(ctx, "uuid-b")
		Expect(err).To(MatchError(store.ErrNotFound))

		Expect(s.SaveDevice(ctx, store.DeviceConfig{
			UUID:        "uuid-b",
			DisplayName: "Shearwater Perdix 2",
			Family:      descriptor.FamilyShearwaterPetrel,
			Model:       11,
		})).To(Succeed())
		Expect(s.SaveDevice(ctx, store.DeviceConfig{
			UUID:        "uuid-a",
			DisplayName: "Suunto EON Steel",
			Family:      descriptor.FamilySuuntoEonSteel,
			Model:       0,
		})).To(Succeed())

		cfg, err := s.Device(ctx, "uuid-b")
		Expect(err).ToNot(HaveOccurred())
		Expect(cfg.Family).To(Equal(descriptor.FamilyShearwaterPetrel))
		Expect(cfg.Model).To(BeEquivalentTo(11))
		Expect(cfg.DisplayName).To(Equal("Shearwater Perdix 2"))
		Expect(cfg.UpdatedAt.IsZero()).To(BeFalse())

		devices, err := s.Devices(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(devices).To(HaveLen(2))
		Expect(devices[0].UUID).To(Equal("uuid-a"))
		Expect(devices[1].UUID).To(Equal("uuid-b"))

		Expect(s.ForgetDevice(ctx, "uuid-a")).To(Succeed())
		_, err = s.Device(ctx, "uuid-a")
		Expect(err).To(MatchError(store.ErrNotFound))
		devices, err = s.Devices(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(devices).To(HaveLen(1))
	})

	It("updates the model of a known device", func() {
		cfg := store.DeviceConfig{UUID: "u", DisplayName: "Shearwater Perdix", Family: descriptor.FamilyShearwaterPetrel, Model: 5}
		Expect(s.SaveDevice(ctx, cfg)).To(Succeed())
		cfg.Model = 11
		Expect(s.SaveDevice(ctx, cfg)).To(Succeed())
		loaded, err := s.Device(ctx, "u")
		Expect(err).ToNot(HaveOccurred())
		Expect(loaded.Model).To(BeEquivalentTo(11))
	})

	It("keeps devices with an unknown family", func() {
		Expect(s.SaveDevice(ctx, store.DeviceConfig{UUID: "u", DisplayName: "Mystery"})).To(Succeed())
		loaded, err := s.Device(ctx, "u")
		Expect(err).ToNot(HaveOccurred())
		Expect(loaded.Family).To(Equal(descriptor.FamilyNull))
	})
}

var _ = Describe("Memory", func() {
	behavesLikeAStore(func() store.Store { return store.NewMemory() })
})

var _ = Describe("SQLite", func() {
	Context("in memory", func() {
		behavesLikeAStore(func() store.Store {
			s, err := store.OpenSQLite(":memory:")
			Expect(err).ToNot(HaveOccurred())
			return s
		})
	})

	Context("on disk", func() {
		behavesLikeAStore(func() store.Store {
			s, err := store.OpenSQLite(filepath.Join(GinkgoT().TempDir(), "nested", "divesync.db"))
			Expect(err).ToNot(HaveOccurred())
			return s
		})
	})

	It("persists across reopen", func() {
		path := filepath.Join(GinkgoT().TempDir(), "divesync.db")
		s, err := store.OpenSQLite(path)
		Expect(err).ToNot(HaveOccurred())
		Expect(s.SaveFingerprint(context.Background(), "Shearwater Perdix 2", "0000abcd", []byte{7})).To(Succeed())
		Expect(s.Close()).To(Succeed())

		s, err = store.OpenSQLite(path)
		Expect(err).ToNot(HaveOccurred())
		defer s.Close()
		fp, err := s.Fingerprint(context.Background(), "Shearwater Perdix 2", "0000abcd")
		Expect(err).ToNot(HaveOccurred())
		Expect(fp).To(Equal([]byte{7}))
	})
})

var _ = Describe("FileCache", func() {
	Context("without a file", func() {
		behavesLikeAStore(func() store.Store { return store.NewFileCache(0) })
	})

	Context("backed by a file", func() {
		behavesLikeAStore(func() store.Store {
			c, err := store.OpenFileCache(filepath.Join(GinkgoT().TempDir(), "cache.json"), 0)
			Expect(err).ToNot(HaveOccurred())
			return c
		})
	})

	It("writes through to its file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "cache.json")
		c, err := store.OpenFileCache(path, 5)
		Expect(err).ToNot(HaveOccurred())
		Expect(c.SaveFingerprint(context.Background(), "Shearwater Perdix 2", "0000abcd", []byte{7})).To(Succeed())
		Expect(c.SaveDevice(context.Background(), store.DeviceConfig{UUID: "u", Family: descriptor.FamilyCressiGoa, Model: 4})).To(Succeed())

		reopened, err := store.OpenFileCache(path, 5)
		Expect(err).ToNot(HaveOccurred())
		fp, err := reopened.Fingerprint(context.Background(), "Shearwater Perdix 2", "0000abcd")
		Expect(err).ToNot(HaveOccurred())
		Expect(fp).To(Equal([]byte{7}))
		cfg, err := reopened.Device(context.Background(), "u")
		Expect(err).ToNot(HaveOccurred())
		Expect(cfg.Family).To(Equal(descriptor.FamilyCressiGoa))
	})
})

var _ = Describe("Keyring", func() {
	var (
		ctx = context.Background()
		kr  *keyring.ArrayKeyring
		s   *store.Keyring
	)

	BeforeEach(func() {
		kr = keyring.NewArrayKeyring(nil)
		s = store.NewKeyring(kr)
	})

	It("reports missing fingerprints", func() {
		_, err := s.Fingerprint(ctx, "Shearwater Perdix 2", "0000abcd")
		Expect(err).To(MatchError(store.ErrNotFound))
	})

	It("stores fingerprints under a namespaced key", func() {
		Expect(s.SaveFingerprint(ctx, "Shearwater Perdix 2", "0000abcd", []byte{4, 5})).To(Succeed())

		item, err := kr.Get("fingerprint.Shearwater Perdix 2.0000abcd")
		Expect(err).ToNot(HaveOccurred())
		Expect(item.Data).To(Equal([]byte{4, 5}))

		fp, err := s.Fingerprint(ctx, "Shearwater Perdix 2", "0000abcd")
		Expect(err).ToNot(HaveOccurred())
		Expect(fp).To(Equal([]byte{4, 5}))
	})

	It("forgets fingerprints", func() {
		Expect(s.SaveFingerprint(ctx, "Shearwater Perdix 2", "0000abcd", []byte{4, 5})).To(Succeed())
		Expect(s.ForgetFingerprint(ctx, "Shearwater Perdix 2", "0000abcd")).To(Succeed())
		_, err := s.Fingerprint(ctx, "Shearwater Perdix 2", "0000abcd")
		Expect(err).To(MatchError(store.ErrNotFound))
		_, err = kr.Get("fingerprint.Shearwater Perdix 2.0000abcd")
		Expect(err).To(MatchError(keyring.ErrKeyNotFound))
		Expect(s.ForgetFingerprint(ctx, "Shearwater Perdix 2", "0000abcd")).To(Succeed())
	})
})
