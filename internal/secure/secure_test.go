package secure_test

import (
	"encoding/base64"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ginjaninja78/x9-cash-letter/internal/secure"
)

var _ = Describe("Sealer", func() {
	var sealer *secure.Sealer

	BeforeEach(func() {
		key, err := secure.GenerateKey()
		Expect(err).NotTo(HaveOccurred())
		GinkgoT().Setenv(secure.KeyEnv, key)

		sealer, err = secure.FromEnv()
		Expect(err).NotTo(HaveOccurred())
		Expect(sealer).NotTo(BeNil())
	})

	It("opens what it sealed", func() {
		sealed, err := sealer.Seal("T071000013T 123456789U 1001")
		Expect(err).NotTo(HaveOccurred())
		Expect(secure.IsSealed(sealed)).To(BeTrue())
		Expect(sealed).NotTo(ContainSubstring("071000013"))

		Expect(sealer.Decrypt(sealed)).To(Equal("T071000013T 123456789U 1001"))
	})

	It("passes plain values through", func() {
		Expect(sealer.Decrypt("T071000013T")).To(Equal("T071000013T"))
		var none *secure.Sealer
		Expect(none.Decrypt("plain")).To(Equal("plain"))
	})

	It("rejects sealed values without a key", func() {
		sealed, err := sealer.Seal("secret")
		Expect(err).NotTo(HaveOccurred())

		var none *secure.Sealer
		_, err = none.Decrypt(sealed)
		Expect(err).To(MatchError(secure.ErrNoKey))
	})

	It("rejects tampered values", func() {
		sealed, err := sealer.Seal("secret")
		Expect(err).NotTo(HaveOccurred())

		raw, err := base64.StdEncoding.DecodeString(sealed[len(secure.Prefix):])
		Expect(err).NotTo(HaveOccurred())
		raw[len(raw)-1] ^= 0xFF

		_, err = sealer.Decrypt(secure.Prefix + base64.StdEncoding.EncodeToString(raw))
		Expect(err).To(HaveOccurred())
	})

	It("rejects a short key", func() {
		_, err := secure.NewSealer([]byte("short"))
		Expect(err).To(HaveOccurred())
	})
})
