package receipt

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		tmpDir  string
		storage *LocalStorage
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		var err error
		storage, err = NewLocalStorage(filepath.Join(tmpDir, "uploads"))
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewLocalStorage", func() {
		It("should create the upload directory", func() {
			info, err := os.Stat(filepath.Join(tmpDir, "uploads"))
			Expect(err).NotTo(HaveOccurred())
			Expect(info.IsDir()).To(BeTrue())
		})
	})

	Describe("Save", func() {
		It("should store the data and return the key", func() {
			key, err := storage.Save("job-1_receipt.png", []byte("image-bytes"))
			Expect(err).NotTo(HaveOccurred())
			Expect(key).To(Equal("job-1_receipt.png"))

			data, err := os.ReadFile(filepath.Join(tmpDir, "uploads", "job-1_receipt.png"))
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte("image-bytes")))
		})

		It("should flatten directory components in the filename", func() {
			key, err := storage.Save("../escape.png", []byte("data"))
			Expect(err).NotTo(HaveOccurred())
			Expect(key).To(Equal("escape.png"))

			_, err = os.Stat(filepath.Join(tmpDir, "escape.png"))
			Expect(os.IsNotExist(err)).To(BeTrue())
		})
	})

	Describe("Get", func() {
		BeforeEach(func() {
			_, err := storage.Save("job-1_receipt.png", []byte("image-bytes"))
			Expect(err).NotTo(HaveOccurred())
		})

		It("should return the stored data", func() {
			data, err := storage.Get("job-1_receipt.png")
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte("image-bytes")))
		})

		It("should return an error for a missing key", func() {
			_, err := storage.Get("missing.png")
			Expect(err).To(MatchError(ContainSubstring("reading file")))
		})

		It("should refuse keys that try to escape the directory", func() {
			outside := filepath.Join(tmpDir, "secret.txt")
			Expect(os.WriteFile(outside, []byte("secret"), 0644)).To(Succeed())

			data, err := storage.Get("../secret.txt")
			Expect(data).To(BeNil())
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Delete", func() {
		BeforeEach(func() {
			_, err := storage.Save("job-1_receipt.png", []byte("image-bytes"))
			Expect(err).NotTo(HaveOccurred())
		})

		It("should remove the file", func() {
			Expect(storage.Delete("job-1_receipt.png")).To(Succeed())
			_, err := os.Stat(filepath.Join(tmpDir, "uploads", "job-1_receipt.png"))
			Expect(os.IsNotExist(err)).To(BeTrue())
		})

		It("should return an error for a missing key", func() {
			Expect(storage.Delete("missing.png")).To(MatchError(ContainSubstring("deleting file")))
		})
	})
})
